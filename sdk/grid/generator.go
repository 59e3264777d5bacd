// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package grid

import (
	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/sdk/core"
	"github.com/zintix-labs/candyreels/sdk/sampler"
	"github.com/zintix-labs/candyreels/spec"
)

// Generator 依符號權重逐格獨立抽樣。
//
// 同一個 Generator 可被多台機台共用（建立後唯讀），亂數由呼叫端注入。
type Generator struct {
	picker *sampler.Weighted[spec.SymbolID]
}

// NewGenerator 以符號目錄建立生成器。
// bonusWeight >= 0 時覆蓋 bonus_trigger 符號的權重（主遊戲與免費遊戲各用一組）。
func NewGenerator(cat *spec.SymbolCatalog, bonusWeight int) (*Generator, error) {
	if cat == nil {
		return nil, errs.NewFatal("grid generator: nil symbol catalog")
	}
	picker, err := sampler.NewWeighted(cat.Kinds(), cat.Weights(bonusWeight))
	if err != nil {
		return nil, errs.Wrap(err, "grid generator: build alias table")
	}
	return &Generator{picker: picker}, nil
}

// Generate 產生 rows x cols 的新盤面，抽樣順序為 row-major
func (g *Generator) Generate(rows, cols int, c *core.Core) Grid {
	out := New(rows, cols)
	for i := range out.Cells {
		out.Cells[i] = g.picker.Pick(c)
	}
	return out
}

// Refill 回傳新盤面：移除 empties、整列下落後，由上方補入新圖標。
//
// 抽樣順序：欄由左到右，欄內由最低的空格往上補到 row 0。
func (g *Generator) Refill(src Grid, empties []int, c *core.Core) Grid {
	out := src.Clone()
	Clear(out.Cells, empties)
	fillIdx := make([]int, out.Cols)
	Gravity(out.Cells, out.Cols, out.Rows, fillIdx)
	for _, start := range fillIdx {
		for w := start; w >= 0; w -= out.Cols {
			out.Cells[w] = g.picker.Pick(c)
		}
	}
	return out
}
