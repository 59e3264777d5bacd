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

// Package grid 定義盤面型別與盤面生成/補盤。
//
// 盤面一律 row-major 平鋪：index = r*Cols + c，row 0 為最上排。
package grid

import (
	"strconv"
	"strings"

	"github.com/zintix-labs/candyreels/spec"
)

// Grid 盤面。對外回傳的 Grid 一律補滿，不含 spec.Empty。
type Grid struct {
	Rows  int             `json:"rows"`
	Cols  int             `json:"cols"`
	Cells []spec.SymbolID `json:"cells"`
}

func New(rows, cols int) Grid {
	return Grid{Rows: rows, Cols: cols, Cells: make([]spec.SymbolID, rows*cols)}
}

// FromRows 由二維陣列建立盤面（測試與回放用）
func FromRows(rows [][]spec.SymbolID) Grid {
	g := New(len(rows), 0)
	if len(rows) == 0 {
		return g
	}
	g.Cols = len(rows[0])
	g.Cells = make([]spec.SymbolID, 0, g.Rows*g.Cols)
	for _, r := range rows {
		g.Cells = append(g.Cells, r...)
	}
	return g
}

func (g Grid) Index(r, c int) int { return r*g.Cols + c }

func (g Grid) At(r, c int) spec.SymbolID { return g.Cells[r*g.Cols+c] }

func (g Grid) Len() int { return len(g.Cells) }

// Clone 深拷貝
func (g Grid) Clone() Grid {
	cells := make([]spec.SymbolID, len(g.Cells))
	copy(cells, g.Cells)
	return Grid{Rows: g.Rows, Cols: g.Cols, Cells: cells}
}

// Full 回報盤面是否沒有空格
func (g Grid) Full() bool {
	for _, s := range g.Cells {
		if s == spec.Empty {
			return false
		}
	}
	return true
}

// Neighbors 回傳 idx 的四向鄰居（上、下、左、右，越界略過）
func (g Grid) Neighbors(idx int, buf []int) []int {
	buf = buf[:0]
	r, c := idx/g.Cols, idx%g.Cols
	if r > 0 {
		buf = append(buf, idx-g.Cols)
	}
	if r+1 < g.Rows {
		buf = append(buf, idx+g.Cols)
	}
	if c > 0 {
		buf = append(buf, idx-1)
	}
	if c+1 < g.Cols {
		buf = append(buf, idx+1)
	}
	return buf
}

// String 以符號編號輸出，主要供除錯使用
func (g Grid) String() string {
	var sb strings.Builder
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			if c > 0 {
				sb.WriteByte(' ')
			}
			s := g.At(r, c)
			if s == spec.Empty {
				sb.WriteByte('.')
				continue
			}
			sb.WriteString(strconv.Itoa(int(s)))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
