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

import "github.com/zintix-labs/candyreels/spec"

// Gravity 執行標準的單格圖標下落邏輯 (Column-wise compact)
//
//   - cells: 盤面數據 (將被原地修改)
//   - cols, rows: 盤面維度
//   - fillIdxBuf: (選用) 回傳每列最低的空格位置，整列滿時為負值；nil 則不紀錄
//
// 倖存的圖標保持原本上下順序。
func Gravity(cells []spec.SymbolID, cols int, rows int, fillIdxBuf []int) {
	for c := 0; c < cols; c++ {
		wp := (rows-1)*cols + c // 寫入位置，從底開始

		// 自底向上掃描
		for r := rows - 1; r >= 0; r-- {
			rp := r*cols + c
			if cells[rp] != spec.Empty {
				if rp != wp {
					cells[wp] = cells[rp]
				}
				wp -= cols
			}
		}

		if fillIdxBuf != nil && c < len(fillIdxBuf) {
			fillIdxBuf[c] = wp
		}

		// 上方剩餘空間補 0
		for w := wp; w >= 0; w -= cols {
			cells[w] = spec.Empty
		}
	}
}

// Clear 把 idx 標記為空格，越界索引略過
func Clear(cells []spec.SymbolID, idx []int) {
	for _, v := range idx {
		if v >= 0 && v < len(cells) {
			cells[v] = spec.Empty
		}
	}
}
