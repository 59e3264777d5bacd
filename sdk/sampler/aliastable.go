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

// Package sampler 提供盤面生成用的加權抽樣。
//
// 本檔案實作 Vose's Alias Method（整數版）：
//   - 建表 O(N)，抽樣 O(1)，固定消耗 2 次 IntN。
//   - 全整數運算，避免浮點誤差 (0.999... != 1.0)。
//   - 建表時檢查溢位。
package sampler

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/sdk/core"
)

// AliasTable 是整數版 Alias Method 抽樣表。
//   - Prob: 經 scaling 後的機率（weight * Size）。
//   - Aliases: 機率不足時補位的別名索引。
//   - Size: 元素數量。
//   - Total: 權重總和。
type AliasTable struct {
	Prob    []int
	Aliases []int
	Size    int
	Total   int
}

// NewAliasTable 根據 weights 建表。權重可為 0，但不可為負、不可全為 0、不可溢位。
//
// 流程：
//  1. 每個權重乘以 n 做整數 scaling。
//  2. 以 total 為界分成 small / large 兩桶。
//  3. 每次各取一個 s, l：l 成為 s 的 alias，並把 l 的剩餘機率扣回去。
//  4. 直到任一桶為空。
func NewAliasTable(weights []int) (*AliasTable, error) {
	n := len(weights)
	if n == 0 {
		return nil, errs.NewFatal("alias table: empty weights")
	}
	total := uint64(0)
	for i, w := range weights {
		if w < 0 {
			return nil, errs.NewFatal(fmt.Sprintf("alias table: negative weight at %d", i))
		}
		if total > uint64(math.MaxInt)-uint64(w) {
			return nil, errs.NewFatal("alias table: total weight overflow int range")
		}
		total += uint64(w)
	}
	if total == 0 {
		return nil, errs.NewFatal("alias table: all weights are zero")
	}
	if !isSafeMultiply(int(total), n) {
		return nil, errs.NewFatal("alias table: weights are too large, causing overflow")
	}

	prob := make([]int, n)
	aliases := make([]int, n)
	small := make([]int, 0, n)
	large := make([]int, 0, n)

	for i, w := range weights {
		prob[i] = w * n
		if prob[i] < int(total) {
			small = append(small, i)
		} else {
			large = append(large, i)
		}
	}

	for len(small) > 0 && len(large) > 0 {
		s := small[len(small)-1]
		small = small[:len(small)-1]
		l := large[len(large)-1]
		large = large[:len(large)-1]

		aliases[s] = l
		// 維持 sum(prob) = total * n
		prob[l] = prob[l] + prob[s] - int(total)

		if prob[l] < int(total) {
			small = append(small, l)
		} else {
			large = append(large, l)
		}
	}
	// 浮點版在此需要把殘餘項補成 1；整數版殘餘項必為 total，Pick 永遠取自己。
	for _, l := range large {
		aliases[l] = l
	}
	for _, s := range small {
		aliases[s] = s
	}

	return &AliasTable{
		Prob:    prob,
		Aliases: aliases,
		Size:    n,
		Total:   int(total),
	}, nil
}

// isSafeMultiply 檢查 a*b 是否超過 math.MaxInt64。
func isSafeMultiply(a, b int) bool {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	return hi == 0 && (lo <= math.MaxInt64)
}

// Pick 抽出一個索引。
//
//	idx := IntN(Size)；IntN(Total) < Prob[idx] 取 idx，否則取 Aliases[idx]。
//
// 這是 U < p[idx] 的整數版比較，全程不經浮點。
func (at *AliasTable) Pick(c *core.Core) int {
	idx := c.IntN(at.Size)
	if c.IntN(at.Total) < at.Prob[idx] {
		return idx
	}
	return at.Aliases[idx]
}

// Weighted 將抽樣表與實際值綁在一起，Pick 直接回傳值。
type Weighted[T any] struct {
	table  *AliasTable
	values []T
}

// NewWeighted 建立加權抽樣器；權重為 0 的值保留但永不抽中。
func NewWeighted[T any](values []T, weights []int) (*Weighted[T], error) {
	if len(values) != len(weights) {
		return nil, errs.NewFatal(fmt.Sprintf("weighted: %d values but %d weights", len(values), len(weights)))
	}
	at, err := NewAliasTable(weights)
	if err != nil {
		return nil, err
	}
	return &Weighted[T]{table: at, values: values}, nil
}

func (w *Weighted[T]) Pick(c *core.Core) T {
	return w.values[w.table.Pick(c)]
}

// Len 回傳候選值數量（含權重 0）。
func (w *Weighted[T]) Len() int {
	return len(w.values)
}
