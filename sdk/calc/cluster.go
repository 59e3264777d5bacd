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

// Package calc 提供盤面的連線判定。
package calc

import (
	"fmt"
	"slices"
	"sort"

	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/sdk/grid"
	"github.com/zintix-labs/candyreels/spec"
)

// Cluster 四向連通、同種符號（可含 Wild）的得獎群組。
//   - Cells 由小到大排序，包含 Wild 格。
//   - Wilds 為群組內 Wild 格數量。
type Cluster struct {
	Kind  spec.SymbolID `json:"kind"`
	Cells []int         `json:"cells"`
	Wilds int           `json:"wilds"`
}

func (c Cluster) Size() int { return len(c.Cells) }

// ClusterFinder 以 BFS 找出所有群組。
//
// 內含可重用 buffer，不可被多 goroutine 同時使用（由擁有它的引擎負責）。
type ClusterFinder struct {
	rows, cols int
	cat        *spec.SymbolCatalog

	comp    []int // cell -> 基礎群組編號，-1 表示不屬於任何群組
	wildVis []bool
	q       []int
	nb      []int

	// union-find：以較早發現的群組為根
	parent  []int
	kind    []spec.SymbolID
	members [][]int
	wilds   [][]int
}

// NewClusterFinder 建立指定尺寸的判定器
func NewClusterFinder(rows, cols int, cat *spec.SymbolCatalog) (*ClusterFinder, error) {
	if rows <= 0 || cols <= 0 {
		return nil, errs.NewFatal(fmt.Sprintf("cluster finder: invalid dimensions %dx%d", rows, cols))
	}
	if cat == nil {
		return nil, errs.NewFatal("cluster finder: nil symbol catalog")
	}
	n := rows * cols
	return &ClusterFinder{
		rows:    rows,
		cols:    cols,
		cat:     cat,
		comp:    make([]int, n),
		wildVis: make([]bool, n),
		q:       make([]int, 0, n),
		nb:      make([]int, 0, 4),
	}, nil
}

// FindClusters 一次性判定，不重用 buffer。minSize <= 0 屬於呼叫端錯誤，直接 panic。
func FindClusters(g grid.Grid, cat *spec.SymbolCatalog, minSize int) []Cluster {
	f, err := NewClusterFinder(g.Rows, g.Cols, cat)
	if err != nil {
		panic(err)
	}
	return f.Find(g, minSize)
}

// Find 回傳所有大小 >= minSize 的群組，依群組最小格位排序；無群組回傳 nil。
//
// 流程：
//  1. row-major BFS 建立同種（非 Wild、非 removable）基礎群組。
//  2. Wild 區塊依 row-major 順序處理：併入相鄰最大的群組（同大取較早發現者），
//     並透過 Wild 合併相鄰的同種群組。Wild 不會併入 bonus 群組，純 Wild 區塊忽略。
//  3. 過濾大小並排序。
func (f *ClusterFinder) Find(g grid.Grid, minSize int) []Cluster {
	if minSize <= 0 {
		panic(fmt.Sprintf("calc: min cluster size must be > 0, got %d", minSize))
	}
	if g.Rows != f.rows || g.Cols != f.cols {
		panic(fmt.Sprintf("calc: grid %dx%d does not match finder %dx%d", g.Rows, g.Cols, f.rows, f.cols))
	}
	f.reset()
	cells := g.Cells

	// 1. 基礎群組
	for i, sym := range cells {
		if f.comp[i] >= 0 || !f.absorbable(sym, false) {
			continue
		}
		id := len(f.parent)
		f.parent = append(f.parent, id)
		f.kind = append(f.kind, sym)
		f.members = append(f.members, f.flood(g, i, func(s spec.SymbolID) bool { return s == sym }, func(j int) bool {
			if f.comp[j] >= 0 {
				return false
			}
			f.comp[j] = id
			return true
		}))
		f.wilds = append(f.wilds, nil)
	}

	// 2. Wild 區塊
	for i, sym := range cells {
		if f.wildVis[i] || !f.isWild(sym) {
			continue
		}
		region := f.flood(g, i, f.isWild, func(j int) bool {
			if f.wildVis[j] {
				return false
			}
			f.wildVis[j] = true
			return true
		})
		adj := f.adjacentRoots(g, region)
		if len(adj) == 0 {
			continue
		}
		target := adj[0]
		for _, r := range adj[1:] {
			if f.size(r) > f.size(target) {
				target = r
			}
		}
		for _, r := range adj {
			r = f.find(r)
			if r != target && f.kind[r] == f.kind[target] {
				target = f.union(target, r)
			}
		}
		f.wilds[target] = append(f.wilds[target], region...)
	}

	// 3. 收集
	var out []Cluster
	for id := range f.parent {
		if f.parent[id] != id || f.size(id) < minSize {
			continue
		}
		all := make([]int, 0, f.size(id))
		all = append(all, f.members[id]...)
		all = append(all, f.wilds[id]...)
		sort.Ints(all)
		out = append(out, Cluster{Kind: f.kind[id], Cells: all, Wilds: len(f.wilds[id])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cells[0] < out[j].Cells[0] })
	return out
}

func (f *ClusterFinder) reset() {
	for i := range f.comp {
		f.comp[i] = -1
		f.wildVis[i] = false
	}
	f.parent = f.parent[:0]
	f.kind = f.kind[:0]
	f.members = f.members[:0]
	f.wilds = f.wilds[:0]
}

func (f *ClusterFinder) isWild(s spec.SymbolID) bool {
	return s != spec.Empty && f.cat.IsSpecial(s).IsWild()
}

// absorbable 回報 s 是否能組成基礎群組；forWild 為 true 時額外排除 bonus 符號。
func (f *ClusterFinder) absorbable(s spec.SymbolID, forWild bool) bool {
	if s == spec.Empty {
		return false
	}
	fl := f.cat.IsSpecial(s)
	if fl.IsWild() || fl.IsRemovableOnly() {
		return false
	}
	return !forWild || !fl.IsBonusTrigger()
}

// flood 從 start 以 BFS 擴展所有滿足 match 的四向鄰居，visit 回傳 false 表示已拜訪。
func (f *ClusterFinder) flood(g grid.Grid, start int, match func(spec.SymbolID) bool, visit func(int) bool) []int {
	visit(start)
	f.q = append(f.q[:0], start)
	for head := 0; head < len(f.q); head++ {
		f.nb = g.Neighbors(f.q[head], f.nb)
		for _, n := range f.nb {
			if match(g.Cells[n]) && visit(n) {
				f.q = append(f.q, n)
			}
		}
	}
	return slices.Clone(f.q)
}

// adjacentRoots 依發現順序回傳與 region 相鄰、可被 Wild 吸收的群組根
func (f *ClusterFinder) adjacentRoots(g grid.Grid, region []int) []int {
	var roots []int
	for _, c := range region {
		f.nb = g.Neighbors(c, f.nb)
		for _, n := range f.nb {
			id := f.comp[n]
			if id < 0 || !f.absorbable(g.Cells[n], true) {
				continue
			}
			r := f.find(id)
			if !slices.Contains(roots, r) {
				roots = append(roots, r)
			}
		}
	}
	slices.Sort(roots)
	return roots
}

func (f *ClusterFinder) find(id int) int {
	for f.parent[id] != id {
		f.parent[id] = f.parent[f.parent[id]]
		id = f.parent[id]
	}
	return id
}

// union 合併兩個根，回傳新根（較早發現者）
func (f *ClusterFinder) union(a, b int) int {
	if b < a {
		a, b = b, a
	}
	f.parent[b] = a
	f.members[a] = append(f.members[a], f.members[b]...)
	f.wilds[a] = append(f.wilds[a], f.wilds[b]...)
	f.members[b], f.wilds[b] = nil, nil
	return a
}

func (f *ClusterFinder) size(root int) int {
	return len(f.members[root]) + len(f.wilds[root])
}
