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

package calc

import (
	"slices"
	"testing"

	"github.com/zintix-labs/candyreels/sdk/core"
	"github.com/zintix-labs/candyreels/sdk/grid"
	"github.com/zintix-labs/candyreels/spec"
)

const (
	a  spec.SymbolID = 1
	b  spec.SymbolID = 2
	c  spec.SymbolID = 3
	w  spec.SymbolID = 4
	bn spec.SymbolID = 5
	x  spec.SymbolID = 6
)

func testCatalog(t *testing.T) *spec.SymbolCatalog {
	t.Helper()
	cat, err := spec.NewSymbolCatalog([]spec.SymbolSpec{
		{Name: "a", Weight: 10, BaseValue: 0.2},
		{Name: "b", Weight: 10, BaseValue: 0.3},
		{Name: "c", Weight: 10, BaseValue: 0.5},
		{Name: "wild", Weight: 3, Wild: true},
		{Name: "bonus", Weight: 2, BonusTrigger: true},
		{Name: "bomb", Weight: 2, RemovableOnly: true},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return cat
}

func expectClusters(t *testing.T, got []Cluster, want []Cluster) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d clusters, got %+v", len(want), got)
	}
	for i := range want {
		if got[i].Kind != want[i].Kind || got[i].Wilds != want[i].Wilds || !slices.Equal(got[i].Cells, want[i].Cells) {
			t.Fatalf("cluster %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestFindSimpleRow(t *testing.T) {
	g := grid.FromRows([][]spec.SymbolID{
		{a, a, a, a, a},
		{b, c, b, c, b},
		{c, b, c, b, c},
	})
	got := FindClusters(g, testCatalog(t), 5)
	expectClusters(t, got, []Cluster{{Kind: a, Cells: []int{0, 1, 2, 3, 4}}})
	if got[0].Size() != 5 {
		t.Fatalf("unexpected size %d", got[0].Size())
	}
}

func TestWildJoinsLargestNeighbour(t *testing.T) {
	cat := testCatalog(t)
	tie := grid.FromRows([][]spec.SymbolID{
		{a, a, w, b, b},
		{a, c, bn, c, b},
	})
	expectClusters(t, FindClusters(tie, cat, 4), []Cluster{{Kind: a, Cells: []int{0, 1, 2, 5}, Wilds: 1}})

	larger := grid.FromRows([][]spec.SymbolID{
		{a, a, w, b, b},
		{a, c, bn, b, b},
	})
	expectClusters(t, FindClusters(larger, cat, 4), []Cluster{{Kind: b, Cells: []int{2, 3, 4, 8, 9}, Wilds: 1}})
}

func TestWildMergesSameKind(t *testing.T) {
	g := grid.FromRows([][]spec.SymbolID{
		{a, a, w, a, a},
		{b, c, b, c, b},
	})
	expectClusters(t, FindClusters(g, testCatalog(t), 5), []Cluster{{Kind: a, Cells: []int{0, 1, 2, 3, 4}, Wilds: 1}})
}

func TestBonusClustersArePure(t *testing.T) {
	cat := testCatalog(t)
	g := grid.FromRows([][]spec.SymbolID{
		{w, w, bn, bn, bn},
		{w, bn, bn, b, c},
	})
	expectClusters(t, FindClusters(g, cat, 5), []Cluster{{Kind: bn, Cells: []int{2, 3, 4, 6, 7}}})

	onlyWild := grid.FromRows([][]spec.SymbolID{{w, w, w}, {w, w, w}})
	if got := FindClusters(onlyWild, cat, 1); got != nil {
		t.Fatalf("wild-only region must not form a cluster: %+v", got)
	}
	bombs := grid.FromRows([][]spec.SymbolID{{x, x, x}, {x, x, x}})
	if got := FindClusters(bombs, cat, 1); got != nil {
		t.Fatalf("removable symbols must not cluster: %+v", got)
	}
}

func TestClusterOrdering(t *testing.T) {
	g := grid.FromRows([][]spec.SymbolID{
		{c, b, b, b},
		{a, a, b, c},
		{a, a, c, a},
	})
	expectClusters(t, FindClusters(g, testCatalog(t), 4), []Cluster{
		{Kind: b, Cells: []int{1, 2, 3, 6}},
		{Kind: a, Cells: []int{4, 5, 8, 9}},
	})
}

func TestFindRejectsNonPositiveMinSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	FindClusters(grid.FromRows([][]spec.SymbolID{{a}}), testCatalog(t), 0)
}

func TestClusterValidityOnRandomGrids(t *testing.T) {
	cat := testCatalog(t)
	gen, err := grid.NewGenerator(cat, -1)
	if err != nil {
		t.Fatalf("generator: %v", err)
	}
	f, err := NewClusterFinder(6, 6, cat)
	if err != nil {
		t.Fatalf("finder: %v", err)
	}
	rng := core.NewSeeded(2025)
	for round := 0; round < 2000; round++ {
		g := gen.Generate(6, 6, rng)
		clusters := f.Find(g, 5)
		used := map[int]bool{}
		for i, cl := range clusters {
			if cl.Size() < 5 {
				t.Fatalf("cluster below minimum: %+v", cl)
			}
			if !slices.IsSorted(cl.Cells) {
				t.Fatalf("cells must be sorted: %+v", cl)
			}
			if i > 0 && clusters[i-1].Cells[0] >= cl.Cells[0] {
				t.Fatalf("clusters must be ordered by first cell")
			}
			wilds := 0
			for _, idx := range cl.Cells {
				if used[idx] {
					t.Fatalf("cell %d used by two clusters\n%s", idx, g)
				}
				used[idx] = true
				s := g.Cells[idx]
				switch {
				case s == cl.Kind:
				case cat.IsSpecial(s).IsWild():
					wilds++
				default:
					t.Fatalf("cell %d (%d) does not belong to kind %d", idx, s, cl.Kind)
				}
			}
			if wilds != cl.Wilds {
				t.Fatalf("wild count mismatch: %+v", cl)
			}
			if cat.IsSpecial(cl.Kind).IsBonusTrigger() && cl.Wilds != 0 {
				t.Fatalf("bonus cluster must be pure: %+v", cl)
			}
			if !connected(g, cl.Cells) {
				t.Fatalf("cluster not connected: %+v\n%s", cl, g)
			}
		}
	}
}

func connected(g grid.Grid, cells []int) bool {
	in := map[int]bool{}
	for _, c := range cells {
		in[c] = true
	}
	seen := map[int]bool{cells[0]: true}
	q := []int{cells[0]}
	var nb []int
	for len(q) > 0 {
		cur := q[0]
		q = q[1:]
		nb = g.Neighbors(cur, nb)
		for _, n := range nb {
			if in[n] && !seen[n] {
				seen[n] = true
				q = append(q, n)
			}
		}
	}
	return len(seen) == len(cells)
}
