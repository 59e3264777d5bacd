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
	"testing"

	"github.com/zintix-labs/candyreels/sdk/core"
	"github.com/zintix-labs/candyreels/spec"
)

func testCatalog(t *testing.T) *spec.SymbolCatalog {
	t.Helper()
	cat, err := spec.NewSymbolCatalog([]spec.SymbolSpec{
		{Name: "a", Weight: 5, BaseValue: 0.1},
		{Name: "b", Weight: 3, BaseValue: 0.2},
		{Name: "c", Weight: 2, BaseValue: 0.3},
		{Name: "bonus", Weight: 1, BonusTrigger: true},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return cat
}

func TestGravityKeepsColumnOrder(t *testing.T) {
	cells := []spec.SymbolID{
		1, 0, 2,
		0, 3, 0,
		4, 0, 5,
	}
	fillIdx := make([]int, 3)
	Gravity(cells, 3, 3, fillIdx)
	want := []spec.SymbolID{
		0, 0, 0,
		1, 0, 2,
		4, 3, 5,
	}
	for i := range want {
		if cells[i] != want[i] {
			t.Fatalf("unexpected gravity result: %v", cells)
		}
	}
	if fillIdx[0] != 0 || fillIdx[1] != 4 || fillIdx[2] != 2 {
		t.Fatalf("unexpected fill idx: %v", fillIdx)
	}
}

func TestClearIgnoresOutOfRange(t *testing.T) {
	cells := []spec.SymbolID{1, 2, 3}
	Clear(cells, []int{0, 2, 10, -1})
	if cells[0] != 0 || cells[1] != 2 || cells[2] != 0 {
		t.Fatalf("unexpected clear result: %v", cells)
	}
}

func TestGenerateDeterministicAndFull(t *testing.T) {
	gen, err := NewGenerator(testCatalog(t), -1)
	if err != nil {
		t.Fatalf("generator: %v", err)
	}
	a := gen.Generate(6, 6, core.NewSeeded(7))
	b := gen.Generate(6, 6, core.NewSeeded(7))
	if a.Len() != 36 || !a.Full() {
		t.Fatalf("grid must be full: %v", a)
	}
	for i := range a.Cells {
		if a.Cells[i] != b.Cells[i] {
			t.Fatalf("same seed must give same grid")
		}
	}
}

func TestBonusWeightOverride(t *testing.T) {
	gen, err := NewGenerator(testCatalog(t), 0)
	if err != nil {
		t.Fatalf("generator: %v", err)
	}
	g := gen.Generate(30, 30, core.NewSeeded(11))
	for _, s := range g.Cells {
		if s == 4 {
			t.Fatalf("bonus weight 0 must never draw bonus")
		}
	}
}

func TestRefillOrder(t *testing.T) {
	gen, err := NewGenerator(testCatalog(t), -1)
	if err != nil {
		t.Fatalf("generator: %v", err)
	}
	src := FromRows([][]spec.SymbolID{
		{1, 2, 3},
		{2, 3, 1},
		{3, 1, 2},
	})
	// 移除 (0,0) (2,0) (1,2)
	out := gen.Refill(src, []int{0, 6, 5}, core.NewSeeded(3))
	if !out.Full() {
		t.Fatalf("refill must be full: %v", out)
	}
	if src.At(0, 0) != 1 || src.At(2, 0) != 3 {
		t.Fatalf("source grid must not be modified")
	}
	// 倖存者下落：第 0 欄只剩原 (1,0)=2，落到底部
	if out.At(2, 0) != 2 {
		t.Fatalf("survivor must fall to bottom, got %v", out)
	}
	// 第 2 欄：原 (0,2)=3 落到 (1,2)，(2,2)=2 不動
	if out.At(1, 2) != 3 || out.At(2, 2) != 2 {
		t.Fatalf("column order not preserved: %v", out)
	}
	// 新符號順序：欄由左到右，欄內由下往上
	ref := core.NewSeeded(3)
	expect := []struct{ r, c int }{{1, 0}, {0, 0}, {0, 2}}
	for _, p := range expect {
		if got, want := out.At(p.r, p.c), gen.picker.Pick(ref); got != want {
			t.Fatalf("draw order mismatch at (%d,%d): got %d want %d", p.r, p.c, got, want)
		}
	}
	// 未受影響的第 1 欄不變
	for r := 0; r < 3; r++ {
		if out.At(r, 1) != src.At(r, 1) {
			t.Fatalf("untouched column changed")
		}
	}
}
