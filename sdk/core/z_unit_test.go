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

package core

import "testing"

func TestCoreDeterminism(t *testing.T) {
	c1 := New(Default().New(7))
	c2 := New(Default().New(7))
	for i := 0; i < 5; i++ {
		if c1.Uint64() != c2.Uint64() {
			t.Fatalf("Uint64 mismatch at %d", i)
		}
	}
	if c1.IntN(10) != c2.IntN(10) {
		t.Fatalf("IntN mismatch")
	}
	if c1.UintN(10) != c2.UintN(10) {
		t.Fatalf("UintN mismatch")
	}
}

func TestNewSeededMatchesFactory(t *testing.T) {
	a := NewSeeded(42)
	b := New(Default().New(42))
	for i := 0; i < 8; i++ {
		if a.Uint64() != b.Uint64() {
			t.Fatalf("seeded core diverged at %d", i)
		}
	}
}

func TestBoundsAndSentinels(t *testing.T) {
	c := New(Default().New(3))
	if got := c.IntN(0); got != -1 {
		t.Fatalf("IntN(0) must be -1, got %d", got)
	}
	if got := c.UintN(0); got != 0 {
		t.Fatalf("UintN(0) must be 0, got %d", got)
	}
	for i := 0; i < 1000; i++ {
		if v := c.IntN(6); v < 0 || v >= 6 {
			t.Fatalf("IntN out of range: %d", v)
		}
		if f := c.Float64(); f < 0 || f >= 1 {
			t.Fatalf("Float64 out of range: %v", f)
		}
	}
	if c.Chance(0) || !c.Chance(1) {
		t.Fatalf("Chance edge cases broken")
	}
}

func TestSnapshotRestore(t *testing.T) {
	c := New(Default().New(11))
	c.Uint64()
	snap, err := c.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	want := []uint64{c.Uint64(), c.Uint64(), c.Uint64()}
	if err := c.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	for i, w := range want {
		if got := c.Uint64(); got != w {
			t.Fatalf("replay mismatch at %d: %d != %d", i, got, w)
		}
	}
}
