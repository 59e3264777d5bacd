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

package perf

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRunWritesProfile(t *testing.T) {
	dir := t.TempDir()
	calls := 0
	exe := func() error { calls++; return nil }
	for _, mode := range []string{ModeNone, ModeCPU, ModeHeap, ModeAllocs} {
		if err := Run(mode, dir, exe); err != nil {
			t.Fatalf("mode %q: %v", mode, err)
		}
	}
	if calls != 4 {
		t.Fatalf("exe must run once per mode, got %d", calls)
	}
	for _, name := range []string{"cpu.pprof", "heap.pprof", "allocs.pprof"} {
		if st, err := os.Stat(filepath.Join(dir, name)); err != nil || st.Size() == 0 {
			t.Fatalf("%s missing or empty: %v", name, err)
		}
	}
}

func TestRunErrors(t *testing.T) {
	boom := errors.New("boom")
	if err := Run(ModeHeap, t.TempDir(), func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("exe error must be returned, got %v", err)
	}
	ran := false
	if err := Run("trace", t.TempDir(), func() error { ran = true; return nil }); err == nil || ran {
		t.Fatalf("unknown mode must fail before running, err=%v ran=%v", err, ran)
	}
}
