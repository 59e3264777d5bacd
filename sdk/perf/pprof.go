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

// Package perf 以 runtime/pprof 包住一次執行，輸出可給 go tool pprof 或 PGO 使用的檔案。
package perf

import (
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"

	"github.com/zintix-labs/candyreels/errs"
)

const DefaultDir = "build/profiling"

const (
	ModeNone   = ""
	ModeCPU    = "cpu"
	ModeHeap   = "heap"
	ModeAllocs = "allocs"
)

// Run 依 mode 包住 exe；未知的 mode 回傳 Warn 且不執行 exe。
// 回傳 exe 的錯誤優先於 profile 寫檔錯誤。
//
//	go run ./cmd/sim -pprof cpu
func Run(mode, dir string, exe func() error) error {
	if dir == "" {
		dir = DefaultDir
	}
	switch mode {
	case ModeNone:
		return exe()
	case ModeCPU:
		return cpu(dir, exe)
	case ModeHeap, ModeAllocs:
		if err := exe(); err != nil {
			return err
		}
		return snapshot(dir, mode)
	default:
		return errs.Warnf("unknown pprof mode %q: want cpu|heap|allocs", mode)
	}
}

func create(dir, name string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(err, "create profiling dir")
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, errs.Wrap(err, "create "+name)
	}
	return f, nil
}

func cpu(dir string, exe func() error) error {
	f, err := create(dir, "cpu.pprof")
	if err != nil {
		return err
	}
	defer f.Close()
	if err := pprof.StartCPUProfile(f); err != nil {
		return errs.Wrap(err, "start cpu profile")
	}
	defer pprof.StopCPUProfile()
	return exe()
}

// snapshot heap 為 in-use 快照（先 GC 讓 live objects 貼近現況），allocs 為累積配置
func snapshot(dir, mode string) error {
	f, err := create(dir, mode+".pprof")
	if err != nil {
		return err
	}
	defer f.Close()
	if mode == ModeHeap {
		runtime.GC()
	}
	prof := pprof.Lookup(mode)
	if prof == nil {
		return errs.Fatalf("pprof profile %q not found", mode)
	}
	if err := prof.WriteTo(f, 0); err != nil {
		return errs.Wrap(err, "write "+mode+" profile")
	}
	return nil
}
