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

package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseMode(t *testing.T) {
	cases := map[string]LogMode{"": ModeDev, "dev": ModeDev, "PROD": ModeProd, "silence": ModeSilence}
	for in, want := range cases {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseMode("loud"); err == nil {
		t.Fatalf("unknown mode must fail")
	}
}

func TestAsyncHandlerDrainsOnClose(t *testing.T) {
	var buf bytes.Buffer
	ah := NewAsyncHandler(slog.NewTextHandler(&buf, nil), 16)
	log := slog.New(ah).With(slog.String("game", "candy"))
	for i := 0; i < 5; i++ {
		log.Info("spin settled", slog.Int("i", i))
	}
	ah.Close()
	if got := strings.Count(buf.String(), "spin settled"); got != 5 {
		t.Fatalf("expected 5 records after drain, got %d", got)
	}
	if !strings.Contains(buf.String(), "game=candy") {
		t.Fatalf("attrs lost: %s", buf.String())
	}
	log.Info("after close")
	if ah.Dropped() != 1 {
		t.Fatalf("records after close must be dropped, got %d", ah.Dropped())
	}
}

func TestNewWritesRotatingFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "svr.log")
	log, closer := New(Options{Mode: ModeProd, Buf: 8, File: file})
	log.Info("free spins granted", slog.Int("granted", 10))
	closer()
	closer()

	raw, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(raw), `"msg":"free spins granted"`) {
		t.Fatalf("unexpected file content: %s", raw)
	}
}
