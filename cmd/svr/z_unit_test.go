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

package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/zintix-labs/candyreels/store/memory"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestParseFlags(t *testing.T) {
	cfg, err := parseFlags([]string{"-cors", "http://a.test, http://b.test", "-pool", "4"}, env(nil))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.pool != 4 || len(cfg.cors) != 2 || cfg.cors[1] != "http://b.test" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	cfg, err = parseFlags([]string{"-wallet", "postgres", "-sessions", "redis"}, env(map[string]string{
		envPgDSN:     "postgres://u:p@localhost/candy",
		envRedisAddr: "127.0.0.1:6379",
	}))
	if err != nil {
		t.Fatalf("env fallback: %v", err)
	}
	if cfg.pgDSN != "postgres://u:p@localhost/candy" || cfg.redisAddr != "127.0.0.1:6379" {
		t.Fatalf("env not applied: %+v", cfg)
	}

	for _, args := range [][]string{
		{"-wallet", "redis"},
		{"-lock", "postgres"},
		{"-pool", "0"},
		{"-wallet", "postgres"},
		{"-sessions", "redis"},
	} {
		if _, err := parseFlags(args, env(nil)); err == nil {
			t.Fatalf("args %v must fail", args)
		}
	}
}

func TestBuildMemoryDeps(t *testing.T) {
	cfg, err := parseFlags(nil, env(nil))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	deps, closer, err := buildDeps(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer closer()
	if _, ok := deps.Wallet.(*memory.Wallet); !ok {
		t.Fatalf("default wallet must be memory, got %T", deps.Wallet)
	}
	cr, err := newCandyReels(cfg)
	if err != nil {
		t.Fatalf("candyreels: %v", err)
	}
	rt, err := cr.BuildRuntime(cfg.pool, deps)
	if err != nil {
		t.Fatalf("runtime: %v", err)
	}
	rt.Close()
}

func TestAllowDeposit(t *testing.T) {
	cases := []struct {
		args []string
		want bool
	}{
		{nil, true},
		{[]string{"-wallet", "postgres"}, false},
		{[]string{"-wallet", "postgres", "-allow-deposit"}, true},
	}
	for _, c := range cases {
		cfg, err := parseFlags(c.args, env(map[string]string{envPgDSN: "postgres://u:p@localhost/candy"}))
		if err != nil {
			t.Fatalf("parse %v: %v", c.args, err)
		}
		if got := cfg.allowDeposit(); got != c.want {
			t.Fatalf("args %v: allowDeposit=%v, want %v", c.args, got, c.want)
		}
	}
}
