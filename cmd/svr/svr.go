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

// svr 啟動 Candy Fortune Reels HTTP 服務。
//
//	go run ./cmd/svr -addr :5808 -log-mode dev
//	PG_DSN=postgres://... REDIS_ADDR=127.0.0.1:6379 go run ./cmd/svr -wallet postgres -sessions redis -lock redis
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "go.uber.org/automaxprocs"

	"github.com/zintix-labs/candyreels/server"
	"github.com/zintix-labs/candyreels/server/logger"
	"github.com/zintix-labs/candyreels/server/svrcfg"
)

func main() {
	cfg, err := parseFlags(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config) error {
	mode, err := logger.ParseMode(cfg.logMode)
	if err != nil {
		return err
	}
	log, closeLog := logger.New(logger.Options{Mode: mode, Buf: 4096, File: cfg.logFile})
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cr, err := newCandyReels(cfg)
	if err != nil {
		log.Error("load games failed", slog.Any("err", err))
		return err
	}
	deps, closeDeps, err := buildDeps(ctx, cfg, log)
	if err != nil {
		log.Error("build deps failed", slog.Any("err", err))
		return err
	}
	defer closeDeps()

	rt, err := cr.BuildRuntime(cfg.pool, deps)
	if err != nil {
		log.Error("build runtime failed", slog.Any("err", err))
		return err
	}
	return server.Run(ctx, &svrcfg.SvrCfg{
		Log:         log,
		Reels:       cr,
		Runtime:     rt,
		Addr:        cfg.addr,
		CORS:        cfg.cors,
		ReportEvery: cfg.report,
	})
}
