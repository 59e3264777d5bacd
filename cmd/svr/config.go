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
	"flag"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/zintix-labs/candyreels"
	"github.com/zintix-labs/candyreels/catalog/configs"
	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/sdk/core"
	"github.com/zintix-labs/candyreels/server/netsvr"
	"github.com/zintix-labs/candyreels/store/postgres"
	"github.com/zintix-labs/candyreels/store/redisstore"
)

const (
	envPgDSN     = "PG_DSN"
	envRedisAddr = "REDIS_ADDR"

	backendMemory   = "memory"
	backendPostgres = "postgres"
	backendRedis    = "redis"
)

type config struct {
	addr      string
	logMode   string
	logFile   string
	pool      int
	games     string
	wallet    string
	sessions  string
	lock      string
	pgDSN     string
	redisAddr string
	cors      []string
	report    time.Duration
	deposit   bool
}

// parseFlags 旗標優先，未給的連線字串讀環境變數
func parseFlags(args []string, getenv func(string) string) (*config, error) {
	cfg := new(config)
	var cors string
	fs := flag.NewFlagSet("svr", flag.ContinueOnError)
	fs.StringVar(&cfg.addr, "addr", netsvr.DefaultAddr, "listen address")
	fs.StringVar(&cfg.logMode, "log-mode", "dev", "log mode: dev|prod|silence")
	fs.StringVar(&cfg.logFile, "log-file", "", "rotate logs into this file instead of stderr")
	fs.IntVar(&cfg.pool, "pool", 3, "machines per game")
	fs.StringVar(&cfg.games, "game", "", "extra game config directory (YAML/JSON), loaded with the embedded game")
	fs.StringVar(&cfg.wallet, "wallet", backendMemory, "wallet: memory|postgres")
	fs.StringVar(&cfg.sessions, "sessions", backendMemory, "free spin sessions: memory|postgres|redis")
	fs.StringVar(&cfg.lock, "lock", backendMemory, "player lock: memory|redis")
	fs.StringVar(&cfg.pgDSN, "pg-dsn", "", "postgres dsn (env "+envPgDSN+")")
	fs.StringVar(&cfg.redisAddr, "redis-addr", "", "redis addresses, comma separated (env "+envRedisAddr+")")
	fs.StringVar(&cors, "cors", "", "allowed origins, comma separated")
	fs.DurationVar(&cfg.report, "report", time.Minute, "pool status log interval, 0 to disable")
	fs.BoolVar(&cfg.deposit, "allow-deposit", false, "open /v1/deposit on a postgres wallet (always open on the memory wallet)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.pgDSN == "" {
		cfg.pgDSN = getenv(envPgDSN)
	}
	if cfg.redisAddr == "" {
		cfg.redisAddr = getenv(envRedisAddr)
	}
	cfg.cors = splitList(cors)
	return cfg, cfg.valid()
}

func (cfg *config) valid() error {
	if cfg.pool < 1 || cfg.pool > 64 {
		return errs.Warnf("pool must be between 1 and 64, got %d", cfg.pool)
	}
	if err := oneOf("wallet", cfg.wallet, backendMemory, backendPostgres); err != nil {
		return err
	}
	if err := oneOf("sessions", cfg.sessions, backendMemory, backendPostgres, backendRedis); err != nil {
		return err
	}
	if err := oneOf("lock", cfg.lock, backendMemory, backendRedis); err != nil {
		return err
	}
	if cfg.usePostgres() && cfg.pgDSN == "" {
		return errs.NewWarn("postgres backend requires -pg-dsn or " + envPgDSN)
	}
	if cfg.useRedis() && cfg.redisAddr == "" {
		return errs.NewWarn("redis backend requires -redis-addr or " + envRedisAddr)
	}
	return nil
}

func (cfg *config) usePostgres() bool {
	return cfg.wallet == backendPostgres || cfg.sessions == backendPostgres
}

func (cfg *config) useRedis() bool {
	return cfg.sessions == backendRedis || cfg.lock == backendRedis
}

// allowDeposit 記憶體錢包一律開放；正式錢包需明確加上 -allow-deposit
func (cfg *config) allowDeposit() bool {
	return cfg.wallet == backendMemory || cfg.deposit
}

func oneOf(name, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return errs.Warnf("%s must be one of %s, got %q", name, strings.Join(allowed, "|"), v)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func newCandyReels(cfg *config) (*candyreels.CandyReels, error) {
	cfgs := candyreels.Configs(configs.FS)
	if cfg.games != "" {
		cfgs = append(cfgs, os.DirFS(cfg.games))
	}
	return candyreels.NewAuto(core.Default(), cfgs)
}

// buildDeps 依旗標組出 Runtime 的外部協作者；回傳的 closer 關閉所有連線
func buildDeps(ctx context.Context, cfg *config, log *slog.Logger) (candyreels.Deps, func(), error) {
	deps := candyreels.MemoryDeps()
	deps.Logger = log
	deps.AllowDeposit = cfg.allowDeposit()
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.usePostgres() {
		pool, err := postgres.Open(ctx, cfg.pgDSN)
		if err != nil {
			return deps, closeAll, err
		}
		closers = append(closers, pool.Close)
		if err := postgres.Migrate(ctx, pool); err != nil {
			return deps, closeAll, err
		}
		tx, err := postgres.NewTransactor(pool)
		if err != nil {
			return deps, closeAll, err
		}
		deps.Tx = tx
		if cfg.wallet == backendPostgres {
			deps.Wallet = postgres.NewWallet(pool)
		}
		if cfg.sessions == backendPostgres {
			deps.Sessions = postgres.NewSessions(pool)
		}
	}

	if cfg.useRedis() {
		rdb, err := redisstore.NewClient(ctx, redisstore.Options{Addrs: splitList(cfg.redisAddr)})
		if err != nil {
			return deps, closeAll, err
		}
		closers = append(closers, func() { _ = rdb.Close() })
		if cfg.sessions == backendRedis {
			deps.Sessions = redisstore.NewSessions(rdb)
		}
		if cfg.lock == backendRedis {
			deps.Locker = redisstore.NewLocker(rdb, redisstore.DefaultLockTTL)
		}
	}

	switch {
	case cfg.wallet == backendMemory:
		log.Warn("memory wallet in use: balances are lost on restart and /v1/deposit is open")
	case deps.AllowDeposit:
		log.Warn("/v1/deposit is open on the " + cfg.wallet + " wallet")
	}
	return deps, closeAll, nil
}
