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
	"crypto/rand"
	"flag"
	"fmt"
	"io"
	"math"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/candyreels"
	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/spec"
	"github.com/zintix-labs/candyreels/stats"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	maxPlayers      = 100_000
	maxPlayerSpins  = 15_000
	defaultGameID   = spec.GID(1001)
	defaultWorkers  = 1
	defaultInitBets = 200
)

type config struct {
	id        spec.GID
	worker    int
	player    int
	bets      int
	spins     int
	bet       string
	seed      int64
	out       string
	cfgPath   string
	pprofmode string
	pprofdir  string
}

type gidFlag struct{ p *spec.GID }

func (f gidFlag) String() string {
	if f.p == nil {
		return ""
	}
	return fmt.Sprint(uint(*f.p))
}

func (f gidFlag) Set(s string) error {
	u, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return err
	}
	*f.p = spec.GID(uint(u))
	return nil
}

func bindVar(args []string) (*config, error) {
	cfg := &config{id: defaultGameID}
	fs := flag.NewFlagSet("sim", flag.ContinueOnError)
	fs.Var(gidFlag{&cfg.id}, "game", "target game id")
	fs.IntVar(&cfg.worker, "worker", defaultWorkers, "number of workers")
	fs.IntVar(&cfg.player, "player", 1, "number of players (1 = machine simulation)")
	fs.IntVar(&cfg.bets, "bets", defaultInitBets, "initial balance in bets per player")
	fs.IntVar(&cfg.spins, "spins", 1_000_000, "rounds per worker, or per player")
	fs.StringVar(&cfg.bet, "bet", "", "bet amount (default: reference bet of the game)")
	fs.Int64Var(&cfg.seed, "seed", -1, "int64 seed, < 1 for a random seed")
	fs.StringVar(&cfg.out, "out", stats.FormatTable, "output: table|json|yaml")
	fs.StringVar(&cfg.cfgPath, "config", "", "simulate a YAML game config instead of the embedded one")
	fs.StringVar(&cfg.pprofmode, "pprof", "", "pprof: '', cpu, heap, allocs")
	fs.StringVar(&cfg.pprofdir, "pprof-dir", "", "pprof output dir")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.valid(os.Stderr); err != nil {
		return nil, err
	}
	if cfg.seed < 1 {
		seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if err != nil {
			return nil, errs.Wrap(err, "random seed")
		}
		cfg.seed = seed.Int64()
	}
	return cfg, nil
}

// valid 基本檢查；超出上限的玩家數與轉數會被縮小並提示
func (cfg *config) valid(w io.Writer) error {
	p := message.NewPrinter(language.English)
	if cfg.worker < 1 {
		return errs.NewWarn("value err : workers must > 0")
	}
	if cfg.player < 1 {
		return errs.NewWarn("value err : player must > 0")
	}
	if cfg.player > maxPlayers {
		p.Fprintf(w, "too many players: %d resized to %d players\n", cfg.player, maxPlayers)
		cfg.player = maxPlayers
	}
	if cfg.player > 1 && cfg.bets < 1 {
		return errs.NewWarn("value err : bets must >= 1")
	}
	if cfg.spins < 1 {
		return errs.NewWarn("value err : spins must > 0")
	}
	// 單一玩家 15000 轉約 10 小時，再長就直接看機台模擬
	if cfg.player > 1 && cfg.spins > maxPlayerSpins {
		p.Fprintf(w, "too many spins per player: %d resized to %d\n", cfg.spins, maxPlayerSpins)
		cfg.spins = maxPlayerSpins
	}
	if _, _, err := stats.Renderers(cfg.out); err != nil {
		return err
	}
	return nil
}

func newSimulator(cr *candyreels.CandyReels, cfg *config) (*candyreels.Simulator, error) {
	if cfg.cfgPath == "" {
		return cr.NewSimulatorWithSeed(cfg.id, cfg.seed)
	}
	raw, err := os.ReadFile(cfg.cfgPath)
	if err != nil {
		return nil, errs.Wrap(err, "read config")
	}
	return cr.NewSimulatorByYAML(raw, cfg.seed)
}

func betOf(cfg *config, gs *spec.GameSetting) (decimal.Decimal, error) {
	if cfg.bet == "" {
		return gs.Bet.ReferenceBet(), nil
	}
	v, err := decimal.NewFromString(cfg.bet)
	if err != nil {
		return decimal.Zero, errs.ErrInvalidBet.With(err.Error())
	}
	return v, nil
}

// execute 依玩家數與 worker 數分支到對應的模擬器
func execute(ctx context.Context, cfg *config, w io.Writer) error {
	cr, err := candyreels.NewDefault()
	if err != nil {
		return err
	}
	gs, err := cr.GameSetting(cfg.id)
	if err != nil {
		return err
	}
	bet, err := betOf(cfg, gs)
	if err != nil {
		return err
	}
	s, err := newSimulator(cr, cfg)
	if err != nil {
		return err
	}
	rs, re, err := stats.Renderers(cfg.out)
	if err != nil {
		return err
	}
	table := cfg.out == "" || cfg.out == stats.FormatTable

	green, reset := "\033[1;32m", "\033[0m"
	if !table {
		green, reset = "", ""
	}
	p := message.NewPrinter(language.English)
	banner := func(format string, a ...any) {
		if table {
			p.Fprintf(w, green+format+reset+"\n", a...)
		}
	}

	if cfg.player > 1 {
		banner("[WORKERS:%d] [GAME:%s] [SEED:%d] [PLAYERS:%d BALANCE:%d BET:%s SPINS:%d]",
			cfg.worker, s.GameName, cfg.seed, cfg.player, cfg.bets, bet, cfg.spins)
		st, est, used, err := s.SimPlayers(ctx, cfg.worker, cfg.player, cfg.bets, bet, cfg.spins, table)
		if err != nil {
			return err
		}
		if table {
			st.StdOut(used)
		} else if err := st.WriteWith(w, rs); err != nil {
			return err
		}
		return re.Write(w, est)
	}

	var (
		st   *stats.StatReport
		used time.Duration
	)
	if cfg.worker == 1 {
		banner("[GAME:%s] [SEED:%d] [BET:%s] [SPINS:%d]", s.GameName, cfg.seed, bet, cfg.spins)
		r, d, err := s.Sim(ctx, bet, cfg.spins, table)
		if err != nil {
			return err
		}
		st, used = r, d
	} else {
		banner("[WORKERS:%d] [GAME:%s] [SEED:%d] [BET:%s] [SPINS:%d]", cfg.worker, s.GameName, cfg.seed, bet, cfg.worker*cfg.spins)
		r, d, err := s.SimMP(ctx, bet, cfg.spins, cfg.worker, table)
		if err != nil {
			return err
		}
		st, used = r, d
	}
	if table {
		st.StdOut(used)
		return nil
	}
	return st.WriteWith(w, rs)
}
