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

package v1

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/candyreels"
	"github.com/zintix-labs/candyreels/dto"
	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/server/httperr"
	"github.com/zintix-labs/candyreels/spec"
	"github.com/zintix-labs/candyreels/stats"
)

const (
	maxSimRounds    = 1_000_000
	maxSimPlayers   = 100_000
	maxPlayerRounds = 15_000

	DefaultSimTimeout = 50 * time.Second
)

type SimHandler struct {
	cr      *candyreels.CandyReels
	timeout time.Duration
}

func NewSimHandler(cr *candyreels.CandyReels, timeout time.Duration) (*SimHandler, error) {
	if cr == nil {
		return nil, errs.NewFatal("sim handler requires candyreels")
	}
	if timeout <= 0 {
		timeout = DefaultSimTimeout
	}
	return &SimHandler{cr: cr, timeout: timeout}, nil
}

type simResponse struct {
	Seed      int64                   `json:"seed"`
	Stats     *stats.StatReport       `json:"stats"`
	Estimator *stats.EstimatorPlayers `json:"est,omitempty"`
	UsedTime  int64                   `json:"used_ms"`
}

func workersOf(n int) int {
	if n <= 0 {
		return 1
	}
	return min(n, runtime.NumCPU())
}

func seedOf(p *int64) (int64, error) {
	if p != nil {
		return *p, nil
	}
	rnd, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return 0, errs.Wrap(err, "seed generate failed")
	}
	return rnd.Int64(), nil
}

// Sim POST /v1/sim：多核模擬，回傳 RTP 報表
func (sh *SimHandler) Sim(w http.ResponseWriter, r *http.Request) {
	req := new(dto.SimRequest)
	if err := dto.DecodeJSON(r, req); err != nil {
		httperr.Errs(w, err)
		return
	}
	if req.Rounds < 1 || req.Rounds > maxSimRounds {
		httperr.Errs(w, errs.Warnf("rounds must be between 1 and %d", maxSimRounds))
		return
	}
	seed, err := seedOf(req.Seed)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	sim, err := sh.cr.NewSimulatorWithSeed(req.GameId, seed)
	if err != nil {
		httperr.Errs(w, errs.Wrap(err, "build simulator err: "+strconv.FormatUint(uint64(req.GameId), 10)))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), sh.timeout)
	defer cancel()

	st, used, err := sim.SimMP(ctx, req.Bet, req.Rounds, workersOf(req.Workers), false)
	if err != nil {
		httperr.Errs(w, errs.Wrap(err, "simulate err"))
		return
	}
	writeJSON(w, http.StatusOK, simResponse{Seed: seed, Stats: st, UsedTime: used.Milliseconds()})
}

// SimPlayers POST /v1/simplayer：玩家體驗估計
func (sh *SimHandler) SimPlayers(w http.ResponseWriter, r *http.Request) {
	type simPlayerRequest struct {
		GameId  spec.GID        `json:"gid"`
		Players int             `json:"players"`
		Bets    int             `json:"bets"` // 初始資金 = bets × bet
		Bet     decimal.Decimal `json:"bet"`
		Rounds  int             `json:"rounds"`
		Workers int             `json:"workers,omitempty"`
		Seed    *int64          `json:"seed,omitempty"`
	}
	req := new(simPlayerRequest)
	if err := dto.DecodeJSON(r, req); err != nil {
		httperr.Errs(w, err)
		return
	}
	if req.Players < 1 || req.Players > maxSimPlayers {
		httperr.Errs(w, errs.Warnf("players must be between 1 and %d", maxSimPlayers))
		return
	}
	if req.Bets < 1 {
		httperr.Errs(w, errs.NewWarn("bets must be at least 1"))
		return
	}
	if req.Rounds < 1 || req.Rounds > maxPlayerRounds {
		httperr.Errs(w, errs.Warnf("rounds must be between 1 and %d", maxPlayerRounds))
		return
	}
	seed, err := seedOf(req.Seed)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	sim, err := sh.cr.NewSimulatorWithSeed(req.GameId, seed)
	if err != nil {
		httperr.Errs(w, errs.Wrap(err, "build simulator err: "+strconv.FormatUint(uint64(req.GameId), 10)))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), sh.timeout)
	defer cancel()

	st, est, used, err := sim.SimPlayers(ctx, workersOf(req.Workers), req.Players, req.Bets, req.Bet, req.Rounds, false)
	if err != nil {
		httperr.Errs(w, errs.Wrap(err, "simulate err"))
		return
	}
	writeJSON(w, http.StatusOK, simResponse{Seed: seed, Stats: st, Estimator: est, UsedTime: used.Milliseconds()})
}

// SimByCfg POST /v1/simbycfg：以送入的 YAML 設定模擬（調參用，遊戲須已註冊）
func (sh *SimHandler) SimByCfg(w http.ResponseWriter, r *http.Request) {
	type simByCfgRequest struct {
		Config string          `json:"cfg"` // YAML 原文
		Bet    decimal.Decimal `json:"bet"`
		Rounds int             `json:"rounds"`
		Seed   *int64          `json:"seed,omitempty"`
	}
	req := new(simByCfgRequest)
	if err := dto.DecodeJSON(r, req); err != nil {
		httperr.Errs(w, err)
		return
	}
	if req.Rounds < 1 || req.Rounds > maxSimRounds {
		httperr.Errs(w, errs.Warnf("rounds must be between 1 and %d", maxSimRounds))
		return
	}
	seed, err := seedOf(req.Seed)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	sim, err := sh.cr.NewSimulatorByYAML([]byte(req.Config), seed)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), sh.timeout)
	defer cancel()

	st, used, err := sim.Sim(ctx, req.Bet, req.Rounds, false)
	if err != nil {
		httperr.Errs(w, errs.Wrap(err, "simulate err"))
		return
	}
	writeJSON(w, http.StatusOK, simResponse{Seed: seed, Stats: st, UsedTime: used.Milliseconds()})
}
