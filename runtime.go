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

package candyreels

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/candyreels/dto"
	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/spec"
	"github.com/zintix-labs/candyreels/store"
	"github.com/zintix-labs/candyreels/store/memory"
)

// Deps Runtime 的外部協作者
type Deps struct {
	Wallet   store.Wallet
	Sessions store.SessionStore
	Locker   store.Locker
	Tx       store.Transactor // nil 時使用 store.NoTx
	Logger   *slog.Logger     // nil 時丟棄

	// AllowDeposit 開放 Runtime.Deposit（開發環境）；正式錢包應由外部帳務入帳
	AllowDeposit bool
}

// MemoryDeps 單機/開發用：記憶體錢包、存檔與鎖
func MemoryDeps() Deps {
	return Deps{
		Wallet:   memory.NewWallet(),
		Sessions: memory.NewSessions(),
		Locker:   memory.NewLocker(),

		AllowDeposit: true,
	}
}

func (d *Deps) valid() error {
	if d.Wallet == nil || d.Sessions == nil || d.Locker == nil {
		return errs.NewFatal("runtime requires wallet, session store and locker")
	}
	if d.Tx == nil {
		d.Tx = store.NoTx{}
	}
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return nil
}

// Depositor 支援儲值的錢包（開發環境）
type Depositor interface {
	Deposit(ctx context.Context, player string, amount decimal.Decimal) (decimal.Decimal, error)
}

// Runtime 對外服務入口：每款遊戲一個機台池，單一玩家同時只允許一局。
type Runtime struct {
	pools    map[spec.GID]*MachinePool
	ids      []spec.GID // 固定順序，用於觀測/列舉
	wallet   store.Wallet
	sessions store.SessionStore
	locker   store.Locker
	tx       store.Transactor
	log      *slog.Logger
	deposit  bool

	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	reason    atomic.Value // string

	poolSize int
}

func newRuntime(d Deps, poolSize int) *Runtime {
	rt := &Runtime{
		pools:    make(map[spec.GID]*MachinePool),
		wallet:   d.Wallet,
		sessions: d.Sessions,
		locker:   d.Locker,
		tx:       d.Tx,
		log:      d.Logger,
		deposit:  d.AllowDeposit,
		done:     make(chan struct{}),
		poolSize: poolSize,
	}
	rt.reason.Store("")
	return rt
}

func (rt *Runtime) check(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return canceled(ctx)
	case <-rt.done:
		rt.closed.Store(true)
		return errs.NewFatal("runtime closed: " + rt.ClosedReason())
	default:
		return nil
	}
}

func (rt *Runtime) pool(gid spec.GID) (*MachinePool, error) {
	mp, ok := rt.pools[gid]
	if !ok {
		return nil, errs.ErrNotFound.With("game id " + gid.String())
	}
	return mp, nil
}

// withPlayer 在玩家鎖與交易內執行 fn
func (rt *Runtime) withPlayer(ctx context.Context, player string, gid spec.GID, fn func(ctx context.Context, s *Session) error) error {
	if err := rt.check(ctx); err != nil {
		return err
	}
	if player == "" {
		return errs.NewWarn("player is required")
	}
	mp, err := rt.pool(gid)
	if err != nil {
		return err
	}
	unlock, err := rt.locker.Lock(ctx, store.LockKey(player, gid))
	if err != nil {
		return err
	}
	defer unlock()
	return rt.tx.Do(ctx, func(ctx context.Context) error {
		s, err := NewSession(player, mp.GameSetting(), mp, rt.wallet, rt.sessions)
		if err != nil {
			return err
		}
		return fn(ctx, s)
	})
}

// Spin 執行一局：玩家鎖 → 交易 → 狀態機 → 機台池。
func (rt *Runtime) Spin(ctx context.Context, req *dto.SpinRequest) (dto.SpinResult, error) {
	if req == nil {
		return dto.SpinResult{}, errs.NewWarn("spin request is nil")
	}
	var res dto.SpinResult
	err := rt.withPlayer(ctx, req.Player, req.GameId, func(ctx context.Context, s *Session) error {
		if req.GameName != "" && req.GameName != s.gs.GameName {
			return errs.NewWarn("game name is not matched")
		}
		var err error
		res, err = s.Spin(ctx, req)
		return err
	})
	if err != nil {
		return dto.SpinResult{}, err
	}
	rt.log.Debug("spin settled",
		slog.String("player", req.Player),
		slog.String("spin_id", res.SpinID),
		slog.String("mode", res.Mode),
		slog.String("bet", res.Bet.String()),
		slog.String("win", res.TotalWin.String()),
		slog.Int("steps", len(res.Steps)))
	if res.FreeSpinDelta > 0 {
		rt.log.Info("free spins granted",
			slog.String("player", req.Player),
			slog.String("spin_id", res.SpinID),
			slog.Int("cluster", res.Trigger),
			slog.Int("granted", res.FreeSpinDelta))
	}
	if res.Capped {
		rt.log.Info("max win reached", slog.String("player", req.Player), slog.String("spin_id", res.SpinID))
	}
	if res.Truncated {
		rt.log.Warn("cascade truncated at round limit",
			slog.String("player", req.Player),
			slog.String("spin_id", res.SpinID),
			slog.Int("steps", len(res.Steps)))
	}
	return res, nil
}

// BuyBonus 購買免費遊戲
func (rt *Runtime) BuyBonus(ctx context.Context, req *dto.BuyRequest) (dto.BuyResult, error) {
	if req == nil {
		return dto.BuyResult{}, errs.NewWarn("buy request is nil")
	}
	var out dto.BuyResult
	err := rt.withPlayer(ctx, req.Player, req.GameId, func(ctx context.Context, s *Session) error {
		info, bal, err := s.BuyBonus(ctx, req.Bet)
		if err != nil {
			return err
		}
		out = dto.BuyResult{
			Player:   req.Player,
			GameID:   req.GameId,
			Cost:     s.gs.BuyBonus.Cost(req.Bet),
			FreeSpin: info,
			Balance:  bal,
		}
		return nil
	})
	if err != nil {
		return dto.BuyResult{}, err
	}
	rt.log.Info("bonus bought",
		slog.String("player", req.Player),
		slog.String("cost", out.Cost.String()),
		slog.Int("spins", out.FreeSpin.Remaining))
	return out, nil
}

// FreeSpins 查詢進行中的免費遊戲；沒有時回傳 ErrNotFound。
func (rt *Runtime) FreeSpins(ctx context.Context, player string, gid spec.GID) (*dto.FreeSpinInfo, error) {
	if err := rt.check(ctx); err != nil {
		return nil, err
	}
	mp, err := rt.pool(gid)
	if err != nil {
		return nil, err
	}
	s, err := NewSession(player, mp.GameSetting(), mp, rt.wallet, rt.sessions)
	if err != nil {
		return nil, err
	}
	info, err := s.FreeSpins(ctx)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, errs.ErrNotFound.With("no active free spins")
	}
	return info, nil
}

func (rt *Runtime) Balance(ctx context.Context, player string) (decimal.Decimal, error) {
	if err := rt.check(ctx); err != nil {
		return decimal.Zero, err
	}
	if player == "" {
		return decimal.Zero, errs.NewWarn("player is required")
	}
	return rt.wallet.Balance(ctx, player)
}

// Deposit 只在 Deps.AllowDeposit 開啟且錢包支援儲值時可用
func (rt *Runtime) Deposit(ctx context.Context, player string, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := rt.check(ctx); err != nil {
		return decimal.Zero, err
	}
	if !rt.deposit {
		return decimal.Zero, errs.ErrFeatureDisabled.With("deposit is disabled")
	}
	d, ok := rt.wallet.(Depositor)
	if !ok {
		return decimal.Zero, errs.ErrFeatureDisabled.With("wallet does not support deposit")
	}
	return d.Deposit(ctx, player, amount)
}

func (rt *Runtime) IDs() []spec.GID {
	return rt.ids
}

// GameSetting 回傳已載入的設定
func (rt *Runtime) GameSetting(gid spec.GID) (*spec.GameSetting, error) {
	mp, err := rt.pool(gid)
	if err != nil {
		return nil, err
	}
	return mp.GameSetting(), nil
}

// Metrics 依 ids 順序回傳各機台池快照
func (rt *Runtime) Metrics() []MachinePoolMetrics {
	out := make([]MachinePoolMetrics, 0, len(rt.ids))
	for _, id := range rt.ids {
		out = append(out, rt.pools[id].Metrics())
	}
	return out
}

// Close 可重複呼叫；同時關閉所有機台池。
func (rt *Runtime) Close() {
	rt.closeWithReason("closed")
}

func (rt *Runtime) closeWithReason(reason string) {
	rt.closeOnce.Do(func() {
		if reason == "" {
			reason = "closed"
		}
		rt.reason.Store(reason)
		rt.closed.Store(true)
		close(rt.done)
		for _, mp := range rt.pools {
			mp.closeWithReason(reason)
		}
	})
}

func (rt *Runtime) Closed() bool {
	return rt.closed.Load()
}

func (rt *Runtime) ClosedReason() string {
	if v := rt.reason.Load(); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
