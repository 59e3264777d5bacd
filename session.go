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
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zintix-labs/candyreels/dto"
	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/spec"
	"github.com/zintix-labs/candyreels/store"
)

// SpinState 玩家單局的狀態：Idle → Spinning → Settled → Idle
type SpinState uint8

const (
	StateIdle SpinState = iota
	StateSpinning
	StateSettled
)

var spinStateName = [...]string{"idle", "spinning", "settled"}

func (s SpinState) String() string {
	if int(s) < len(spinStateName) {
		return spinStateName[s]
	}
	return "unknown"
}

// Spinner 執行單局（MachinePool 為預設實作）
type Spinner interface {
	Spin(ctx context.Context, req *dto.SpinRequest) (dto.SpinResult, error)
}

// Session 單一玩家在單一遊戲上的押注/免費遊戲狀態機。
//
// 由 Runtime 在玩家鎖與交易內建立；餘額與免費遊戲存檔都只透過 store 介面存取。
// 所有寫入（扣款、派彩、存檔）都在 Spinner 回傳之後才發生，Spin 失敗不會留下任何變更。
type Session struct {
	player   string
	gs       *spec.GameSetting
	spinner  Spinner
	wallet   store.Wallet
	sessions store.SessionStore
	state    SpinState
	onState  func(from, to SpinState)
	now      func() time.Time
}

// NewSession 建立狀態機
func NewSession(player string, gs *spec.GameSetting, sp Spinner, w store.Wallet, ss store.SessionStore) (*Session, error) {
	if player == "" {
		return nil, errs.NewWarn("player is required")
	}
	if gs == nil || sp == nil || w == nil || ss == nil {
		return nil, errs.NewFatal("session: game setting, spinner, wallet and session store are required")
	}
	return &Session{
		player:   player,
		gs:       gs,
		spinner:  sp,
		wallet:   w,
		sessions: ss,
		now:      time.Now,
	}, nil
}

// OnState 設定狀態轉移掛鉤（追蹤用）
func (s *Session) OnState(fn func(from, to SpinState)) {
	s.onState = fn
}

func (s *Session) State() SpinState {
	return s.state
}

func (s *Session) transit(to SpinState) {
	from := s.state
	s.state = to
	if s.onState != nil {
		s.onState(from, to)
	}
}

// Spin 執行一局並結算。
//
//   - 押注先驗證（ErrInvalidBet）。
//   - 有進行中的免費遊戲：消耗一次，以存檔鎖定的押注進行，不扣款。
//   - 否則押注大於餘額回傳 ErrInsufficientBalance，不進入 Spinning。
//   - 結算：扣款、派彩入帳、免費遊戲次數增減與存檔，歸零即刪除。
func (s *Session) Spin(ctx context.Context, req *dto.SpinRequest) (dto.SpinResult, error) {
	if s.state != StateIdle {
		return dto.SpinResult{}, errs.ErrSessionBusy.With("state " + s.state.String())
	}
	if req == nil {
		return dto.SpinResult{}, errs.NewWarn("spin request is nil")
	}
	// seed / 快照只用於回放，會結算的局一律用機台自身的 RNG
	if req.Seed != nil || req.StartState != nil {
		return dto.SpinResult{}, errs.ErrFeatureDisabled.With("seed and start_state are replay only, settled spins use the machine rng")
	}
	if err := s.gs.Bet.Validate(req.Bet); err != nil {
		return dto.SpinResult{}, err
	}

	fs, err := s.load(ctx)
	if err != nil {
		return dto.SpinResult{}, err
	}

	r := *req
	r.Player = s.player
	r.GameId = s.gs.GameID
	r.GameName = s.gs.GameName
	r.FreeSpinActive = fs != nil
	r.Balance = nil
	r.Seed, r.StartState = nil, nil
	if fs != nil {
		r.Bet = fs.Bet
	} else {
		bal, err := s.wallet.Balance(ctx, s.player)
		if err != nil {
			return dto.SpinResult{}, err
		}
		if r.Bet.GreaterThan(bal) {
			return dto.SpinResult{}, errs.ErrInsufficientBalance.With("bet " + r.Bet.String() + " > balance " + bal.String())
		}
		r.Balance = &bal
	}

	s.transit(StateSpinning)
	defer func() {
		if s.state != StateIdle {
			s.transit(StateIdle)
		}
	}()

	res, err := s.spinner.Spin(ctx, &r)
	if err != nil {
		return dto.SpinResult{}, err
	}
	s.transit(StateSettled)
	if err := s.settle(ctx, &res, fs); err != nil {
		return dto.SpinResult{}, err
	}
	s.transit(StateIdle)
	return res, nil
}

// settle 依序：扣款 → 免費遊戲存檔 → 派彩。
// 任一步失敗時以反序補償已完成的寫入，錢包與存檔回到本局之前的狀態；
// 有交易的儲存（Postgres）另由交易整筆回滾。
func (s *Session) settle(ctx context.Context, res *dto.SpinResult, fs *store.FreeSpinSession) (err error) {
	var u undo
	defer func() {
		if err != nil {
			err = u.run(context.WithoutCancel(ctx), err)
		}
	}()

	prev := fs.Clone()
	free := fs != nil
	var bal decimal.Decimal
	if !free {
		if bal, err = s.wallet.Debit(ctx, s.player, res.Bet); err != nil {
			return err
		}
		u.push(s.refund(res.Bet))
	} else {
		fs.Remaining--
		fs.Won = fs.Won.Add(res.TotalWin)
	}

	if res.FreeSpinDelta > 0 {
		if fs == nil {
			fs = s.newFreeSpins(res.Bet, 0)
		}
		fs.Remaining += res.FreeSpinDelta
		fs.Granted += res.FreeSpinDelta
	}

	if fs != nil {
		fs.UpdatedAt = s.now()
		if fs.Remaining > 0 {
			err = s.sessions.Save(ctx, fs)
		} else {
			err = s.sessions.Delete(ctx, s.player, s.gs.GameID)
		}
		if err != nil {
			return err
		}
		u.push(s.restore(prev))
		res.FreeSpin = freeSpinInfo(fs)
	}

	switch {
	case res.TotalWin.IsPositive():
		if bal, err = s.wallet.Credit(ctx, s.player, res.TotalWin); err != nil {
			return err
		}
	case free:
		if bal, err = s.wallet.Balance(ctx, s.player); err != nil {
			return err
		}
	}
	res.Balance = &bal
	return nil
}

// refund 補償已扣的金額
func (s *Session) refund(amount decimal.Decimal) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := s.wallet.Credit(ctx, s.player, amount)
		return err
	}
}

// restore 把存檔還原成 prev；prev 為 nil 表示本局之前沒有存檔
func (s *Session) restore(prev *store.FreeSpinSession) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if prev == nil {
			return s.sessions.Delete(ctx, s.player, s.gs.GameID)
		}
		return s.sessions.Save(ctx, prev)
	}
}

// undo 已完成寫入的補償動作
type undo []func(ctx context.Context) error

func (u *undo) push(fn func(ctx context.Context) error) {
	*u = append(*u, fn)
}

// run 反序執行全部補償，回傳原始錯誤；補償失敗時附在 Extra，Code 與等級沿用 cause。
func (u undo) run(ctx context.Context, cause error) error {
	var failed []string
	for i := len(u) - 1; i >= 0; i-- {
		if err := u[i](ctx); err != nil {
			failed = append(failed, err.Error())
		}
	}
	if len(failed) == 0 {
		return cause
	}
	return errs.WrapWithExtra(cause, "settle failed, compensation incomplete", strings.Join(failed, "; "))
}

// BuyBonus 直接購買免費遊戲：扣除 cost_mult × bet，開啟 base_spins 次的存檔。
func (s *Session) BuyBonus(ctx context.Context, bet decimal.Decimal) (*dto.FreeSpinInfo, decimal.Decimal, error) {
	if !s.gs.BuyBonus.Enabled {
		return nil, decimal.Zero, errs.ErrFeatureDisabled.With("buy bonus")
	}
	if s.state != StateIdle {
		return nil, decimal.Zero, errs.ErrSessionBusy.With("state " + s.state.String())
	}
	if err := s.gs.Bet.Validate(bet); err != nil {
		return nil, decimal.Zero, err
	}
	fs, err := s.load(ctx)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if fs != nil {
		return nil, decimal.Zero, errs.ErrFreeSpinsActive.With("remaining " + strconv.Itoa(fs.Remaining))
	}
	cost := s.gs.BuyBonus.Cost(bet)
	bal, err := s.wallet.Debit(ctx, s.player, cost)
	if err != nil {
		return nil, decimal.Zero, err
	}
	fs = s.newFreeSpins(bet, s.gs.FreeSpins.BaseSpins)
	if err := s.sessions.Save(ctx, fs); err != nil {
		return nil, decimal.Zero, undo{s.refund(cost)}.run(context.WithoutCancel(ctx), err)
	}
	return freeSpinInfo(fs), bal, nil
}

// FreeSpins 回傳進行中的免費遊戲；沒有時回傳 nil。
func (s *Session) FreeSpins(ctx context.Context) (*dto.FreeSpinInfo, error) {
	fs, err := s.load(ctx)
	if err != nil || fs == nil {
		return nil, err
	}
	return freeSpinInfo(fs), nil
}

// load 取得有效存檔；次數已歸零的殘留存檔會被清除。
func (s *Session) load(ctx context.Context) (*store.FreeSpinSession, error) {
	fs, err := s.sessions.Load(ctx, s.player, s.gs.GameID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if fs.Remaining <= 0 {
		if err := s.sessions.Delete(ctx, s.player, s.gs.GameID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return fs, nil
}

func (s *Session) newFreeSpins(bet decimal.Decimal, n int) *store.FreeSpinSession {
	return &store.FreeSpinSession{
		ID:        uuid.NewString(),
		Player:    s.player,
		GameID:    s.gs.GameID,
		Remaining: n,
		Granted:   n,
		Won:       decimal.Zero,
		Bet:       bet,
		UpdatedAt: s.now(),
	}
}

func freeSpinInfo(fs *store.FreeSpinSession) *dto.FreeSpinInfo {
	return &dto.FreeSpinInfo{
		ID:        fs.ID,
		Remaining: fs.Remaining,
		Granted:   fs.Granted,
		Won:       fs.Won,
		Bet:       fs.Bet,
	}
}
