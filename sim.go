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
	"sync"
	"sync/atomic"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/panjf2000/ants/v2"
	"github.com/shopspring/decimal"
	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/recorder"
	"github.com/zintix-labs/candyreels/sdk/core"
	"github.com/zintix-labs/candyreels/spec"
	"github.com/zintix-labs/candyreels/stats"
)

const (
	capPrepare int = 100

	// maxFreeChain 單一模擬回合的免費遊戲上限；設定異常（retrigger 機率過高）時仍保證結束。
	maxFreeChain int = 100_000

	// ctxCheckEvery 每跑多少回合檢查一次 ctx
	ctxCheckEvery int = 1024
)

// Simulator 用於模擬遊戲行為，可建立多台機台並平行紀錄統計。
//
// 一個模擬回合 = 一次付費主遊戲 + 其觸發的整條免費遊戲鏈（免費遊戲沿用同一押注）。
// 金額以最小貨幣單位（bet × 10^precision）的整數累計。
type Simulator struct {
	GameName  string                   // 遊戲名稱
	GameId    spec.GID                 // 遊戲ID
	initBets  int                      // 用戶帶的錢(以押注次數設定)
	gs        *spec.GameSetting        // 方便重用建立機台
	cf        core.PRNGFactory         // 亂數生成器
	initSeed  int64                    // 初始下的種子
	seedmaker *seedMaker               // 種子生成器
	mBuf      []*Machine               // 併發執行機台實例
	rBuf      []*recorder.SpinRecorder // 併發遊戲紀錄員
	sBuf      []*stats.StatReport      // 併發統計結果報表(僅Players需要)
}

func newSimulatorWithSeed(gs *spec.GameSetting, cf core.PRNGFactory, seed int64) (*Simulator, error) {
	if gs == nil {
		return nil, errs.NewFatal("game setting is nil")
	}
	s := &Simulator{
		GameName:  gs.GameName,
		GameId:    gs.GameID,
		gs:        gs,
		cf:        cf,
		initSeed:  seed,
		seedmaker: newSeedMaker(seed),
		mBuf:      make([]*Machine, 1, capPrepare),
		rBuf:      make([]*recorder.SpinRecorder, 0, capPrepare),
		sBuf:      make([]*stats.StatReport, 0, capPrepare),
	}
	m, err := newMachineWithSeed(gs, cf, s.initSeed)
	if err != nil {
		return nil, err
	}
	s.mBuf[0] = m
	return s, nil
}

// InitSeed 模擬器的初始種子；同設定同種子同參數的 Sim 結果一致。
func (s *Simulator) InitSeed() int64 {
	return s.initSeed
}

// Sim 單線模擬器：以一台機台連續跑指定回合並回傳統計結果與用時
func (s *Simulator) Sim(ctx context.Context, bet decimal.Decimal, rounds int, showpb bool) (*stats.StatReport, time.Duration, error) {
	defer s.reset()
	unit, err := s.betUnit(bet)
	if err != nil {
		return nil, 0, err
	}
	if rounds < 1 {
		return nil, 0, errs.NewWarn("rounds must > 0")
	}
	r, err := recorder.NewSpinRecorder(s.GameName, s.GameId, unit, 0)
	if err != nil {
		return nil, 0, err
	}
	m := s.mBuf[0]

	bar := newBar(rounds, showpb)
	for i := 0; i < rounds; i++ {
		if i%ctxCheckEvery == 0 && ctx.Err() != nil {
			bar.Finish()
			return nil, 0, canceled(ctx)
		}
		r.Record(s.round(m, bet))
		bar.Increment()
	}
	used := time.Since(bar.StartTime())
	bar.Finish()

	result := r.Done()
	result.Done()
	return result, used, nil
}

// SimMP 平行執行多個機台（ants 協程池），總計 rounds*mp 回合，合併統計結果後回傳統計結果與用時
func (s *Simulator) SimMP(ctx context.Context, bet decimal.Decimal, rounds int, mp int, showpb bool) (*stats.StatReport, time.Duration, error) {
	defer s.reset()
	if mp <= 0 {
		return nil, 0, errs.NewWarn("workers must > 0")
	}
	unit, err := s.betUnit(bet)
	if err != nil {
		return nil, 0, err
	}
	if rounds < 1 {
		return nil, 0, errs.NewWarn("rounds must > 0")
	}
	if err := s.prepareMachines(mp); err != nil {
		return nil, 0, err
	}
	for len(s.rBuf) < mp {
		r, err := recorder.NewSpinRecorder(s.GameName, s.GameId, unit, 0)
		if err != nil {
			return nil, 0, err
		}
		s.rBuf = append(s.rBuf, r)
	}

	pool, err := ants.NewPool(mp)
	if err != nil {
		return nil, 0, errs.Wrap(err, "create worker pool")
	}
	defer pool.Release()

	var stopped atomic.Bool
	wg := new(sync.WaitGroup)
	bar := newBar(rounds*mp, showpb)
	for i := 0; i < mp; i++ {
		m, rec := s.mBuf[i], s.rBuf[i]
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				if r%ctxCheckEvery == 0 && ctx.Err() != nil {
					stopped.Store(true)
					return
				}
				rec.Record(s.round(m, bet))
				bar.Increment()
			}
		}); err != nil {
			wg.Done()
			stopped.Store(true)
		}
	}
	wg.Wait()
	used := time.Since(bar.StartTime())
	bar.Finish()
	if stopped.Load() {
		if ctx.Err() != nil {
			return nil, 0, canceled(ctx)
		}
		return nil, 0, errs.NewFatal("submit simulation task to worker pool failed")
	}

	st, err := recorder.MergeSpinRecorder(s.rBuf)
	if err != nil {
		return nil, 0, err
	}
	result := st.Done()
	result.Done()
	return result, used, nil
}

// SimPlayers 模擬多個玩家各自帶入 initBets 注資金的遊戲歷程（最多 rounds 回合，破產或翻三倍離場），
// 產出機台報表與玩家體驗評估。
func (s *Simulator) SimPlayers(ctx context.Context, mp int, players int, initBets int, bet decimal.Decimal, rounds int, showpb bool) (*stats.StatReport, *stats.EstimatorPlayers, time.Duration, error) {
	defer s.reset()
	if players < 1 || initBets < 1 || rounds < 1 || mp < 1 {
		return nil, nil, 0, errs.NewWarn("invalid param: players, init bets, rounds and workers must > 0")
	}
	unit, err := s.betUnit(bet)
	if err != nil {
		return nil, nil, 0, err
	}
	s.initBets = initBets

	if err := s.prepareMachines(mp); err != nil {
		return nil, nil, 0, err
	}
	for len(s.rBuf) < players {
		r, err := recorder.NewSpinRecorder(s.GameName, s.GameId, unit, s.initBets)
		if err != nil {
			return nil, nil, 0, err
		}
		s.rBuf = append(s.rBuf, r)
	}

	// 機台以 channel 借還，協程池大小 = 機台數
	machines := make(chan *Machine, mp)
	for _, m := range s.mBuf[:mp] {
		machines <- m
	}
	pool, err := ants.NewPool(mp)
	if err != nil {
		return nil, nil, 0, errs.Wrap(err, "create worker pool")
	}
	defer pool.Release()

	var failed atomic.Bool
	wg := new(sync.WaitGroup)
	bar := newBar(players, showpb)
	for _, j := range s.rBuf {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			m := <-machines
			defer func() { machines <- m }()
			for range rounds {
				if j.RecordWithPlayer(s.round(m, bet)) {
					break
				}
			}
			bar.Increment()
		}); err != nil {
			wg.Done()
			failed.Store(true)
		}
	}
	wg.Wait()
	used := time.Since(bar.StartTime())
	bar.Finish()
	if ctx.Err() != nil {
		return nil, nil, 0, canceled(ctx)
	}
	if failed.Load() {
		return nil, nil, 0, errs.NewFatal("submit simulation task to worker pool failed")
	}

	// 機台基準報表
	record, err := recorder.MergeSpinRecorder(s.rBuf)
	if err != nil {
		return nil, nil, 0, err
	}
	st := record.Done()
	st.Done()

	// 玩家分析報表
	s.sBuf = s.sBuf[:0]
	for _, r := range s.rBuf {
		rep := r.Done()
		rep.Done()
		s.sBuf = append(s.sBuf, rep)
	}
	est := stats.EstimatorPlayerExp(s.sBuf)
	return st, est, used, nil
}

// round 跑一個模擬回合：主遊戲一次，觸發後把免費遊戲玩到剩餘次數歸零。
func (s *Simulator) round(m *Machine, bet decimal.Decimal) recorder.Spin {
	prec := s.gs.Bet.Precision
	rd := m.Play(bet, false)
	sp := recorder.Spin{
		Bet:      minorUnits(bet, prec),
		BaseWin:  minorUnits(rd.Win, prec),
		Tumbles:  rd.Outcome.Tumbles(),
		PeakMult: rd.Outcome.PeakMultiplier(),
	}
	if rd.Capped {
		sp.Capped++
	}
	left := rd.Grant
	sp.Triggered = left > 0
	for left > 0 && sp.FreeSpins < maxFreeChain {
		fr := m.Play(bet, true)
		left += fr.Grant - 1
		sp.FreeSpins++
		sp.FreeWin += minorUnits(fr.Win, prec)
		if fr.Capped {
			sp.Capped++
		}
	}
	sp.Win = sp.BaseWin + sp.FreeWin
	return sp
}

func (s *Simulator) betUnit(bet decimal.Decimal) (int, error) {
	if err := s.gs.Bet.Validate(bet); err != nil {
		return 0, err
	}
	return minorUnits(bet, s.gs.Bet.Precision), nil
}

func (s *Simulator) prepareMachines(mp int) error {
	for len(s.mBuf) < mp {
		m, err := newMachineWithSeed(s.gs, s.cf, s.seedmaker.next())
		if err != nil {
			return err
		}
		s.mBuf = append(s.mBuf, m)
	}
	return nil
}

func (s *Simulator) reset() {
	s.rBuf = s.rBuf[:0]
	s.sBuf = s.sBuf[:0]
	s.initBets = 0
}

// minorUnits 金額轉最小貨幣單位（已截位的金額不會再損失精度）
func minorUnits(v decimal.Decimal, prec int32) int {
	return int(v.Shift(prec).IntPart())
}

func newBar(total int, show bool) *pb.ProgressBar {
	bar := pb.StartNew(total)
	if !show {
		bar.SetWriter(io.Discard)
	}
	return bar
}

const mask63 = uint64(1<<63) - 1

type seedMaker struct {
	state atomic.Uint64 // always in [0, 2^63)
}

func newSeedMaker(seed int64) *seedMaker {
	s := &seedMaker{}
	s.state.Store(uint64(seed) & mask63)
	return s
}

// next 以全週期 LCG 推進 state，再用可逆 mix63 打散；可併發呼叫（CAS 推進）。
func (s *seedMaker) next() int64 {
	for {
		old := s.state.Load()
		next := (old*6364136223846793005 + 1442695040888963407) & mask63 // full-period LCG mod 2^63
		if s.state.CompareAndSwap(old, next) {
			return int64(mix63(next)) // 一定非負
		}
	}
}

// mix63：只用「可逆」的 bit 操作 + 乘奇數（mod 2^63）
func mix63(x uint64) uint64 {
	x &= mask63
	x ^= x >> 30
	x = (x * 0xBF58476D1CE4E5B9) & mask63
	x ^= x >> 27
	x = (x * 0x94D049BB133111EB) & mask63
	x ^= x >> 31
	return x & mask63
}
