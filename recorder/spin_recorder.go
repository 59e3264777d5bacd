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

package recorder

import (
	"fmt"

	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/spec"
	"github.com/zintix-labs/candyreels/stats"
)

// Spin 一個模擬回合：一次付費主遊戲，加上它觸發的整條免費遊戲鏈。
//
// 金額一律為最小貨幣單位（bet × 10^precision）的整數，避免在熱路徑上做 decimal 運算。
type Spin struct {
	Bet       int
	Win       int // BaseWin + FreeWin
	BaseWin   int
	FreeWin   int
	Triggered bool // 主遊戲觸發免費遊戲
	FreeSpins int  // 本回合實際玩掉的免費次數（含 retrigger）
	Capped    int  // 本回合被封頂的 spin 數
	Tumbles   int  // 主遊戲得獎輪次
	PeakMult  int  // 主遊戲結算時最大格位倍數，0 視為 1
}

// SpinRecorder 遊戲紀錄員
//
// SpinRecorder 負責紀錄遊戲結果，並透過Done輸出統計報表
type SpinRecorder struct {
	GameName string
	GameId   spec.GID
	BetUnit  int // 單次押注（最小貨幣單位）
	InitBets int
	Basic    *BasicRecord
	Dist     *DistRecord
	Cascade  *stats.CascadeReport
	Player   *PlayerRecord
}

// BasicRecord 基本遊戲資料紀錄
type BasicRecord struct {
	TotalBet      int
	TotalWin      int
	BaseWin       int
	FreeWin       int
	TotalWinSqSum float64 // 平方和（大押注時 int 會溢位）
	BaseWinSqSum  float64
	FreeWinSqSum  float64
	Trigger       int
	FreeSpins     int
	Capped        int
	MaxWin        int
	Rounds        int
}

// DistRecord 分數區間落點統計
type DistRecord struct {
	Bucket          *stats.WinBucket
	TotalWinCollect []int
	BaseWinCollect  []int
	FreeWinCollect  []int
}

// PlayerRecord 玩家統計
type PlayerRecord struct {
	leaveLine   int
	InitBalance int
	Balance     int
	MaxBalance  int
	MinBalance  int
	Bust        bool
	Cashout     bool
	Alive       bool
}

// NewSpinRecorder 建立紀錄員；initBets 為玩家帶入的押注次數，0 表示不追蹤玩家資金。
func NewSpinRecorder(name string, id spec.GID, betUnit int, initBets int) (*SpinRecorder, error) {
	s := new(SpinRecorder)
	if betUnit <= 0 {
		return s, errs.NewFatal(fmt.Sprintf("bet unit must > 0, got %d", betUnit))
	}
	if initBets < 0 {
		return s, errs.NewFatal(fmt.Sprintf("init bets must not negative integer, got: %d", initBets))
	}
	s.GameName = name
	s.GameId = id
	s.BetUnit = betUnit
	s.InitBets = initBets
	s.Basic = new(BasicRecord)
	s.Dist = newDistRecord(betUnit)
	s.Cascade = stats.NewCascadeReport()
	s.Player = newPlayerRecord(betUnit, initBets)
	return s, nil
}

// MergeSpinRecorder 合併多個紀錄員的機台統計（玩家資金不合併）
func MergeSpinRecorder(r []*SpinRecorder) (*SpinRecorder, error) {
	if len(r) == 0 {
		return nil, errs.NewFatal("merge spin record err : empty input")
	}
	r0 := r[0]
	s, err := NewSpinRecorder(r0.GameName, r0.GameId, r0.BetUnit, r0.InitBets)
	if err != nil {
		return s, err
	}
	for _, v := range r {
		if v.GameName != r0.GameName || v.GameId != r0.GameId {
			return s, errs.NewFatal("merge spin record err : different game")
		}
		if v.BetUnit != r0.BetUnit {
			return s, errs.NewFatal("merge spin record err : different bet unit")
		}
		if v.InitBets != r0.InitBets {
			return s, errs.NewFatal("merge spin record err : different init bets")
		}
		b := s.Basic
		b.TotalBet += v.Basic.TotalBet
		b.TotalWin += v.Basic.TotalWin
		b.BaseWin += v.Basic.BaseWin
		b.FreeWin += v.Basic.FreeWin
		b.TotalWinSqSum += v.Basic.TotalWinSqSum
		b.BaseWinSqSum += v.Basic.BaseWinSqSum
		b.FreeWinSqSum += v.Basic.FreeWinSqSum
		b.Rounds += v.Basic.Rounds
		b.Trigger += v.Basic.Trigger
		b.FreeSpins += v.Basic.FreeSpins
		b.Capped += v.Basic.Capped
		b.MaxWin = max(b.MaxWin, v.Basic.MaxWin)
		s.Cascade.Merge(v.Cascade)

		for i := range len(v.Dist.TotalWinCollect) {
			s.Dist.TotalWinCollect[i] += v.Dist.TotalWinCollect[i]
			s.Dist.BaseWinCollect[i] += v.Dist.BaseWinCollect[i]
			s.Dist.FreeWinCollect[i] += v.Dist.FreeWinCollect[i]
		}
	}
	return s, nil
}

// Record 更新機台統計（不含玩家資金）
func (s *SpinRecorder) Record(sp Spin) {
	s.recordBasic(sp)
	s.recordDist(sp)
	s.recordCascade(sp)
}

// RecordWithPlayer 在 Record 的基礎上更新玩家資金，回傳玩家是否離場。
// 餘額不足一注時不紀錄，直接回報離場。
func (s *SpinRecorder) RecordWithPlayer(sp Spin) bool {
	if s.Player.Balance < s.BetUnit {
		s.Player.Bust = true
		return true
	}
	s.Record(sp)
	return s.recordPlayer(sp)
}

// Done 輸出統計報表；報表仍需呼叫 StatReport.Done 計算衍生欄位。
func (s *SpinRecorder) Done() *stats.StatReport {
	bufloat := float64(s.BetUnit)
	bb := bufloat * bufloat
	rf := float64(max(s.Basic.Rounds, 1))

	report := &stats.StatReport{
		Summary: &stats.SummaryReport{
			GameName:    s.GameName,
			GameId:      s.GameId,
			BetUnit:     s.BetUnit,
			TotalBet:    s.Basic.TotalBet,
			TotalWin:    s.Basic.TotalWin,
			BaseWin:     s.Basic.BaseWin,
			FreeWin:     s.Basic.FreeWin,
			RTP:         s.rtp(),
			Trigger:     s.Basic.Trigger,
			TriggerRate: float64(s.Basic.Trigger) / rf,
			FreeSpins:   s.Basic.FreeSpins,
			Capped:      s.Basic.Capped,
			MaxWinMult:  float64(s.Basic.MaxWin) / bufloat,
			NoWinRounds: s.Dist.TotalWinCollect[0],
			HitRate:     1.0 - (float64(s.Dist.TotalWinCollect[0]) / rf),
			Rounds:      s.Basic.Rounds,
		},
		Mult: &stats.MultReport{
			TotalWinMult:      float64(s.Basic.TotalWin) / bufloat,
			BaseWinMult:       float64(s.Basic.BaseWin) / bufloat,
			FreeWinMult:       float64(s.Basic.FreeWin) / bufloat,
			TotalWinMultSqSum: s.Basic.TotalWinSqSum / bb,
			BaseWinMultSqSum:  s.Basic.BaseWinSqSum / bb,
			FreeWinMultSqSum:  s.Basic.FreeWinSqSum / bb,
		},
		Dist: &stats.DistReport{
			WinBucket:       stats.Buckets.WinBucketStr(),
			TotalWinCollect: s.Dist.TotalWinCollect,
			BaseWinCollect:  s.Dist.BaseWinCollect,
			FreeWinCollect:  s.Dist.FreeWinCollect,
		},
		Cascade: cloneCascade(s.Cascade),
		Player: &stats.PlayerReport{
			InitBalance: s.Player.InitBalance,
			Balance:     s.Player.Balance,
			MaxBalance:  s.Player.MaxBalance,
			MinBalance:  s.Player.MinBalance,
			Bust:        s.Player.Bust,
			Cashout:     s.Player.Cashout,
			Alive:       s.Player.Alive,
		},
	}

	length := len(report.Dist.WinBucket)
	totalWinF := make([]float64, length)
	baseWinF := make([]float64, length)
	freeWinF := make([]float64, length)
	for i := range length {
		totalWinF[i] = float64(report.Dist.TotalWinCollect[i]) / rf
		baseWinF[i] = float64(report.Dist.BaseWinCollect[i]) / rf
		freeWinF[i] = float64(report.Dist.FreeWinCollect[i]) / rf
	}
	report.Dist.TotalWinDist = totalWinF
	report.Dist.BaseWinDist = baseWinF
	report.Dist.FreeWinDist = freeWinF

	return report
}

func (s *SpinRecorder) rtp() float64 {
	if s.Basic.Rounds == 0 || s.Basic.TotalBet == 0 {
		return 0
	}
	return float64(s.Basic.TotalWin) / float64(s.Basic.TotalBet)
}

func (s *SpinRecorder) recordBasic(sp Spin) {
	w, bw, fw := float64(sp.Win), float64(sp.BaseWin), float64(sp.FreeWin)

	b := s.Basic
	b.TotalBet += sp.Bet
	b.TotalWin += sp.Win
	b.BaseWin += sp.BaseWin
	b.FreeWin += sp.FreeWin
	b.TotalWinSqSum += w * w
	b.BaseWinSqSum += bw * bw
	b.FreeWinSqSum += fw * fw
	if sp.Triggered {
		b.Trigger++
	}
	b.FreeSpins += sp.FreeSpins
	b.Capped += sp.Capped
	b.MaxWin = max(b.MaxWin, sp.Win)
	b.Rounds++
}

func (s *SpinRecorder) recordDist(sp Spin) {
	d := s.Dist
	bk := d.Bucket
	d.TotalWinCollect[bk.Index(sp.Win)]++
	d.BaseWinCollect[bk.Index(sp.BaseWin)]++
	d.FreeWinCollect[bk.Index(sp.FreeWin)]++
}

func (s *SpinRecorder) recordCascade(sp Spin) {
	c := s.Cascade
	pm := max(sp.PeakMult, 1)
	c.Tumbles += sp.Tumbles
	c.MaxTumbles = max(c.MaxTumbles, sp.Tumbles)
	c.PeakMultSum += pm
	c.PeakMult = max(c.PeakMult, pm)
	c.TumbleCollect[stats.TumbleIndex(sp.Tumbles)]++
}

// cloneCascade 報表與紀錄員不共用 slice
func cloneCascade(c *stats.CascadeReport) *stats.CascadeReport {
	out := stats.NewCascadeReport()
	out.Merge(c)
	return out
}

func (s *SpinRecorder) recordPlayer(sp Spin) bool {
	p := s.Player
	b := s.BetUnit

	p.Balance -= sp.Bet
	p.Balance += sp.Win

	if p.Balance > p.MaxBalance {
		p.MaxBalance = p.Balance
	}
	if p.Balance < p.MinBalance {
		p.MinBalance = p.Balance
	}

	leave := false
	if p.Balance < b {
		p.Bust = true
		leave = true
	}
	if p.Balance >= p.leaveLine {
		p.Cashout = true
		leave = true
	}
	return leave
}

func newDistRecord(bu int) *DistRecord {
	n := len(stats.Buckets.WinBucketStr())
	return &DistRecord{
		Bucket:          stats.Buckets.GetBucketByBetUnit(bu),
		TotalWinCollect: make([]int, n),
		BaseWinCollect:  make([]int, n),
		FreeWinCollect:  make([]int, n),
	}
}

func newPlayerRecord(bu int, initBets int) *PlayerRecord {
	b := bu * initBets // 初始帶入總金額

	return &PlayerRecord{
		InitBalance: b,
		Balance:     b,
		MaxBalance:  b,
		MinBalance:  b,
		leaveLine:   3 * b, // 離場條件（3倍本金）
	}
}
