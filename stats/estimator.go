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

package stats

import (
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// ============================================================
// ** 結構宣告 **
// ============================================================

// 用戶體驗評估
type EstimatorPlayers struct {
	RtpStat     RtpStat
	EventStat   EventStat
	SessionStat SessionStat
}

// Rtp敘事
type RtpStat struct {
	ExpMedian PointStat // 描述體驗的中位數
	ExpPerc   ExpPerc   // 描述玩家的分布(對應RTP)
	RtpPerc   RtpPerc   // 描述Rtp的分布(對應多少比例的玩家)
}

// 用玩家體驗分位數視角看: 最差10％玩家的RTP 最差33%玩家的RTP ...
type ExpPerc struct {
	ExpP10 PointStat
	ExpP33 PointStat
	ExpP67 PointStat
	ExpP90 PointStat
}

// 用Rtp分位數視角看玩家: 有多少玩家體驗到了30%RTP 有多少玩家體驗到了50%RTP ...
type RtpPerc struct {
	Rtp30  PointStat
	Rtp50  PointStat
	Rtp70  PointStat
	Rtp100 PointStat
}

// PointStat 點估計 回傳 估計值 以及信賴區間
type PointStat struct {
	Hat float64
	CI  CI
}

// 事件敘事
type EventStat struct {
	Trigger EventCount // 免費遊戲觸發次數
	Chain   EventCount // 連消 3 輪以上的局數
	Capped  PointStat  // 至少一次觸及封頂的玩家比例
	Bucket  BucketEvent
}

// 事件點估計
type EventCount struct {
	Zero PointStat
	One  PointStat
	Two  PointStat
	More PointStat
}

// 對應分桶的統計
type BucketEvent struct {
	BucketLable []string     // 分桶標籤
	BucketCount []EventCount // 分桶事件點估計
}

// 對應結果敘事
type SessionStat struct {
	Bust    PointStat // 破產
	Cashout PointStat // 贏滿離場
	Alive   PointStat // 活到最後
}

// ============================================================
// ** 對外 : 用戶體驗評估 **
// ============================================================

// EstimatorPlayerExp 用戶體驗評估，每份報表代表一位玩家
//
//  1. RTP 敘事：玩家 RTP 的分位數，以及 RTP 低於門檻的玩家比例
//  2. Event 敘事：免費遊戲觸發、長連消、封頂、各贏分桶落點的次數分布
//  3. Session 敘事：破產、贏滿離場、打到最後的比例
func EstimatorPlayerExp(sts []*StatReport) *EstimatorPlayers {
	out := &EstimatorPlayers{}
	if len(sts) == 0 {
		return out
	}

	rtp := make([]float64, len(sts))
	for i, s := range sts {
		rtp[i] = s.Rtp()
	}
	sort.Float64s(rtp)
	out.RtpStat = RtpStat{
		ExpMedian: quantileStat(rtp, 0.5),
		ExpPerc: ExpPerc{
			ExpP10: quantileStat(rtp, 0.10),
			ExpP33: quantileStat(rtp, 1.0/3.0),
			ExpP67: quantileStat(rtp, 2.0/3.0),
			ExpP90: quantileStat(rtp, 0.90),
		},
		RtpPerc: RtpPerc{
			Rtp30:  belowStat(rtp, 0.30),
			Rtp50:  belowStat(rtp, 0.50),
			Rtp70:  belowStat(rtp, 0.70),
			Rtp100: belowStat(rtp, 1.00),
		},
	}

	out.EventStat.Trigger = eventCount(sts, func(s *StatReport) int { return s.Summary.Trigger })
	out.EventStat.Chain = eventCount(sts, longChains)
	out.EventStat.Capped = share(sts, func(s *StatReport) bool { return s.Summary.Capped > 0 })

	labels := Buckets.WinBucketStr()
	out.EventStat.Bucket = BucketEvent{BucketLable: labels, BucketCount: make([]EventCount, len(labels))}
	for bi := range labels {
		out.EventStat.Bucket.BucketCount[bi] = eventCount(sts, func(s *StatReport) int {
			if bi < len(s.Dist.TotalWinCollect) {
				return s.Dist.TotalWinCollect[bi]
			}
			return 0
		})
	}

	out.SessionStat = SessionStat{
		Bust:    share(sts, func(s *StatReport) bool { return s.Player != nil && s.Player.Bust }),
		Cashout: share(sts, func(s *StatReport) bool { return s.Player != nil && s.Player.Cashout }),
		Alive:   share(sts, func(s *StatReport) bool { return s.Player != nil && s.Player.Alive }),
	}
	return out
}

// longChains 連消 3 輪以上的局數
func longChains(s *StatReport) int {
	if s.Cascade == nil {
		return 0
	}
	n := 0
	for i := 3; i < len(s.Cascade.TumbleCollect); i++ {
		n += s.Cascade.TumbleCollect[i]
	}
	return n
}

// eventCount 玩家遇到事件 0/1/2/3+ 次的比例
func eventCount(sts []*StatReport, count func(*StatReport) int) EventCount {
	var k [4]int
	for _, s := range sts {
		k[min(max(count(s), 0), 3)]++
	}
	return EventCount{
		Zero: pointOf(k[0], len(sts)),
		One:  pointOf(k[1], len(sts)),
		Two:  pointOf(k[2], len(sts)),
		More: pointOf(k[3], len(sts)),
	}
}

func share(sts []*StatReport, hit func(*StatReport) bool) PointStat {
	k := 0
	for _, s := range sts {
		if hit(s) {
			k++
		}
	}
	return pointOf(k, len(sts))
}

func pointOf(k, n int) PointStat {
	hat, ci := proportionCICP(k, n, 0.95)
	return PointStat{Hat: hat, CI: ci}
}

// quantileStat 第 q 分位的點估計與 95% CI；sorted 需已排序
func quantileStat(sorted []float64, q float64) PointStat {
	lo, hi := quantileCI(sorted, q, 0.95)
	return PointStat{Hat: quantilePoint(sorted, q), CI: CI{Lo: lo, Hi: hi}}
}

// belowStat RTP ≤ x0 的玩家比例
func belowStat(data []float64, x0 float64) PointStat {
	hat, ci := percentileCIForValue(data, x0, 0.95)
	return PointStat{Hat: hat, CI: ci}
}

// ============================================================
// ** 內部統計函數 **
// ============================================================

// Clopper–Pearson exact CI for binomial proportion (k successes out of n)
func proportionCICP(k int, n int, confidence float64) (pHat float64, ci CI) {
	if n == 0 {
		return 0, CI{0, 1}
	}
	alpha := 1 - confidence
	pHat = float64(k) / float64(n)

	// Beta PPF 映射，處理邊界
	if k == 0 {
		ci.Lo = 0
	} else {
		b := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
		ci.Lo = b.Quantile(alpha / 2)
	}
	if k == n {
		ci.Hi = 1
	} else {
		b := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
		ci.Hi = b.Quantile(1 - alpha/2)
	}
	return
}

// 問題：給定樣本 data 與門檻 x0，估計 p = P(X ≤ x0) 的點估計與 CI 區間
// 回傳 (pHat, CI)
func percentileCIForValue(data []float64, x0 float64, confidence float64) (pHat float64, ci CI) {
	n := len(data)
	if n == 0 {
		return 0, CI{Lo: 0, Hi: 0}
	}
	// k = 數到 <= x0 的個數
	k := 0
	for _, v := range data {
		if v <= x0 {
			k++
		}
	}
	return proportionCICP(k, n, confidence)
}

// 想估「第 q 分位」的上下界。做法：把 order statistic 的秩視為二項→Beta 反推 p 範圍，再把 p 轉回樣本索引。
// 回傳 (loValue, hiValue)
func quantileCI(data []float64, q, confidence float64) (float64, float64) {
	n := len(data)
	if n == 0 {
		return 0, 0
	}
	if n == 1 {
		return data[0], data[0]
	}
	cp := make([]float64, n)
	copy(cp, data)
	sort.Float64s(cp)

	alpha := 1 - confidence
	k := int(q * float64(n))
	if k < 1 {
		k = 1
	} else if k > n-1 {
		k = n - 1
	}

	// 以 CP 思想反推 p 範圍
	bLo := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
	bHi := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
	pLo := bLo.Quantile(alpha / 2)
	pHi := bHi.Quantile(1 - alpha/2)

	li := int(pLo * float64(n))
	ui := int(pHi * float64(n))
	if ui > 0 {
		ui -= 1
	}
	if li < 0 {
		li = 0
	}
	if li > n-1 {
		li = n - 1
	}
	if ui < 0 {
		ui = 0
	}
	if ui > n-1 {
		ui = n - 1
	}
	return cp[li], cp[ui]
}

// quantilePoint returns the empirical quantile point estimate at q.
func quantilePoint(data []float64, q float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}
	cp := make([]float64, n)
	copy(cp, data)
	sort.Float64s(cp)
	// 最近秩法
	idx := int(q * float64(n))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return cp[idx]
}

// ============================================================
// ** 輸出函數 **
// ============================================================

// Out 以表格輸出玩家體驗評估
func (est *EstimatorPlayers) Out(w io.Writer) {
	// 1) RTP (Player Experience)
	rs := est.RtpStat
	rtpKeys := []string{
		"Median RTP",
		"P10 RTP",
		"P33 RTP",
		"P67 RTP",
		"P90 RTP",
		"≤30% RTP (players)",
		"≤50% RTP (players)",
		"≤70% RTP (players)",
		"≤100% RTP (players)",
	}
	rtpMsg := map[string]string{
		"Median RTP":          fmtPoint(rs.ExpMedian),
		"P10 RTP":             fmtPoint(rs.ExpPerc.ExpP10),
		"P33 RTP":             fmtPoint(rs.ExpPerc.ExpP33),
		"P67 RTP":             fmtPoint(rs.ExpPerc.ExpP67),
		"P90 RTP":             fmtPoint(rs.ExpPerc.ExpP90),
		"≤30% RTP (players)":  fmtPoint(rs.RtpPerc.Rtp30),
		"≤50% RTP (players)":  fmtPoint(rs.RtpPerc.Rtp50),
		"≤70% RTP (players)":  fmtPoint(rs.RtpPerc.Rtp70),
		"≤100% RTP (players)": fmtPoint(rs.RtpPerc.Rtp100),
	}
	fmt.Fprint(w, fmtTable("RTP (Player Experience)", rowsOf(rtpKeys, rtpMsg)))

	// 2) Events
	ev := est.EventStat
	evKeys := []string{"Free spins 0x", "Free spins 1x", "Free spins 2x", "Free spins 3+x", "Long chains 0x", "Long chains 1+x", "Hit max win"}
	chainAny := CI{Lo: 1 - ev.Chain.Zero.CI.Hi, Hi: 1 - ev.Chain.Zero.CI.Lo}
	evMsg := map[string]string{
		"Free spins 0x":   fmtPoint(ev.Trigger.Zero),
		"Free spins 1x":   fmtPoint(ev.Trigger.One),
		"Free spins 2x":   fmtPoint(ev.Trigger.Two),
		"Free spins 3+x":  fmtPoint(ev.Trigger.More),
		"Long chains 0x":  fmtPoint(ev.Chain.Zero),
		"Long chains 1+x": fmtHatCIpct01(1-ev.Chain.Zero.Hat, chainAny),
		"Hit max win":     fmtPoint(ev.Capped),
	}
	fmt.Fprint(w, fmtTable("Events (per player)", rowsOf(evKeys, evMsg)))

	// 3) Buckets：每位玩家落在該桶 0/1/2/3+ 次
	fmt.Fprintln(w, "Win buckets (per player hits)")
	for i, label := range ev.Bucket.BucketLable {
		fmt.Fprintf(w, "  %-14s : %s\n", label, fmtEventCount(ev.Bucket.BucketCount[i]))
	}

	// 4) Session Outcome
	ss := est.SessionStat
	sessionKeys := []string{"Bust", "Cashout", "Alive"}
	sessionMsg := map[string]string{
		"Bust":    fmtPoint(ss.Bust),
		"Cashout": fmtPoint(ss.Cashout),
		"Alive":   fmtPoint(ss.Alive),
	}
	fmt.Fprint(w, fmtTable("Session Outcome", rowsOf(sessionKeys, sessionMsg)))
}

func fmtPoint(ps PointStat) string {
	return fmtHatCIpct01(ps.Hat, ps.CI)
}

func fmtPct01(x float64) string {
	return fmt.Sprintf("%.2f%%", x*100)
}

func fmtHatCIpct01(hat float64, ci CI) string {
	return fmt.Sprintf("%s [%s, %s]", fmtPct01(hat), fmtPct01(ci.Lo), fmtPct01(ci.Hi))
}

func fmtEventCount(ec EventCount) string {
	return fmt.Sprintf("0x: %s | 1x: %s | 2x: %s | 3+x: %s",
		fmtHatCIpct01(ec.Zero.Hat, ec.Zero.CI),
		fmtHatCIpct01(ec.One.Hat, ec.One.CI),
		fmtHatCIpct01(ec.Two.Hat, ec.Two.CI),
		fmtHatCIpct01(ec.More.Hat, ec.More.CI),
	)
}
