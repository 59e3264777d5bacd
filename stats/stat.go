package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/zintix-labs/candyreels/spec"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var lang language.Tag = language.English

// 信賴區間
type CI struct {
	Lo float64 `json:"Lo"`
	Hi float64 `json:"Hi"`
}

// StatReport 遊戲統計報告
type StatReport struct {
	Summary *SummaryReport `json:"Summary"`
	Mult    *MultReport    `json:"Mult"`
	Dist    *DistReport    `json:"Dist"`
	Cascade *CascadeReport `json:"Cascade,omitzero"`
	Player  *PlayerReport  `json:"Player,omitzero"`
	isDone  bool
}

type SummaryReport struct {
	GameName    string   `json:"GameName"`
	GameId      spec.GID `json:"GameId"`
	BetUnit     int      `json:"BetUnit"` // 最小貨幣單位
	TotalBet    int      `json:"TotalBet"`
	TotalWin    int      `json:"TotalWin"`
	BaseWin     int      `json:"BaseWin"`
	FreeWin     int      `json:"FreeWin"`
	RTP         float64  `json:"RTP"`
	RtpCI       CI       `json:"RtpCI"`
	Std         float64  `json:"Std"`
	Cv          float64  `json:"Cv"`
	Trigger     int      `json:"Trigger"`
	TriggerRate float64  `json:"TriggerRate"`
	FreeSpins   int      `json:"FreeSpins"`  // 免費遊戲總次數（含 retrigger）
	Capped      int      `json:"Capped"`     // 觸及封頂的 spin 數
	MaxWinMult  float64  `json:"MaxWinMult"` // 單回合最大贏倍
	NoWinRounds int      `json:"NoWinRounds"`
	HitRate     float64  `json:"HitRate"`
	Rounds      int      `json:"Rounds"`
}

// MultReport 贏倍統計
//
// 紀錄時不紀錄，避免轉型成本。紀錄完成後Done()會將結果整理填入
type MultReport struct {
	TotalWinMult      float64 `json:"TotalWinMult"`
	BaseWinMult       float64 `json:"BaseWinMult"`
	FreeWinMult       float64 `json:"FreeWinMult"`
	TotalWinMultSqSum float64 `json:"TotalWinMultSqSum"` // 平方和
	BaseWinMultSqSum  float64 `json:"BaseWinMultSqSum"`  // 平方和
	FreeWinMultSqSum  float64 `json:"FreeWinMultSqSum"`  // 平方和
}

// DistReport 分數區間落點統計
type DistReport struct {
	WinBucket       []string  `json:"WinBucket"`
	TotalWinCollect []int     `json:"TotalWinCollect"`
	BaseWinCollect  []int     `json:"BaseWinCollect"`
	FreeWinCollect  []int     `json:"FreeWinCollect"`
	TotalWinDist    []float64 `json:"TotalWinDist"`
	BaseWinDist     []float64 `json:"BaseWinDist"`
	FreeWinDist     []float64 `json:"FreeWinDist"`
}

// PlayerReport 玩家統計
//
// 需使用PlayerRecord 才會統計
type PlayerReport struct {
	InitBalance int  `json:"InitBalance"`
	Balance     int  `json:"Balance"`
	MaxBalance  int  `json:"MaxBalance"`
	MinBalance  int  `json:"MinBalance"`
	Bust        bool `json:"Bust"`
	Cashout     bool `json:"Cashout"`
	Alive       bool `json:"Alive"`
}

// ============================================================
// ** 公開方法 **
// ============================================================

// Done 將累積計數轉換為最終統計結果並鎖定 isDone 標記。
//
// 所有遊戲統計過程因為性能原因只處理int的紀錄，所以統計完成後
//
// 請使用 Done 來通知 Statistician 統計已經完成，可以一次性計算統計結果
func (s *StatReport) Done() {
	if s.isDone {
		return
	}
	// Summary
	s.Summary.RTP = s.Rtp()
	s.Summary.RtpCI = s.Ci()
	s.Summary.Std = s.Std()
	s.Summary.Cv = s.Cv()

	if s.Cascade != nil {
		s.Cascade.done(s.Summary.Rounds)
	}

	// Player
	if s.Player != nil {
		s.Player.Alive = !(s.Player.Bust || s.Player.Cashout)
	}

	s.isDone = true
}

// Rtp 回傳整體 RTP（總贏分 / 總押注）
func (s *StatReport) Rtp() float64 {
	if s.Summary.Rounds == 0 || s.Summary.TotalBet == 0 {
		return 0
	}
	return (float64(s.Summary.TotalWin) / float64(s.Summary.TotalBet))
}

// Std 回傳單局贏分的標準差（以投注單位為基礎）
func (s *StatReport) Std() float64 {
	if s.Summary.Rounds < 2 || s.Summary.BetUnit == 0 {
		return 0
	}
	rounds := float64(s.Summary.Rounds)

	winMultPow := s.Mult.TotalWinMult * s.Mult.TotalWinMult
	variance := (s.Mult.TotalWinMultSqSum - winMultPow/rounds) / (rounds - 1)

	if variance < 0 {
		variance = 0
	}

	std := math.Sqrt(variance)
	return std
}

// Cv 回傳單局贏分的變異係數
func (s *StatReport) Cv() float64 {
	rtp := s.Rtp()
	std := s.Std()
	if rtp <= 0 {
		return 0
	}
	return (std / rtp)
}

// Ci 回傳(95% Rtp)信賴區間
func (s *StatReport) Ci() CI {
	rtp := s.Rtp()
	std := s.Std()
	rtpSe := float64(0)
	if s.Summary.Rounds > 1 {
		rtpSe = std / math.Sqrt(float64(s.Summary.Rounds))
	}
	ci := CI{
		Lo: max(rtp-1.96*rtpSe, 0.0),
		Hi: rtp + 1.96*rtpSe,
	}
	return ci
}

func (s *StatReport) WriteWith(w io.Writer, rep StatReportRender) error {
	s.Done()
	return rep.Write(w, s)
}

// StdOut 印出耗時與機台報表
func (s *StatReport) StdOut(ut time.Duration) {
	s.Done()
	fmt.Print(usedTime(ut, s.Summary.Rounds))
	fmt.Println(s.table())
}

// ============================================================
// ** 內部方法 **
// ============================================================

// row 表格一列
type row struct {
	k, v string
}

func rowsOf(keys []string, m map[string]string) []row {
	out := make([]row, 0, len(keys))
	for _, k := range keys {
		out = append(out, row{k, m[k]})
	}
	return out
}

func usedTime(d time.Duration, spins int) string {
	p := message.NewPrinter(lang)
	d = d.Abs()
	sec := max(d.Seconds(), 1e-9)
	sps := int(float64(spins) / sec)
	switch {
	case sec < 60.0:
		return p.Sprintf("used: %.2f seconds\nsps : %d spins/sec\n", sec, sps)
	case d < time.Hour:
		return p.Sprintf("used: %dm %ds\nsps : %d spins/sec\n", int(d.Minutes()), int(d.Seconds())%60, sps)
	}
	return p.Sprintf("used: %dh:%dm:%ds\nsps : %d spins/sec\n", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60, sps)
}

// table 機台報表：基本數據、免費遊戲、連消三段
func (s *StatReport) table() string {
	p := message.NewPrinter(lang)
	sm := s.Summary
	avgFree := 0.0
	if sm.Trigger > 0 {
		avgFree = float64(sm.FreeSpins) / float64(sm.Trigger)
	}
	basic := []row{
		{"Game Name", sm.GameName},
		{"Game ID", fmt.Sprintf("%d", sm.GameId)},
		{"Bet Unit", p.Sprintf("%d", sm.BetUnit)},
		{"Total Rounds", p.Sprintf("%d", sm.Rounds)},
		{"Total RTP", p.Sprintf("%.2f %%", 100.0*sm.RTP)},
		{"RTP 95% CI", p.Sprintf("[%.2f%%,%.2f%%]", 100.0*sm.RtpCI.Lo, 100.0*sm.RtpCI.Hi)},
		{"Total Bet", p.Sprintf("%d", sm.TotalBet)},
		{"Total Win", p.Sprintf("%d", sm.TotalWin)},
		{"Hit Rate", p.Sprintf("%.2f %%", 100.0*sm.HitRate)},
		{"NoWin Rounds", p.Sprintf("%d", sm.NoWinRounds)},
		{"Max Win Mult", p.Sprintf("%.2f x", sm.MaxWinMult)},
		{"Capped Spins", p.Sprintf("%d", sm.Capped)},
		{"STD", p.Sprintf("%.3f", sm.Std)},
		{"CV", p.Sprintf("%.3f", sm.Cv)},
	}
	free := []row{
		{"Base Win", p.Sprintf("%d", sm.BaseWin)},
		{"Free Win", p.Sprintf("%d", sm.FreeWin)},
		{"Trigger", p.Sprintf("%d", sm.Trigger)},
		{"Trigger Rate", p.Sprintf("1 in %.1f", inv(sm.TriggerRate))},
		{"Avg Free Spins", p.Sprintf("%.2f", avgFree)},
	}
	if s.Cascade == nil {
		return fmtTable(sm.GameName, basic, free)
	}
	return fmtTable(sm.GameName, basic, free, rowsOf(s.Cascade.fmtRows(p)))
}

func inv(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return 1 / x
}

// fmtTable 以 runewidth 對齊的兩欄表格，每個 section 之間加分隔線
func fmtTable(title string, sections ...[]row) string {
	kw, vw := runewidth.StringWidth(title)-1, 0
	for _, sec := range sections {
		for _, r := range sec {
			kw = max(kw, runewidth.StringWidth(r.k))
			vw = max(vw, runewidth.StringWidth(r.v))
		}
	}
	kw += 2
	vw += 2
	inner := kw + vw + 1

	var b strings.Builder
	divider := "+" + strings.Repeat("-", kw) + "+" + strings.Repeat("-", vw) + "+\n"
	b.WriteString("+" + strings.Repeat("-", inner) + "+\n")
	left := (inner - runewidth.StringWidth(title)) / 2
	b.WriteString("|" + blank(left) + title + blank(inner-runewidth.StringWidth(title)-left) + "|\n")
	for _, sec := range sections {
		b.WriteString(divider)
		for _, r := range sec {
			b.WriteString("| " + runewidth.FillRight(r.k, kw-2) + " | " + runewidth.FillRight(r.v, vw-2) + " |\n")
		}
	}
	b.WriteString(divider)
	return b.String()
}

func blank(w int) string {
	if w < 1 {
		return ""
	}
	return strings.Repeat(" ", w)
}
