package stats

import (
	"fmt"

	"golang.org/x/text/message"
)

// TumbleBuckets 連消次數分布的欄位數；最後一欄為「以上」
const TumbleBuckets = 10

// CascadeReport 主遊戲連消統計
//
// Tumbles 為得獎輪次（一局沒有得獎為 0）；PeakMult 為結算時盤面最大格位倍數。
type CascadeReport struct {
	Tumbles       int       `json:"Tumbles"`
	MaxTumbles    int       `json:"MaxTumbles"`
	AvgTumbles    float64   `json:"AvgTumbles"`
	PeakMultSum   int       `json:"PeakMultSum"`
	PeakMult      int       `json:"PeakMult"`
	AvgPeakMult   float64   `json:"AvgPeakMult"`
	TumbleCollect []int     `json:"TumbleCollect"`
	TumbleDist    []float64 `json:"TumbleDist"`
}

// NewCascadeReport 建立空的連消統計
func NewCascadeReport() *CascadeReport {
	return &CascadeReport{
		PeakMult:      1,
		TumbleCollect: make([]int, TumbleBuckets+1),
	}
}

// TumbleIndex 連消次數對應的分布欄位
func TumbleIndex(tumbles int) int {
	return min(max(tumbles, 0), TumbleBuckets)
}

// Merge 累加另一份統計（平均值需再呼叫 done）
func (c *CascadeReport) Merge(o *CascadeReport) {
	if o == nil {
		return
	}
	c.Tumbles += o.Tumbles
	c.MaxTumbles = max(c.MaxTumbles, o.MaxTumbles)
	c.PeakMultSum += o.PeakMultSum
	c.PeakMult = max(c.PeakMult, o.PeakMult)
	for i := range min(len(c.TumbleCollect), len(o.TumbleCollect)) {
		c.TumbleCollect[i] += o.TumbleCollect[i]
	}
}

func (c *CascadeReport) done(rounds int) {
	if rounds <= 0 {
		return
	}
	rf := float64(rounds)
	c.AvgTumbles = float64(c.Tumbles) / rf
	c.AvgPeakMult = float64(c.PeakMultSum) / rf
	c.TumbleDist = make([]float64, len(c.TumbleCollect))
	for i, n := range c.TumbleCollect {
		c.TumbleDist[i] = float64(n) / rf
	}
}

func (c *CascadeReport) fmtRows(p *message.Printer) ([]string, map[string]string) {
	chain := 0
	for i := 2; i < len(c.TumbleCollect); i++ {
		chain += c.TumbleCollect[i]
	}
	var chainRate float64
	if len(c.TumbleDist) > 0 {
		for i := 2; i < len(c.TumbleDist); i++ {
			chainRate += c.TumbleDist[i]
		}
	}
	rows := map[string]string{
		"Avg Tumbles":   p.Sprintf("%.3f", c.AvgTumbles),
		"Max Tumbles":   p.Sprintf("%d", c.MaxTumbles),
		"Chain Spins":   p.Sprintf("%d (%.2f %%)", chain, 100.0*chainRate),
		"Avg Peak Mult": p.Sprintf("%.3f x", c.AvgPeakMult),
		"Peak Mult":     fmt.Sprintf("%d x", c.PeakMult),
	}
	return []string{"Avg Tumbles", "Max Tumbles", "Chain Spins", "Avg Peak Mult", "Peak Mult"}, rows
}
