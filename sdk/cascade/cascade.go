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

// Package cascade 實作單次 Spin 的消除下落流程。
//
// 狀態轉移：Initial → Evaluating → Resolving → Refilling → Evaluating … → Settled。
// 倍數盤面以格位為準，在同一次 Spin 內跨輪保留，下一次 Spin 重置為 1。
package cascade

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/sdk/calc"
	"github.com/zintix-labs/candyreels/sdk/core"
	"github.com/zintix-labs/candyreels/sdk/grid"
	"github.com/zintix-labs/candyreels/sdk/payout"
	"github.com/zintix-labs/candyreels/spec"
)

// maxRounds 單次 Spin 的輪數上限。正常權重下不可能到達，用來保護注入的 Filler。
// 到達上限時盤面上仍有的群組不計分，Outcome.Truncated 為 true。
const maxRounds = 1000

type State uint8

const (
	StateInitial State = iota
	StateEvaluating
	StateResolving
	StateRefilling
	StateSettled
)

var stateName = [...]string{"initial", "evaluating", "resolving", "refilling", "settled"}

func (s State) String() string {
	if int(s) < len(stateName) {
		return stateName[s]
	}
	return fmt.Sprintf("state(%d)", s)
}

// Filler 產生與補滿盤面（grid.Generator 為預設實作）
type Filler interface {
	Generate(rows, cols int, c *core.Core) grid.Grid
	Refill(g grid.Grid, empties []int, c *core.Core) grid.Grid
}

// Observer 狀態轉移掛鉤，round 為目前輪次（從 0 開始）
type Observer func(from, to State, round int)

// Config 引擎參數
type Config struct {
	Rows     int
	Cols     int
	MinSize  int
	MultStep int
	MultMax  int
	Catalog  *spec.SymbolCatalog
	Payout   *payout.Calculator
}

// ConfigFrom 由已 Init 的設定取出引擎參數
func ConfigFrom(gs *spec.GameSetting) (Config, error) {
	p, err := payout.New(gs)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Rows:     gs.Grid.Rows,
		Cols:     gs.Grid.Cols,
		MinSize:  gs.Cluster.MinSize,
		MultStep: gs.Multiplier.Step,
		MultMax:  gs.Multiplier.Max,
		Catalog:  gs.Catalog(),
		Payout:   p,
	}, nil
}

// ClusterWin 單一群組的派彩明細
type ClusterWin struct {
	calc.Cluster
	Multiplier int             `json:"multiplier"`
	Win        decimal.Decimal `json:"win"`
}

// Step 一輪消除的紀錄。
//   - Grid 為消除前盤面。
//   - Multipliers 為本輪加倍後的倍數盤面。
//   - Removed 含群組格與被波及的 removable 格，由小到大排序。
type Step struct {
	Index       int             `json:"index"`
	Grid        grid.Grid       `json:"grid"`
	Clusters    []ClusterWin    `json:"clusters"`
	Multipliers []int           `json:"multipliers"`
	Removed     []int           `json:"removed"`
	Win         decimal.Decimal `json:"win"`
}

// Outcome 一次 Spin 的完整結果，所有切片皆為獨立拷貝。
type Outcome struct {
	Steps       []Step          `json:"steps"`
	FinalGrid   grid.Grid       `json:"final_grid"`
	Multipliers []int           `json:"multipliers"`
	TotalWin    decimal.Decimal `json:"total_win"`
	Truncated   bool            `json:"truncated,omitempty"`
}

// LargestCluster 回傳所有輪次中符合 match 的最大群組大小
func (o *Outcome) LargestCluster(match func(spec.SymbolID) bool) int {
	best := 0
	for _, st := range o.Steps {
		for _, cl := range st.Clusters {
			if match(cl.Kind) && cl.Size() > best {
				best = cl.Size()
			}
		}
	}
	return best
}

// Tumbles 有得獎群組的輪次數（無得獎局為 0）
func (o *Outcome) Tumbles() int {
	n := 0
	for _, st := range o.Steps {
		if len(st.Clusters) > 0 {
			n++
		}
	}
	return n
}

// PeakMultiplier 結算時盤面上最大的格位倍數
func (o *Outcome) PeakMultiplier() int {
	peak := 1
	for _, m := range o.Multipliers {
		peak = max(peak, m)
	}
	return peak
}

// Engine 由單一機台持有，不可併發使用。
type Engine struct {
	cfg    Config
	filler Filler
	finder *calc.ClusterFinder
	obs    Observer
	mult   []int
	hit    []bool
	nb     []int
}

// New 建立引擎；參數不合法時回傳 errs.Fatal
func New(cfg Config, filler Filler) (*Engine, error) {
	switch {
	case cfg.Rows <= 0 || cfg.Cols <= 0:
		return nil, errs.NewFatal(fmt.Sprintf("cascade: invalid grid dimensions %dx%d", cfg.Rows, cfg.Cols))
	case cfg.MinSize <= 0:
		return nil, errs.NewFatal(fmt.Sprintf("cascade: min cluster size must be > 0, got %d", cfg.MinSize))
	case cfg.MultStep <= 0:
		return nil, errs.NewFatal(fmt.Sprintf("cascade: multiplier step must be > 0, got %d", cfg.MultStep))
	case cfg.MultMax < 1:
		return nil, errs.NewFatal(fmt.Sprintf("cascade: multiplier max must be >= 1, got %d", cfg.MultMax))
	case filler == nil:
		return nil, errs.NewFatal("cascade: nil filler")
	case cfg.Catalog == nil || cfg.Payout == nil:
		return nil, errs.NewFatal("cascade: catalog and payout are required")
	}
	finder, err := calc.NewClusterFinder(cfg.Rows, cfg.Cols, cfg.Catalog)
	if err != nil {
		return nil, err
	}
	n := cfg.Rows * cfg.Cols
	return &Engine{
		cfg:    cfg,
		filler: filler,
		finder: finder,
		mult:   make([]int, n),
		hit:    make([]bool, n),
		nb:     make([]int, 0, 4),
	}, nil
}

// SetObserver 設定狀態轉移掛鉤，nil 表示關閉
func (e *Engine) SetObserver(o Observer) {
	e.obs = o
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Run 以 Filler 產生初始盤面後執行
func (e *Engine) Run(c *core.Core, bet decimal.Decimal) Outcome {
	g := e.filler.Generate(e.cfg.Rows, e.cfg.Cols, c)
	return e.run(g, c, bet)
}

// RunFrom 以指定初始盤面執行（回放與測試用），g 不會被修改
func (e *Engine) RunFrom(g grid.Grid, c *core.Core, bet decimal.Decimal) Outcome {
	if g.Rows != e.cfg.Rows || g.Cols != e.cfg.Cols || len(g.Cells) != e.cfg.Rows*e.cfg.Cols {
		panic(fmt.Sprintf("cascade: grid %dx%d does not match engine %dx%d", g.Rows, g.Cols, e.cfg.Rows, e.cfg.Cols))
	}
	return e.run(g.Clone(), c, bet)
}

func (e *Engine) run(g grid.Grid, c *core.Core, bet decimal.Decimal) Outcome {
	for i := range e.mult {
		e.mult[i] = 1
	}
	out := Outcome{TotalWin: decimal.Zero}
	e.transit(StateInitial, StateEvaluating, 0)

	for round := 0; ; round++ {
		clusters := e.finder.Find(g, e.cfg.MinSize)
		if len(clusters) == 0 || round >= maxRounds {
			out.Truncated = len(clusters) > 0
			if len(out.Steps) == 0 {
				out.Steps = append(out.Steps, Step{
					Index:       0,
					Grid:        g.Clone(),
					Multipliers: slices.Clone(e.mult),
					Win:         decimal.Zero,
				})
			}
			e.transit(StateEvaluating, StateSettled, round)
			break
		}

		e.transit(StateEvaluating, StateResolving, round)
		st := e.resolve(round, g, clusters, bet)
		out.Steps = append(out.Steps, st)
		out.TotalWin = out.TotalWin.Add(st.Win)

		e.transit(StateResolving, StateRefilling, round)
		g = e.filler.Refill(g, st.Removed, c)
		e.transit(StateRefilling, StateEvaluating, round+1)
	}

	out.FinalGrid = g.Clone()
	out.Multipliers = slices.Clone(e.mult)
	return out
}

// resolve 加倍、計分並標記要移除的格子
func (e *Engine) resolve(round int, g grid.Grid, clusters []calc.Cluster, bet decimal.Decimal) Step {
	for i := range e.hit {
		e.hit[i] = false
	}
	for _, cl := range clusters {
		for _, idx := range cl.Cells {
			e.hit[idx] = true
		}
	}
	// 同一輪每格只加一次
	for idx, h := range e.hit {
		if h {
			e.mult[idx] = min(e.mult[idx]+e.cfg.MultStep, e.cfg.MultMax)
		}
	}

	st := Step{
		Index:    round,
		Grid:     g.Clone(),
		Clusters: make([]ClusterWin, 0, len(clusters)),
		Win:      decimal.Zero,
	}
	for _, cl := range clusters {
		m := 1
		for _, idx := range cl.Cells {
			m = max(m, e.mult[idx])
		}
		win := e.cfg.Payout.PayFor(cl, m, bet)
		st.Clusters = append(st.Clusters, ClusterWin{Cluster: cl, Multiplier: m, Win: win})
		st.Win = st.Win.Add(win)
	}
	st.Multipliers = slices.Clone(e.mult)

	// 被波及的 removable 格：只移除，不計分、不加倍
	removed := make([]int, 0, len(e.hit))
	for idx, h := range e.hit {
		if h {
			removed = append(removed, idx)
			continue
		}
		if !e.cfg.Catalog.IsSpecial(g.Cells[idx]).IsRemovableOnly() {
			continue
		}
		e.nb = g.Neighbors(idx, e.nb)
		for _, n := range e.nb {
			if e.hit[n] {
				removed = append(removed, idx)
				break
			}
		}
	}
	st.Removed = removed
	return st
}

func (e *Engine) transit(from, to State, round int) {
	if e.obs != nil {
		e.obs(from, to, round)
	}
}
