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

package cascade

import (
	"io/fs"
	"slices"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/candyreels/catalog/configs"
	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/sdk/core"
	"github.com/zintix-labs/candyreels/sdk/grid"
	"github.com/zintix-labs/candyreels/spec"
)

const (
	jelly spec.SymbolID = 1
	bomb  spec.SymbolID = 7
)

func defaultSetting(t *testing.T) *spec.GameSetting {
	t.Helper()
	raw, err := fs.ReadFile(configs.FS, "candy_fortune_reels.yaml")
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	gs, err := spec.GetGameSettingByYAML(raw)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return gs
}

// pattern 產生四種一般符號交錯、沒有任何相鄰同種的盤面
func pattern(rows, cols int) grid.Grid {
	g := grid.New(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			g.Cells[r*cols+c] = spec.SymbolID(1 + (r+2*c)%4)
		}
	}
	return g
}

// patternFiller 補盤時依位置填入 pattern 值
type patternFiller struct{ start grid.Grid }

func (f *patternFiller) Generate(rows, cols int, _ *core.Core) grid.Grid { return f.start.Clone() }

func (f *patternFiller) Refill(g grid.Grid, empties []int, _ *core.Core) grid.Grid {
	out := g.Clone()
	grid.Clear(out.Cells, empties)
	grid.Gravity(out.Cells, out.Cols, out.Rows, nil)
	p := pattern(out.Rows, out.Cols)
	for i, s := range out.Cells {
		if s == spec.Empty {
			out.Cells[i] = p.Cells[i]
		}
	}
	return out
}

// scriptFiller 依序回傳預先準備的盤面
type scriptFiller struct {
	grids []grid.Grid
	next  int
}

func (f *scriptFiller) Generate(rows, cols int, _ *core.Core) grid.Grid {
	f.next = 1
	return f.grids[0].Clone()
}

func (f *scriptFiller) Refill(g grid.Grid, empties []int, _ *core.Core) grid.Grid {
	i := min(f.next, len(f.grids)-1)
	f.next++
	return f.grids[i].Clone()
}

func jellyRow(g grid.Grid) grid.Grid {
	g = g.Clone()
	for c := 0; c < 5; c++ {
		g.Cells[c] = jelly
	}
	return g
}

func newEngine(t *testing.T, gs *spec.GameSetting, f Filler) *Engine {
	t.Helper()
	cfg, err := ConfigFrom(gs)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	e, err := New(cfg, f)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestSingleClusterSpin(t *testing.T) {
	gs := defaultSetting(t)
	start := jellyRow(pattern(6, 6))
	e := newEngine(t, gs, &patternFiller{start: start})

	type tr struct {
		from, to State
		round    int
	}
	var seen []tr
	e.SetObserver(func(from, to State, round int) { seen = append(seen, tr{from, to, round}) })

	out := e.Run(core.NewSeeded(1), decimal.RequireFromString("1"))
	if len(out.Steps) != 1 {
		t.Fatalf("expected one step, got %d", len(out.Steps))
	}
	st := out.Steps[0]
	if len(st.Clusters) != 1 || st.Clusters[0].Kind != jelly || st.Clusters[0].Size() != 5 {
		t.Fatalf("unexpected clusters: %+v", st.Clusters)
	}
	if st.Clusters[0].Multiplier != 2 {
		t.Fatalf("cluster multiplier must be 2, got %d", st.Clusters[0].Multiplier)
	}
	for i, m := range st.Multipliers {
		want := 1
		if i < 5 {
			want = 2
		}
		if m != want {
			t.Fatalf("multiplier at %d = %d want %d", i, m, want)
		}
	}
	// 0.20 × tier(5)=1 × 2 × 1 / 1
	if !out.TotalWin.Equal(decimal.RequireFromString("0.4")) || !st.Win.Equal(out.TotalWin) {
		t.Fatalf("unexpected win %s", out.TotalWin)
	}
	if !slices.Equal(st.Removed, []int{0, 1, 2, 3, 4}) {
		t.Fatalf("unexpected removed cells %v", st.Removed)
	}
	if !slices.Equal(st.Grid.Cells, start.Cells) {
		t.Fatalf("step grid must be the pre-removal grid")
	}
	if !out.FinalGrid.Full() || !slices.Equal(out.Multipliers, st.Multipliers) {
		t.Fatalf("final state mismatch")
	}
	if out.Tumbles() != 1 || out.PeakMultiplier() != 2 {
		t.Fatalf("tumbles %d peak %d", out.Tumbles(), out.PeakMultiplier())
	}
	want := []tr{
		{StateInitial, StateEvaluating, 0},
		{StateEvaluating, StateResolving, 0},
		{StateResolving, StateRefilling, 0},
		{StateRefilling, StateEvaluating, 1},
		{StateEvaluating, StateSettled, 1},
	}
	if !slices.Equal(seen, want) {
		t.Fatalf("unexpected transitions %v", seen)
	}
}

func TestNoClusterSpin(t *testing.T) {
	gs := defaultSetting(t)
	start := pattern(6, 6)
	e := newEngine(t, gs, &patternFiller{start: start})
	out := e.Run(core.NewSeeded(1), decimal.RequireFromString("2"))
	if len(out.Steps) != 1 || len(out.Steps[0].Clusters) != 0 {
		t.Fatalf("expected a single empty step, got %+v", out.Steps)
	}
	if !out.TotalWin.IsZero() || !out.Steps[0].Win.IsZero() {
		t.Fatalf("expected zero win")
	}
	if !slices.Equal(out.FinalGrid.Cells, start.Cells) || !slices.Equal(out.Steps[0].Grid.Cells, start.Cells) {
		t.Fatalf("grid must be unchanged")
	}
	for _, m := range out.Multipliers {
		if m != 1 {
			t.Fatalf("multipliers must stay 1")
		}
	}
	if out.Tumbles() != 0 || out.PeakMultiplier() != 1 {
		t.Fatalf("empty spin: tumbles %d peak %d", out.Tumbles(), out.PeakMultiplier())
	}
}

func TestMultipliersStickAcrossRounds(t *testing.T) {
	gs := defaultSetting(t)
	base := pattern(6, 6)
	e := newEngine(t, gs, &scriptFiller{grids: []grid.Grid{jellyRow(base), jellyRow(base), base}})
	out := e.Run(core.NewSeeded(1), decimal.RequireFromString("1"))
	if len(out.Steps) != 2 {
		t.Fatalf("expected two steps, got %d", len(out.Steps))
	}
	if out.Steps[1].Clusters[0].Multiplier != 3 {
		t.Fatalf("second round multiplier must be 3, got %d", out.Steps[1].Clusters[0].Multiplier)
	}
	// 0.4 + 0.6
	if !out.TotalWin.Equal(decimal.RequireFromString("1")) {
		t.Fatalf("unexpected total %s", out.TotalWin)
	}
	// 下一次 Spin 重置
	out2 := e.RunFrom(base, core.NewSeeded(1), decimal.RequireFromString("1"))
	for _, m := range out2.Multipliers {
		if m != 1 {
			t.Fatalf("multipliers must reset between spins")
		}
	}
}

func TestMultiplierCap(t *testing.T) {
	gs := defaultSetting(t)
	cfg, _ := ConfigFrom(gs)
	cfg.MultStep, cfg.MultMax = 5, 4
	base := pattern(6, 6)
	e, err := New(cfg, &scriptFiller{grids: []grid.Grid{jellyRow(base), jellyRow(base), base}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out := e.Run(core.NewSeeded(1), decimal.RequireFromString("1"))
	for _, st := range out.Steps {
		if st.Clusters[0].Multiplier != 4 {
			t.Fatalf("multiplier must be capped at 4, got %d", st.Clusters[0].Multiplier)
		}
	}
}

func TestRemovableCellsNextToWinners(t *testing.T) {
	gs := defaultSetting(t)
	start := jellyRow(pattern(6, 6))
	start.Cells[6] = bomb  // (1,0) 與 (0,0) 相鄰
	start.Cells[12] = bomb // (2,0) 不相鄰
	e := newEngine(t, gs, &patternFiller{start: start})
	out := e.Run(core.NewSeeded(1), decimal.RequireFromString("1"))
	st := out.Steps[0]
	if !slices.Equal(st.Removed, []int{0, 1, 2, 3, 4, 6}) {
		t.Fatalf("unexpected removed cells %v", st.Removed)
	}
	if st.Multipliers[6] != 1 || !st.Win.Equal(decimal.RequireFromString("0.4")) {
		t.Fatalf("removable cells must not pay or gain multiplier")
	}
	if out.FinalGrid.Cells[12] != bomb {
		t.Fatalf("bomb not adjacent to a winner must stay")
	}
}

// 補盤永遠成群時停在輪數上限並標記截斷
func TestRoundLimitTruncates(t *testing.T) {
	gs := defaultSetting(t)
	start := jellyRow(pattern(6, 6))
	e := newEngine(t, gs, &scriptFiller{grids: []grid.Grid{start}})

	out := e.Run(core.NewSeeded(1), decimal.RequireFromString("1"))
	if !out.Truncated {
		t.Fatalf("endless cascade must be truncated")
	}
	if len(out.Steps) != maxRounds {
		t.Fatalf("expected %d rounds, got %d", maxRounds, len(out.Steps))
	}
	if !slices.Equal(out.FinalGrid.Cells, start.Cells) {
		t.Fatalf("final grid must be the unresolved refill")
	}

	e = newEngine(t, gs, &patternFiller{start: start})
	if out := e.Run(core.NewSeeded(1), decimal.RequireFromString("1")); out.Truncated {
		t.Fatalf("a settled cascade must not be marked truncated")
	}
}

func TestConstructionErrors(t *testing.T) {
	gs := defaultSetting(t)
	good, _ := ConfigFrom(gs)
	f := &patternFiller{start: pattern(6, 6)}
	cases := map[string]func(c *Config){
		"rows":     func(c *Config) { c.Rows = 0 },
		"cols":     func(c *Config) { c.Cols = -1 },
		"min size": func(c *Config) { c.MinSize = 0 },
		"step":     func(c *Config) { c.MultStep = 0 },
		"max":      func(c *Config) { c.MultMax = 0 },
	}
	for name, mutate := range cases {
		cfg := good
		mutate(&cfg)
		_, err := New(cfg, f)
		if e, ok := errs.AsErr(err); !ok || e.ErrLv != errs.Fatal {
			t.Fatalf("%s: expected fatal error, got %v", name, err)
		}
	}
	if _, err := New(good, nil); err == nil {
		t.Fatalf("nil filler must be rejected")
	}
}

func TestRandomSpinsInvariants(t *testing.T) {
	gs := defaultSetting(t)
	gen, err := grid.NewGenerator(gs.Catalog(), gs.Grid.BonusWeight)
	if err != nil {
		t.Fatalf("generator: %v", err)
	}
	e := newEngine(t, gs, gen)
	rng := core.NewSeeded(99)
	bet := decimal.RequireFromString("1")
	for i := 0; i < 3000; i++ {
		out := e.Run(rng, bet)
		if len(out.Steps) == 0 || !out.FinalGrid.Full() {
			t.Fatalf("spin %d: invalid outcome", i)
		}
		sum := decimal.Zero
		prev := make([]int, len(out.Multipliers))
		for k := range prev {
			prev[k] = 1
		}
		for _, st := range out.Steps {
			if !st.Grid.Full() {
				t.Fatalf("step grid must be full")
			}
			for k, m := range st.Multipliers {
				if m < prev[k] || m > gs.Multiplier.Max {
					t.Fatalf("multiplier not monotone at %d: %d -> %d", k, prev[k], m)
				}
			}
			prev = st.Multipliers
			if st.Win.IsNegative() {
				t.Fatalf("negative step win")
			}
			sum = sum.Add(st.Win)
		}
		if !sum.Equal(out.TotalWin) {
			t.Fatalf("total must equal sum of steps")
		}
	}
}

func TestStateString(t *testing.T) {
	if StateSettled.String() != "settled" || State(99).String() != "state(99)" {
		t.Fatalf("unexpected state names")
	}
}
