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

package spec

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/candyreels/errs"
)

// GridSetting 盤面尺寸；BonusWeight 為主遊戲 bonus 符號權重（負值表示沿用符號設定）。
type GridSetting struct {
	Rows        int `yaml:"rows"          json:"rows"`
	Cols        int `yaml:"cols"          json:"cols"`
	BonusWeight int `yaml:"bonus_weight"  json:"bonus_weight"`
}

type ClusterSetting struct {
	MinSize int `yaml:"min_size"  json:"min_size"`
}

// MultiplierSetting 黏性倍數：每次參與得獎 +Step，上限 Max。
type MultiplierSetting struct {
	Step int `yaml:"step"  json:"step"`
	Max  int `yaml:"max"   json:"max"`
}

// BetSetting 押注限制。金額在設定檔以數字表示，Init 後一律以 decimal 運算。
type BetSetting struct {
	Min       float64 `yaml:"min"        json:"min"`
	Max       float64 `yaml:"max"        json:"max"`
	Reference float64 `yaml:"reference"  json:"reference"`
	Precision int32   `yaml:"precision"  json:"precision"`

	min decimal.Decimal
	max decimal.Decimal
	ref decimal.Decimal
}

func (b *BetSetting) init() error {
	for _, v := range []float64{b.Min, b.Max, b.Reference} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errs.NewFatal("bet limits must be finite")
		}
	}
	if b.Reference <= 0 {
		return errs.NewFatal(fmt.Sprintf("bet.reference must > 0, got %v", b.Reference))
	}
	if b.Min <= 0 || b.Max < b.Min {
		return errs.NewFatal(fmt.Sprintf("bet range invalid: min=%v max=%v", b.Min, b.Max))
	}
	if b.Precision < 0 || b.Precision > 8 {
		return errs.NewFatal(fmt.Sprintf("bet.precision must be in [0,8], got %d", b.Precision))
	}
	b.min = decimal.NewFromFloat(b.Min)
	b.max = decimal.NewFromFloat(b.Max)
	b.ref = decimal.NewFromFloat(b.Reference)
	return nil
}

func (b *BetSetting) MinBet() decimal.Decimal       { return b.min }
func (b *BetSetting) MaxBet() decimal.Decimal       { return b.max }
func (b *BetSetting) ReferenceBet() decimal.Decimal { return b.ref }

// Validate 檢查押注：必須 > 0、在上下限之內，且不超過金額精度。
func (b *BetSetting) Validate(bet decimal.Decimal) error {
	if !bet.IsPositive() {
		return errs.ErrInvalidBet.With("bet must be > 0")
	}
	if bet.LessThan(b.min) || bet.GreaterThan(b.max) {
		return errs.ErrInvalidBet.With(fmt.Sprintf("bet %s out of range [%s, %s]", bet, b.min, b.max))
	}
	if !bet.Equal(bet.Truncate(b.Precision)) {
		return errs.ErrInvalidBet.With(fmt.Sprintf("bet %s exceeds precision %d", bet, b.Precision))
	}
	return nil
}

// Money 把金額截斷到設定精度（只捨不入）。
func (b *BetSetting) Money(v decimal.Decimal) decimal.Decimal {
	return v.Truncate(b.Precision)
}

// PayTier 群組大小達 MinCount 以上時的倍率
type PayTier struct {
	MinCount int     `yaml:"min_count"  json:"min_count"`
	Factor   float64 `yaml:"factor"     json:"factor"`
}

func validPayTiers(tiers []PayTier, minSize int) error {
	if len(tiers) == 0 {
		return errs.NewFatal("pay_tiers must not be empty")
	}
	if !sort.SliceIsSorted(tiers, func(i, j int) bool { return tiers[i].MinCount < tiers[j].MinCount }) {
		return errs.NewFatal("pay_tiers must be sorted by min_count")
	}
	if tiers[0].MinCount != minSize {
		return errs.NewFatal(fmt.Sprintf("first pay tier min_count must equal cluster.min_size %d, got %d", minSize, tiers[0].MinCount))
	}
	for i, t := range tiers {
		if t.Factor < 0 || math.IsNaN(t.Factor) || math.IsInf(t.Factor, 0) {
			return errs.NewFatal(fmt.Sprintf("pay tier #%d factor must be finite and >= 0", i))
		}
		if i == 0 {
			continue
		}
		if t.MinCount == tiers[i-1].MinCount {
			return errs.NewFatal(fmt.Sprintf("duplicate pay tier min_count %d", t.MinCount))
		}
		if t.Factor < tiers[i-1].Factor {
			return errs.NewFatal(fmt.Sprintf("pay tier factors must be non-decreasing at min_count %d", t.MinCount))
		}
	}
	return nil
}

// FreeSpinSetting 免費遊戲觸發設定
type FreeSpinSetting struct {
	TriggerSize    int `yaml:"trigger_size"      json:"trigger_size"`
	BaseSpins      int `yaml:"base_spins"        json:"base_spins"`
	ExtraPerMember int `yaml:"extra_per_member"  json:"extra_per_member"`
	MaxGrant       int `yaml:"max_grant"         json:"max_grant"`
	BonusWeight    int `yaml:"bonus_weight"      json:"bonus_weight"`
}

func (f *FreeSpinSetting) valid(minSize int, hasBonus bool) error {
	if !hasBonus {
		return nil
	}
	if f.TriggerSize < minSize {
		return errs.NewFatal(fmt.Sprintf("free_spins.trigger_size must >= cluster.min_size %d, got %d", minSize, f.TriggerSize))
	}
	if f.BaseSpins < 1 {
		return errs.NewFatal("free_spins.base_spins must >= 1")
	}
	if f.ExtraPerMember < 0 {
		return errs.NewFatal("free_spins.extra_per_member must >= 0")
	}
	if f.MaxGrant < f.BaseSpins {
		return errs.NewFatal(fmt.Sprintf("free_spins.max_grant must >= base_spins, got %d", f.MaxGrant))
	}
	return nil
}

// Grant 回傳大小為 size 的 bonus 群組給予的免費次數；未達門檻回傳 0。
func (f *FreeSpinSetting) Grant(size int) int {
	if f.TriggerSize <= 0 || size < f.TriggerSize {
		return 0
	}
	n := f.BaseSpins + f.ExtraPerMember*(size-f.TriggerSize)
	return min(n, f.MaxGrant)
}

// BuyBonusSetting 購買免費遊戲
type BuyBonusSetting struct {
	Enabled  bool    `yaml:"enabled"    json:"enabled"`
	CostMult float64 `yaml:"cost_mult"  json:"cost_mult"`
}

func (b *BuyBonusSetting) valid(fs FreeSpinSetting) error {
	if !b.Enabled {
		return nil
	}
	if b.CostMult <= 0 || math.IsNaN(b.CostMult) || math.IsInf(b.CostMult, 0) {
		return errs.NewFatal("buy_bonus.cost_mult must > 0")
	}
	if fs.BaseSpins < 1 {
		return errs.NewFatal("buy_bonus requires free_spins.base_spins >= 1")
	}
	return nil
}

// Cost 回傳以 bet 購買的價格
func (b *BuyBonusSetting) Cost(bet decimal.Decimal) decimal.Decimal {
	return bet.Mul(decimal.NewFromFloat(b.CostMult))
}
