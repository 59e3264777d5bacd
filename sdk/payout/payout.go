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

// Package payout 計算群組派彩。
//
//	pay = base_value(kind) × tier(count) × multiplier × bet / reference_bet
//
// 全程以 decimal 運算，不做捨入；金額精度由外層在入帳時處理。
package payout

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/sdk/calc"
	"github.com/zintix-labs/candyreels/spec"
)

type tier struct {
	minCount int
	factor   decimal.Decimal
}

// Calculator 建立後唯讀，可共用。
type Calculator struct {
	cat   *spec.SymbolCatalog
	tiers []tier
	ref   decimal.Decimal
}

// New 由已 Init 的設定建立派彩計算器
func New(gs *spec.GameSetting) (*Calculator, error) {
	if gs == nil || gs.Catalog() == nil {
		return nil, errs.NewFatal("payout: game setting is not initialized")
	}
	ts := make([]tier, len(gs.PayTiers))
	for i, t := range gs.PayTiers {
		ts[i] = tier{minCount: t.MinCount, factor: decimal.NewFromFloat(t.Factor)}
	}
	return &Calculator{cat: gs.Catalog(), tiers: ts, ref: gs.Bet.ReferenceBet()}, nil
}

// TierFactor 回傳 count 對應的倍率（取 min_count <= count 的最後一階）；未達第一階回傳 0。
func (p *Calculator) TierFactor(count int) decimal.Decimal {
	i := sort.Search(len(p.tiers), func(i int) bool { return p.tiers[i].minCount > count })
	if i == 0 {
		return decimal.Zero
	}
	return p.tiers[i-1].factor
}

// PayFor 計算單一群組派彩；multiplier < 1 視為 1，非正押注回傳 0。
func (p *Calculator) PayFor(cl calc.Cluster, multiplier int, bet decimal.Decimal) decimal.Decimal {
	if !bet.IsPositive() || cl.Kind == spec.Empty {
		return decimal.Zero
	}
	f := p.TierFactor(cl.Size())
	if f.IsZero() {
		return decimal.Zero
	}
	multiplier = max(multiplier, 1)
	return p.cat.BaseValueOf(cl.Kind).
		Mul(f).
		Mul(decimal.NewFromInt(int64(multiplier))).
		Mul(bet).
		Div(p.ref)
}
