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

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/candyreels/errs"
)

// SymbolID 符號編號。0 保留為空格，種類從 1 開始依設定順序編號。
type SymbolID int16

// Empty 代表被移除、尚未補滿的格子。
const Empty SymbolID = 0

// Flags 符號能力旗標
type Flags uint8

const (
	FlagWild Flags = 1 << iota
	FlagBonusTrigger
	FlagRemovableOnly
)

func (f Flags) IsWild() bool          { return f&FlagWild != 0 }
func (f Flags) IsBonusTrigger() bool  { return f&FlagBonusTrigger != 0 }
func (f Flags) IsRemovableOnly() bool { return f&FlagRemovableOnly != 0 }

// SymbolSpec 單一符號種類的設定
type SymbolSpec struct {
	Name          string  `yaml:"name"            json:"name"`
	Weight        int     `yaml:"weight"          json:"weight"`
	BaseValue     float64 `yaml:"base_value"      json:"base_value"`
	Wild          bool    `yaml:"wild"            json:"wild,omitempty"`
	BonusTrigger  bool    `yaml:"bonus_trigger"   json:"bonus_trigger,omitempty"`
	RemovableOnly bool    `yaml:"removable_only"  json:"removable_only,omitempty"`
}

func (s SymbolSpec) flags() Flags {
	var f Flags
	if s.Wild {
		f |= FlagWild
	}
	if s.BonusTrigger {
		f |= FlagBonusTrigger
	}
	if s.RemovableOnly {
		f |= FlagRemovableOnly
	}
	return f
}

// SymbolCatalog 符號目錄：建立後不可變，可被多台機台共用。
//
// 以 SymbolID 直接索引 slice（index 0 為空格）。
type SymbolCatalog struct {
	names   []string
	weights []int
	bases   []decimal.Decimal
	flags   []Flags
	byName  map[string]SymbolID
	kinds   []SymbolID
	bonus   []SymbolID
}

// NewSymbolCatalog 檢查並建立符號目錄
func NewSymbolCatalog(specs []SymbolSpec) (*SymbolCatalog, error) {
	if len(specs) == 0 {
		return nil, errs.NewFatal("symbols must not be empty")
	}
	if len(specs) > math.MaxInt16 {
		return nil, errs.NewFatal(fmt.Sprintf("too many symbols: %d", len(specs)))
	}
	n := len(specs) + 1
	c := &SymbolCatalog{
		names:   make([]string, n),
		weights: make([]int, n),
		bases:   make([]decimal.Decimal, n),
		flags:   make([]Flags, n),
		byName:  make(map[string]SymbolID, len(specs)),
		kinds:   make([]SymbolID, 0, len(specs)),
	}
	total := 0
	for i, s := range specs {
		id := SymbolID(i + 1)
		if s.Name == "" {
			return nil, errs.NewFatal(fmt.Sprintf("symbol #%d has no name", id))
		}
		if _, dup := c.byName[s.Name]; dup {
			return nil, errs.NewFatal(fmt.Sprintf("duplicate symbol name: %s", s.Name))
		}
		if s.Weight < 0 {
			return nil, errs.NewFatal(fmt.Sprintf("symbol %s weight must >= 0", s.Name))
		}
		if s.BaseValue < 0 || math.IsNaN(s.BaseValue) || math.IsInf(s.BaseValue, 0) {
			return nil, errs.NewFatal(fmt.Sprintf("symbol %s base_value must be a finite value >= 0", s.Name))
		}
		f := s.flags()
		if f.IsWild() && f.IsRemovableOnly() {
			return nil, errs.NewFatal(fmt.Sprintf("symbol %s can not be both wild and removable_only", s.Name))
		}
		if (f.IsWild() || f.IsRemovableOnly()) && s.BaseValue != 0 {
			return nil, errs.NewFatal(fmt.Sprintf("symbol %s is special and must have base_value 0", s.Name))
		}
		c.names[id] = s.Name
		c.weights[id] = s.Weight
		c.bases[id] = decimal.NewFromFloat(s.BaseValue)
		c.flags[id] = f
		c.byName[s.Name] = id
		c.kinds = append(c.kinds, id)
		if f.IsBonusTrigger() {
			c.bonus = append(c.bonus, id)
		}
		total += s.Weight
	}
	if total <= 0 {
		return nil, errs.NewFatal("total symbol weight must > 0")
	}
	return c, nil
}

// WeightOf 回傳設定中的抽樣權重
func (c *SymbolCatalog) WeightOf(id SymbolID) int { return c.weights[c.check(id)] }

// BaseValueOf 回傳每參考押注的基礎分數
func (c *SymbolCatalog) BaseValueOf(id SymbolID) decimal.Decimal { return c.bases[c.check(id)] }

// IsSpecial 回傳符號能力旗標
func (c *SymbolCatalog) IsSpecial(id SymbolID) Flags { return c.flags[c.check(id)] }

func (c *SymbolCatalog) Name(id SymbolID) string { return c.names[c.check(id)] }

// Lookup 以名稱查詢編號
func (c *SymbolCatalog) Lookup(name string) (SymbolID, bool) {
	id, ok := c.byName[name]
	return id, ok
}

// Kinds 依設定順序回傳所有種類（不含空格）
func (c *SymbolCatalog) Kinds() []SymbolID {
	out := make([]SymbolID, len(c.kinds))
	copy(out, c.kinds)
	return out
}

// BonusKinds 回傳所有 bonus_trigger 種類
func (c *SymbolCatalog) BonusKinds() []SymbolID {
	out := make([]SymbolID, len(c.bonus))
	copy(out, c.bonus)
	return out
}

func (c *SymbolCatalog) Len() int { return len(c.kinds) }

// Weights 回傳依 Kinds() 順序排列的抽樣權重。
// bonusWeight >= 0 時覆蓋所有 bonus_trigger 種類的權重；負值沿用設定。
func (c *SymbolCatalog) Weights(bonusWeight int) []int {
	out := make([]int, len(c.kinds))
	for i, id := range c.kinds {
		w := c.weights[id]
		if bonusWeight >= 0 && c.flags[id].IsBonusTrigger() {
			w = bonusWeight
		}
		out[i] = w
	}
	return out
}

// check 越界代表呼叫端程式錯誤，直接 panic。
func (c *SymbolCatalog) check(id SymbolID) SymbolID {
	if id <= Empty || int(id) >= len(c.names) {
		panic(fmt.Sprintf("spec: symbol id %d out of range", id))
	}
	return id
}
