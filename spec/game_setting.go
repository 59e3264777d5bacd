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

// Package spec 定義遊戲設定（YAML/JSON）與符號目錄。
//
// 所有設定在載入時一次性 Init 與檢查，錯誤一律為 errs.Fatal：
// 設定錯誤屬於前置條件問題，不可能在 Spin 中途發生。
package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/zintix-labs/candyreels/errs"
	"gopkg.in/yaml.v3"
)

// GID 遊戲編號
type GID uint

// GameSetting 單款遊戲的完整設定。
type GameSetting struct {
	GameName   string            `yaml:"game_name"     json:"game_name"`
	GameID     GID               `yaml:"game_id"       json:"game_id"`
	Grid       GridSetting       `yaml:"grid"          json:"grid"`
	Cluster    ClusterSetting    `yaml:"cluster"       json:"cluster"`
	Multiplier MultiplierSetting `yaml:"multiplier"    json:"multiplier"`
	Bet        BetSetting        `yaml:"bet"           json:"bet"`
	Symbols    []SymbolSpec      `yaml:"symbols"       json:"symbols"`
	PayTiers   []PayTier         `yaml:"pay_tiers"     json:"pay_tiers"`
	FreeSpins  FreeSpinSetting   `yaml:"free_spins"    json:"free_spins"`
	BuyBonus   BuyBonusSetting   `yaml:"buy_bonus"     json:"buy_bonus"`
	MaxWinMult int               `yaml:"max_win_mult"  json:"max_win_mult"`

	catalog  *SymbolCatalog
	initFlag bool
}

// GetGameSettingByYAML
// 會讀取 YAML 設定（嚴格模式：未知欄位視為錯誤）、初始化並檢查後回傳
func GetGameSettingByYAML(data []byte) (*GameSetting, error) {
	gs := &GameSetting{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 多寫/拼錯欄位就報錯
	if err := dec.Decode(gs); err != nil {
		return nil, errs.Wrap(err, "failed to unmarshal yaml")
	}
	if err := gs.Init(); err != nil {
		return nil, errs.Wrap(err, "game setting initialized err")
	}
	return gs, nil
}

// GetGameSettingByJSON
// 會讀取 Json 設定、初始化並檢查後回傳
func GetGameSettingByJSON(data []byte) (*GameSetting, error) {
	gs := &GameSetting{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(gs); err != nil {
		return nil, errs.Wrap(err, "can not unmarshal json byte")
	}
	if err := gs.Init(); err != nil {
		return nil, errs.Wrap(err, "game setting initialized err")
	}
	return gs, nil
}

// Init 建立符號目錄、換算金額並檢查設定。重複呼叫不會重做。
func (gs *GameSetting) Init() error {
	if gs.initFlag {
		return nil
	}
	if gs.GameName == "" {
		return errs.NewFatal("game_name is required")
	}
	cat, err := NewSymbolCatalog(gs.Symbols)
	if err != nil {
		return errs.Wrap(err, fmt.Sprintf("game_name: %s symbols", gs.GameName))
	}
	gs.catalog = cat
	if err := gs.Bet.init(); err != nil {
		return err
	}
	if err := gs.valid(); err != nil {
		return err
	}
	gs.initFlag = true
	return nil
}

// Catalog 回傳符號目錄；Init 之前為 nil。
func (gs *GameSetting) Catalog() *SymbolCatalog {
	return gs.catalog
}

// valid 檢查跨區塊的約束。
func (gs *GameSetting) valid() error {
	rows, cols := gs.Grid.Rows, gs.Grid.Cols
	if rows <= 0 || cols <= 0 {
		return errs.NewFatal(fmt.Sprintf("invalid grid dimensions: rows=%d cols=%d", rows, cols))
	}
	if gs.Cluster.MinSize <= 0 || gs.Cluster.MinSize > rows*cols {
		return errs.NewFatal(fmt.Sprintf("cluster.min_size must be in [1,%d], got %d", rows*cols, gs.Cluster.MinSize))
	}
	if gs.Multiplier.Step < 1 {
		return errs.NewFatal(fmt.Sprintf("multiplier.step must >= 1, got %d", gs.Multiplier.Step))
	}
	if gs.Multiplier.Max < 1 {
		return errs.NewFatal(fmt.Sprintf("multiplier.max must >= 1, got %d", gs.Multiplier.Max))
	}
	if gs.MaxWinMult < 0 {
		return errs.NewFatal("max_win_mult must not be negative (0 means uncapped)")
	}
	if err := validPayTiers(gs.PayTiers, gs.Cluster.MinSize); err != nil {
		return err
	}
	if err := gs.validWeights(); err != nil {
		return err
	}
	hasBonus := len(gs.catalog.BonusKinds()) > 0
	if err := gs.FreeSpins.valid(gs.Cluster.MinSize, hasBonus); err != nil {
		return err
	}
	return gs.BuyBonus.valid(gs.FreeSpins)
}

// validWeights 確認主遊戲與免費遊戲在套用 bonus 權重後仍可抽樣。
func (gs *GameSetting) validWeights() error {
	for _, bw := range []int{gs.Grid.BonusWeight, gs.FreeSpins.BonusWeight} {
		total := 0
		for _, w := range gs.catalog.Weights(bw) {
			total += w
		}
		if total <= 0 {
			return errs.NewFatal("symbol weights sum to zero after bonus weight override")
		}
	}
	return nil
}

func (g GID) String() string {
	return strconv.FormatUint(uint64(g), 10)
}
