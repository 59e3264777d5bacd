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

// Package candyreels 提供 Candy Fortune Reels 連消引擎的組裝入口與運行入口。
//
// CandyReels 把兩個地基組裝在一起：
//  1. Catalog：遊戲目錄，定義有哪些遊戲與各自的設定檔（fs.FS 注入，不綁定檔案路徑）。
//  2. PRNGFactory：亂數核心工廠，保證可重現與可審計。
//
// 由此建立 Machine（單台機台）、Simulator（RTP 模擬）與 Runtime（對外服務：機台池 + 錢包 + 免費遊戲存檔）。
//
//	cr, _ := candyreels.NewDefault()
//	rt, _ := cr.BuildRuntime(8, candyreels.MemoryDeps())
//	res, _ := rt.Spin(ctx, &dto.SpinRequest{Player: "p1", GameId: 1001, Bet: decimal.NewFromInt(1)})
package candyreels

import (
	"crypto/rand"
	"io/fs"
	"math"
	"math/big"

	"github.com/zintix-labs/candyreels/catalog"
	"github.com/zintix-labs/candyreels/catalog/configs"
	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/sdk/core"
	"github.com/zintix-labs/candyreels/spec"
)

// Configs 把一或多個設定檔來源打包成 New() 需要的參數
func Configs(cfgs ...fs.FS) []fs.FS {
	return cfgs
}

// CandyReels 組裝器。註冊階段結束後呼叫 Freeze，之後不再變更目錄。
type CandyReels struct {
	cat *catalog.Catalog
	cf  core.PRNGFactory
	sum []catalog.Summary
}

// New 建立組裝器：cf 不可為 nil，cfgs 至少一個。
func New(cf core.PRNGFactory, cfgs []fs.FS) (*CandyReels, error) {
	if cf == nil {
		return nil, errs.NewFatal("core factory required")
	}
	if len(cfgs) == 0 {
		return nil, errs.NewFatal("configs required")
	}
	cat, err := catalog.New(cfgs...)
	if err != nil {
		return nil, err
	}
	return &CandyReels{cat: cat, cf: cf}, nil
}

// NewAuto 註冊所有設定檔並 Freeze，直接進入執行階段。
func NewAuto(cf core.PRNGFactory, cfgs []fs.FS) (*CandyReels, error) {
	cr, err := New(cf, cfgs)
	if err != nil {
		return nil, err
	}
	if err := cr.RegisterAll(); err != nil {
		return nil, err
	}
	cr.Freeze()
	return cr, nil
}

// NewDefault 使用內嵌的預設設定與 PCG64
func NewDefault() (*CandyReels, error) {
	return NewAuto(core.Default(), Configs(configs.FS))
}

func (cr *CandyReels) Register(ents ...catalog.Entry) error {
	return cr.cat.Register(ents...)
}

// RegisterAll 掃描所有設定檔來源並一次性註冊（fail-fast、原子）。
func (cr *CandyReels) RegisterAll() error {
	return cr.cat.RegisterAll()
}

func (cr *CandyReels) Freeze() {
	cr.cat.Freeze()
}

func (cr *CandyReels) EntryByID(id spec.GID) (catalog.Entry, bool) {
	return cr.cat.GetByID(id)
}

func (cr *CandyReels) EntryByName(name string) (catalog.Entry, bool) {
	return cr.cat.GetByName(name)
}

func (cr *CandyReels) IDs() []spec.GID {
	return cr.cat.IDs()
}

func (cr *CandyReels) GameSetting(id spec.GID) (*spec.GameSetting, error) {
	return cr.cat.GameSettingByID(id)
}

func (cr *CandyReels) Summary() ([]catalog.Summary, error) {
	if !cr.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	if cr.sum != nil {
		return cr.sum, nil
	}
	sum, err := cr.cat.Summaries()
	if err != nil {
		return nil, err
	}
	cr.sum = sum
	return sum, nil
}

func (cr *CandyReels) setting(id spec.GID) (*spec.GameSetting, error) {
	if !cr.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	return cr.cat.GameSettingByID(id)
}

// NewMachine 以 crypto/rand seed 建立機台
func (cr *CandyReels) NewMachine(id spec.GID) (*Machine, error) {
	gs, err := cr.setting(id)
	if err != nil {
		return nil, err
	}
	return newMachine(gs, cr.cf)
}

// NewMachineWithSeed 可重現的機台；任意時間點的重現請用 SnapshotCore/RestoreCore。
func (cr *CandyReels) NewMachineWithSeed(id spec.GID, seed int64) (*Machine, error) {
	gs, err := cr.setting(id)
	if err != nil {
		return nil, err
	}
	return newMachineWithSeed(gs, cr.cf, seed)
}

func (cr *CandyReels) NewSimulator(id spec.GID) (*Simulator, error) {
	seed, err := cryptoSeed()
	if err != nil {
		return nil, err
	}
	return cr.NewSimulatorWithSeed(id, seed)
}

func (cr *CandyReels) NewSimulatorWithSeed(id spec.GID, seed int64) (*Simulator, error) {
	gs, err := cr.setting(id)
	if err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(gs, cr.cf, seed)
}

// NewSimulatorByYAML 以外部設定模擬（調整參數用），GID 與名稱必須對應已註冊的遊戲。
func (cr *CandyReels) NewSimulatorByYAML(raw []byte, seed int64) (*Simulator, error) {
	gs, err := spec.GetGameSettingByYAML(raw)
	if err != nil {
		return nil, err
	}
	if err := cr.validCfg(gs); err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(gs, cr.cf, seed)
}

func (cr *CandyReels) validCfg(gs *spec.GameSetting) error {
	if !cr.cat.IsFrozen() {
		return errs.NewFatal("catalog is not frozen yet")
	}
	ent, ok := cr.cat.GetByID(gs.GameID)
	if !ok {
		return errs.ErrNotFound.With("gid not exist")
	}
	if ent2, ok := cr.cat.GetByName(gs.GameName); !ok || ent.GID != ent2.GID {
		return errs.NewWarn("game id is not matched game name")
	}
	return nil
}

// BuildRuntime 為每款遊戲建立機台池，並掛上外部協作者。
func (cr *CandyReels) BuildRuntime(poolSize int, deps Deps) (*Runtime, error) {
	cr.Freeze()
	ids := cr.cat.IDs()
	if len(ids) == 0 {
		return nil, errs.NewFatal("no games registered")
	}
	if err := deps.valid(); err != nil {
		return nil, err
	}
	rt := newRuntime(deps, max(1, poolSize))
	rt.ids = ids
	for _, id := range ids {
		gs, err := cr.cat.GameSettingByID(id)
		if err != nil {
			return nil, err
		}
		seed, err := cryptoSeed()
		if err != nil {
			return nil, err
		}
		mp, err := newMachinePool(rt.poolSize, gs, cr.cf, seed)
		if err != nil {
			return nil, err
		}
		rt.pools[id] = mp
	}
	return rt, nil
}

func cryptoSeed() (int64, error) {
	seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return 0, errs.Wrap(err, "new crypto seed error in go std lib")
	}
	return seed.Int64(), nil
}
