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

// Package catalog 是遊戲目錄：負責從一或多個 fs.FS 掃描設定檔、解析並以 GID/名稱索引。
//
// 設定檔目錄必須是扁平的（不允許子目錄），檔名在所有來源之間必須唯一。
package catalog

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/spec"
)

var (
	ErrDupID   = errs.NewFatal("duplicate game id")
	ErrDupName = errs.NewFatal("duplicate game name")
)

type Entry struct {
	GID        spec.GID
	Name       string
	ConfigName string
}

// Summary 對外列舉用的遊戲摘要
type Summary struct {
	GID       spec.GID `json:"gid"`
	Name      string   `json:"name"`
	Rows      int      `json:"rows"`
	Cols      int      `json:"cols"`
	MinBet    string   `json:"min_bet"`
	MaxBet    string   `json:"max_bet"`
	BuyBonus  bool     `json:"buy_bonus"`
	MaxWinMul int      `json:"max_win_mult"`
}

type Catalog struct {
	byID     map[spec.GID]Entry
	byName   map[string]Entry
	settings map[spec.GID]*spec.GameSetting
	ids      []spec.GID // 用來穩定排序
	config   *multiFS
	frozen   bool
}

func New(cfg ...fs.FS) (*Catalog, error) {
	multFS, err := newMultiFS(cfg...)
	if err != nil {
		return nil, errs.Wrap(err, "can not create catalog")
	}
	return &Catalog{
		byID:     map[spec.GID]Entry{},
		byName:   map[string]Entry{},
		settings: map[spec.GID]*spec.GameSetting{},
		ids:      make([]spec.GID, 0, 8),
		config:   multFS,
	}, nil
}

// RegisterAll
//
// 掃描所有來源的設定檔並批次註冊。
//   - Fail-fast：任一檔案讀取/解析/檢查失敗立即回傳。
//   - 原子性：全部成功才寫入目錄。
//   - 依檔名排序處理，結果穩定。
func (c *Catalog) RegisterAll() error {
	if c.frozen {
		return errs.NewWarn("can not register when catalog already frozen")
	}
	names := make([]string, 0, len(c.config.index))
	for name := range c.config.index {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return errs.NewFatal("no config files found to register")
	}

	entries := make([]Entry, 0, len(names))
	parsed := make(map[spec.GID]*spec.GameSetting, len(names))
	for _, name := range names {
		gs, err := c.load(name)
		if err != nil {
			return errs.Wrap(err, fmt.Sprintf("parse gamesetting failed: %s", name))
		}
		entries = append(entries, Entry{GID: gs.GameID, Name: gs.GameName, ConfigName: name})
		parsed[gs.GameID] = gs
	}
	if err := c.Register(entries...); err != nil {
		return err
	}
	for id, gs := range parsed {
		c.settings[id] = gs
	}
	return nil
}

// Register 手動註冊條目（設定檔需已存在於來源中）
func (c *Catalog) Register(metas ...Entry) error {
	if c.frozen {
		return errs.NewWarn("can not register when catalog already frozen")
	}
	seenID := map[spec.GID]struct{}{}
	seenName := map[string]struct{}{}
	for i := range metas {
		meta := &metas[i]
		meta.Name = normName(meta.Name)
		if meta.Name == "" {
			return errs.NewFatal("game name required")
		}
		if err := validFileName(meta.ConfigName); err != nil {
			return err
		}
		if _, ok := c.config.index[meta.ConfigName]; !ok {
			return errs.NewFatal(fmt.Sprintf("config file not found: %s", meta.ConfigName))
		}
		if _, ok := c.byID[meta.GID]; ok {
			return ErrDupID
		}
		if _, ok := seenID[meta.GID]; ok {
			return ErrDupID
		}
		if _, ok := c.byName[meta.Name]; ok {
			return ErrDupName
		}
		if _, ok := seenName[meta.Name]; ok {
			return ErrDupName
		}
		seenID[meta.GID] = struct{}{}
		seenName[meta.Name] = struct{}{}
	}
	for _, meta := range metas {
		c.byID[meta.GID] = meta
		c.byName[meta.Name] = meta
		c.ids = append(c.ids, meta.GID)
	}
	sort.Slice(c.ids, func(i, j int) bool { return c.ids[i] < c.ids[j] })
	return nil
}

func (c *Catalog) GetByID(id spec.GID) (Entry, bool) {
	m, ok := c.byID[id]
	return m, ok
}

func (c *Catalog) GetByName(name string) (Entry, bool) {
	m, ok := c.byName[normName(name)]
	return m, ok
}

func (c *Catalog) IDs() []spec.GID {
	if len(c.ids) == 0 {
		return nil
	}
	return append([]spec.GID(nil), c.ids...)
}

func (c *Catalog) All() []Entry {
	m := make([]Entry, 0, len(c.ids))
	for _, id := range c.ids {
		m = append(m, c.byID[id])
	}
	return m
}

func (c *Catalog) Freeze() {
	c.frozen = true
}

func (c *Catalog) IsFrozen() bool {
	return c.frozen
}

// GameSettingByID 回傳已初始化的設定；同一 GID 只解析一次。
func (c *Catalog) GameSettingByID(id spec.GID) (*spec.GameSetting, error) {
	if gs, ok := c.settings[id]; ok {
		return gs, nil
	}
	e, ok := c.GetByID(id)
	if !ok {
		return nil, errs.ErrNotFound.With(fmt.Sprintf("game id %d", id))
	}
	gs, err := c.load(e.ConfigName)
	if err != nil {
		return nil, err
	}
	if !c.frozen {
		c.settings[id] = gs
	}
	return gs, nil
}

func (c *Catalog) GameSettingByName(name string) (*spec.GameSetting, error) {
	e, ok := c.GetByName(name)
	if !ok {
		return nil, errs.ErrNotFound.With(fmt.Sprintf("game %q", name))
	}
	return c.GameSettingByID(e.GID)
}

// Summaries 依 GID 排序回傳所有遊戲摘要
func (c *Catalog) Summaries() ([]Summary, error) {
	out := make([]Summary, 0, len(c.ids))
	for _, id := range c.ids {
		gs, err := c.GameSettingByID(id)
		if err != nil {
			return nil, err
		}
		out = append(out, Summary{
			GID:       id,
			Name:      gs.GameName,
			Rows:      gs.Grid.Rows,
			Cols:      gs.Grid.Cols,
			MinBet:    gs.Bet.MinBet().String(),
			MaxBet:    gs.Bet.MaxBet().String(),
			BuyBonus:  gs.BuyBonus.Enabled,
			MaxWinMul: gs.MaxWinMult,
		})
	}
	return out, nil
}

func (c *Catalog) load(name string) (*spec.GameSetting, error) {
	src, ok := c.config.GetFS(name)
	if !ok {
		return nil, errs.ErrNotFound.With(fmt.Sprintf("config file %s", name))
	}
	raw, err := fs.ReadFile(src, name)
	if err != nil {
		return nil, errs.Wrap(err, "catalog read file error")
	}
	return parseGameSettingByExt(name, raw)
}

func normName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func validFileName(file string) error {
	if file == "" {
		return errs.NewFatal("empty config filename")
	}
	if strings.ContainsAny(file, `/\:`) {
		return errs.NewFatal(fmt.Sprintf("invalid config filename: %q (must be a basename)", file))
	}
	if !isConfigFile(file) {
		return errs.NewFatal(fmt.Sprintf("invalid config filename: %q (must end with .yaml, .yml, or .json)", file))
	}
	if strings.HasPrefix(file, ".") {
		return errs.NewFatal(fmt.Sprintf("invalid config filename: %q (cannot start with '.')", file))
	}
	return nil
}

func isConfigFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

func parseGameSettingByExt(filename string, raw []byte) (*spec.GameSetting, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return spec.GetGameSettingByYAML(raw)
	case ".json":
		return spec.GetGameSettingByJSON(raw)
	default:
		return nil, errs.NewFatal(fmt.Sprintf("unsupported config format: %q", filename))
	}
}

type multiFS struct {
	src   []fs.FS
	index map[string]int // name -> src index
}

func newMultiFS(src ...fs.FS) (*multiFS, error) {
	if len(src) == 0 {
		return nil, errs.NewFatal("no fs provided")
	}
	m := &multiFS{src: src, index: make(map[string]int, 16)}
	for i, s := range src {
		if s == nil {
			return nil, errs.NewFatal(fmt.Sprintf("fs[%d] is nil", i))
		}
		err := fs.WalkDir(s, ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path == "." {
					return nil
				}
				return errs.NewFatal(fmt.Sprintf("config FS must be flat (no subdirectories): %q", path))
			}
			if strings.HasPrefix(path, ".") || !isConfigFile(path) {
				return nil
			}
			if prev, ok := m.index[path]; ok {
				return errs.NewFatal(fmt.Sprintf("duplicate config %q in fs[%d] and fs[%d]", path, prev, i))
			}
			m.index[path] = i
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *multiFS) GetFS(name string) (fs.FS, bool) {
	if id, ok := m.index[name]; ok {
		return m.src[id], true
	}
	return nil, false
}
