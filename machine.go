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

package candyreels

import (
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zintix-labs/candyreels/corefmt"
	"github.com/zintix-labs/candyreels/dto"
	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/sdk/cascade"
	"github.com/zintix-labs/candyreels/sdk/core"
	"github.com/zintix-labs/candyreels/sdk/grid"
	"github.com/zintix-labs/candyreels/spec"
)

// Machine 封裝一台可對外提供 Spin 的機台。
//
//   - 對外：Spin 為唯一入口（HTTP/Runtime 只操作 Machine 或 MachinePool）。
//   - 對內：持有 RNG（Core）與 base/free 兩組連消引擎。
//
// 同一台 Machine 不應被多 goroutine 同時 Spin（mu 保護 Core 與引擎 buffer）；
// 併發由 MachinePool 借出多台機台處理。
type Machine struct {
	gameName string
	gameId   spec.GID
	gs       *spec.GameSetting
	cf       core.PRNGFactory
	core     *core.Core
	base     *cascade.Engine // 主遊戲
	free     *cascade.Engine // 免費遊戲（bonus 權重不同）
	maxWin   decimal.Decimal // 0 表示不封頂
	mu       sync.Mutex
	initseed int64 // 出生 seed（便於追溯；完整重現請用 Snapshot/Restore）
}

// Round 一局的內部結果（模擬器與 Spin 共用）
type Round struct {
	Outcome   cascade.Outcome
	Win       decimal.Decimal // 已截位、已封頂
	Capped    bool
	BonusSize int // 最大 bonus 群組
	Grant     int // 新增免費遊戲次數
}

// newMachine 以 crypto/rand 產生出生 seed，對外服務時避免可預測的 RNG。
func newMachine(gs *spec.GameSetting, cf core.PRNGFactory) (*Machine, error) {
	seed, err := cryptoSeed()
	if err != nil {
		return nil, err
	}
	return newMachineWithSeed(gs, cf, seed)
}

// newMachineWithSeed 同一份設定 + 同一個 seed 得到一致的隨機序列。
func newMachineWithSeed(gs *spec.GameSetting, cf core.PRNGFactory, seed int64) (*Machine, error) {
	if gs == nil {
		return nil, errs.NewFatal("game setting is nil")
	}
	baseGen, err := grid.NewGenerator(gs.Catalog(), gs.Grid.BonusWeight)
	if err != nil {
		return nil, err
	}
	freeGen, err := grid.NewGenerator(gs.Catalog(), gs.FreeSpins.BonusWeight)
	if err != nil {
		return nil, err
	}
	return newMachineWithFillers(gs, cf, seed, baseGen, freeGen)
}

func newMachineWithFillers(gs *spec.GameSetting, cf core.PRNGFactory, seed int64, baseFill, freeFill cascade.Filler) (*Machine, error) {
	if gs == nil {
		return nil, errs.NewFatal("game setting is nil")
	}
	if cf == nil {
		return nil, errs.NewFatal("core factory required")
	}
	cfg, err := cascade.ConfigFrom(gs)
	if err != nil {
		return nil, err
	}
	base, err := cascade.New(cfg, baseFill)
	if err != nil {
		return nil, err
	}
	free, err := cascade.New(cfg, freeFill)
	if err != nil {
		return nil, err
	}
	m := &Machine{
		gameName: gs.GameName,
		gameId:   gs.GameID,
		gs:       gs,
		cf:       cf,
		core:     core.New(cf.New(seed)),
		base:     base,
		free:     free,
		initseed: seed,
	}
	if gs.MaxWinMult > 0 {
		m.maxWin = decimal.NewFromInt(int64(gs.MaxWinMult))
	}
	return m, nil
}

// Spin 驗證請求、執行一局並回傳不可變的結果。
//
// 檢查順序：
//  1. 遊戲識別（有帶才檢查）
//  2. 押注合法性（ErrInvalidBet，RNG 不動）
//  3. 非免費遊戲且帶了 Balance 時檢查餘額（ErrInsufficientBalance，RNG 不動）
//
// RNG 來源：
//   - Seed：以該 seed 建立一次性 Core，機台自身 Core 不受影響。
//   - StartState：以快照還原後執行，結束後機台 Core 還原。
//   - 兩者皆無：使用機台 Core，流水延續。
func (m *Machine) Spin(r *dto.SpinRequest) (dto.SpinResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 1. 校驗
	if err := m.valid(r); err != nil {
		return dto.SpinResult{}, err
	}
	startReq, err := r.StartSnap()
	if err != nil {
		return dto.SpinResult{}, err
	}

	// 2. 選擇 RNG
	c := m.core
	var rem []byte
	switch {
	case r.Seed != nil:
		c = core.New(m.cf.New(int64(*r.Seed)))
	case startReq != nil:
		if rem, err = m.SnapshotCore(); err != nil {
			return dto.SpinResult{}, errs.Wrap(err, "before snapshot error")
		}
		if err := m.RestoreCore(startReq); err != nil {
			return dto.SpinResult{}, errs.NewWithExtra(errs.Warn, "restore core err", err.Error())
		}
	}
	startsnap, err := c.Snapshot()
	if err != nil {
		return dto.SpinResult{}, errs.Wrap(err, "start snapshot error")
	}

	// 3. 執行
	rd := m.play(c, r.Bet, r.FreeSpinActive)

	// 4. 結束快照，必要時還原機台 Core
	aftersnap, err := c.Snapshot()
	if rem != nil {
		if rerr := m.RestoreCore(rem); rerr != nil {
			return dto.SpinResult{}, errs.Wrap(rerr, "restore core back err")
		}
	}
	if err != nil {
		return dto.SpinResult{}, errs.Wrap(err, "after snapshot error")
	}

	// 5. dto
	mode := dto.ModeBase
	if r.FreeSpinActive {
		mode = dto.ModeFree
	}
	out := rd.Outcome
	return dto.SpinResult{
		SpinID:        uuid.NewString(),
		GameName:      m.gameName,
		GameID:        m.gameId,
		Mode:          mode,
		Bet:           r.Bet,
		TotalWin:      rd.Win,
		Capped:        rd.Capped,
		Truncated:     out.Truncated,
		Rows:          m.gs.Grid.Rows,
		Cols:          m.gs.Grid.Cols,
		Steps:         dto.NewSteps(out.Steps, m.gs.Catalog()),
		FinalGrid:     out.FinalGrid.Cells,
		Multipliers:   out.Multipliers,
		FreeSpinDelta: rd.Grant,
		Seed:          r.Seed,
		Trigger:       rd.BonusSize,
		State: dto.CoreState{
			StartCoreSnapB64U: corefmt.EncodeBase64URL(startsnap),
			AfterCoreSnapB64U: corefmt.EncodeBase64URL(aftersnap),
		},
	}, nil
}

// Play 直接以機台 Core 執行一局；跳過所有檢查，僅供模擬器與測試使用。
func (m *Machine) Play(bet decimal.Decimal, free bool) Round {
	return m.play(m.core, bet, free)
}

func (m *Machine) play(c *core.Core, bet decimal.Decimal, free bool) Round {
	eng := m.base
	if free {
		eng = m.free
	}
	out := eng.Run(c, bet)
	rd := Round{Outcome: out, Win: m.gs.Bet.Money(out.TotalWin)}
	if !m.maxWin.IsZero() {
		if lim := m.gs.Bet.Money(bet.Mul(m.maxWin)); rd.Win.GreaterThan(lim) {
			rd.Win = lim
			rd.Capped = true
		}
	}
	cat := m.gs.Catalog()
	rd.BonusSize = out.LargestCluster(func(k spec.SymbolID) bool { return cat.IsSpecial(k).IsBonusTrigger() })
	rd.Grant = m.gs.FreeSpins.Grant(rd.BonusSize)
	return rd
}

func (m *Machine) valid(r *dto.SpinRequest) error {
	if r == nil {
		return errs.NewWarn("spin request is nil")
	}
	if r.GameId != 0 && r.GameId != m.gameId {
		return errs.NewWarn("game id is not matched")
	}
	if r.GameName != "" && r.GameName != m.gameName {
		return errs.NewWarn("game name is not matched")
	}
	if err := m.gs.Bet.Validate(r.Bet); err != nil {
		return err
	}
	if !r.FreeSpinActive && r.Balance != nil && r.Bet.GreaterThan(*r.Balance) {
		return errs.ErrInsufficientBalance.With("bet " + r.Bet.String() + " > balance " + r.Balance.String())
	}
	return nil
}

// GameSetting 回傳機台使用的設定（唯讀）
func (m *Machine) GameSetting() *spec.GameSetting {
	return m.gs
}

// InitSeed 出生 seed
func (m *Machine) InitSeed() int64 {
	return m.initseed
}

// SnapshotCore 取得 Core 狀態
func (m *Machine) SnapshotCore() ([]byte, error) {
	return m.core.Snapshot()
}

// RestoreCore 恢復 Core 狀態
func (m *Machine) RestoreCore(src []byte) error {
	return m.core.Restore(src)
}
