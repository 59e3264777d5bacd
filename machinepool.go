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
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/zintix-labs/candyreels/dto"
	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/sdk/core"
	"github.com/zintix-labs/candyreels/spec"
)

// MachinePool 管理某一款遊戲的所有機台實例。
//  1. pool：健康可用的機台，Spin() 借出並歸還。
//  2. broken：發生 panic 或 fatal error 的機台，送入後立即補上一台新機維持容量。
type MachinePool struct {
	gameName      string
	gameId        spec.GID
	gs            *spec.GameSetting
	build         func(seed int64) (*Machine, error)
	seedMaker     *seedMaker
	pool          chan *Machine
	broken        chan *Machine
	done          chan struct{} // 關閉後不再借機/歸還/補機
	closeOnce     sync.Once
	poolsize      int
	rebuild       atomic.Int32 // 補機次數
	inflight      atomic.Int32 // 使用中
	spins         atomic.Int64 // 成功局數
	panics        atomic.Int32
	fatals        atomic.Int32 // 機台狀態不可信
	closeReason   atomic.Value // string
	closeInflight atomic.Int32
	closeAvail    atomic.Int32
	closeBroken   atomic.Int32
}

// newMachinePool 建立指定遊戲的機台池，n 至少為 1，預先建好所有機台。
func newMachinePool(n int, gs *spec.GameSetting, cf core.PRNGFactory, seed int64) (*MachinePool, error) {
	return newMachinePoolWith(n, gs, seed, func(s int64) (*Machine, error) {
		return newMachineWithSeed(gs, cf, s)
	})
}

func newMachinePoolWith(n int, gs *spec.GameSetting, seed int64, build func(int64) (*Machine, error)) (*MachinePool, error) {
	n = max(1, n)
	p := &MachinePool{
		gameName:  gs.GameName,
		gameId:    gs.GameID,
		gs:        gs,
		build:     build,
		seedMaker: newSeedMaker(seed),
		pool:      make(chan *Machine, n),
		broken:    make(chan *Machine, 100),
		done:      make(chan struct{}),
		poolsize:  n,
	}
	p.closeReason.Store("")
	p.closeInflight.Store(-1)
	p.closeAvail.Store(-1)
	p.closeBroken.Store(-1)

	for i := 0; i < n; i++ {
		m, err := build(p.seedMaker.next())
		if err != nil {
			return nil, err
		}
		p.pool <- m
	}
	return p, nil
}

func (p *MachinePool) Close() {
	p.closeWithReason("closed")
}

func (p *MachinePool) Closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// closeWithReason 只會生效一次；reason 使用固定字串方便聚合。
func (p *MachinePool) closeWithReason(reason string) {
	p.closeOnce.Do(func() {
		if reason == "" {
			reason = "closed"
		}
		p.closeReason.Store(reason)
		p.closeInflight.Store(p.inflight.Load())
		p.closeAvail.Store(int32(len(p.pool)))
		p.closeBroken.Store(int32(len(p.broken)))
		close(p.done)
	})
}

// canceled 保留 ctx 錯誤供上層判斷 408/504，層級為 Warn。
func canceled(ctx context.Context) error {
	e := errs.Wrap(ctx.Err(), "spin canceled/timeout")
	e.ErrLv = errs.Warn
	return e
}

// isFatalErr 只有錯誤本身宣告 Fatal 時才淘汰機台；請求類錯誤（Warn）不影響機台。
func isFatalErr(err error) bool {
	e, ok := errs.AsErr(err)
	return ok && e.ErrLv == errs.Fatal
}

// Spin 借出一台機台執行一局，等待期間尊重 ctx。
func (p *MachinePool) Spin(ctx context.Context, req *dto.SpinRequest) (res dto.SpinResult, err error) {
	var m *Machine
	select {
	case <-p.done:
		return res, errs.NewFatal("machine pool closed: " + p.ClosedReason())
	case <-ctx.Done():
		return res, canceled(ctx)
	case m = <-p.pool:
		p.inflight.Add(1)
	}
	if m == nil {
		return res, errs.NewFatal("machine pool got nil machine")
	}

	var isPanic bool
	defer func() {
		p.inflight.Add(-1)
		if r := recover(); r != nil {
			isPanic = true
			p.panics.Add(1)
			err = errs.NewFatal(fmt.Sprintf("machine %s panic : %v", m.gameName, r))
		}
		if p.Closed() {
			return
		}
		if isPanic || isFatalErr(err) {
			if !isPanic {
				p.fatals.Add(1)
			}
			select {
			case p.broken <- m:
			default:
				// 連續故障：關閉讓上層接管
				p.closeWithReason("overwhelmed_by_failures")
				return
			}
			nm, buildErr := p.build(p.seedMaker.next())
			p.rebuild.Add(1)
			if buildErr != nil {
				err = errs.NewFatal(fmt.Sprintf("machine %s can not build", p.gameName))
				p.closeWithReason("rebuild_failed")
				return
			}
			select {
			case <-p.done:
			case p.pool <- nm:
			}
			return
		}
		select {
		case <-p.done:
		case p.pool <- m:
		}
	}()

	res, err = m.Spin(req)
	if err == nil {
		p.spins.Add(1)
	}
	return res, err
}

func (p *MachinePool) GameID() spec.GID { return p.gameId }

func (p *MachinePool) GameSetting() *spec.GameSetting { return p.gs }

func (p *MachinePool) PoolSize() int { return p.poolsize }

func (p *MachinePool) Available() int { return len(p.pool) }

func (p *MachinePool) ClosedReason() string {
	if v := p.closeReason.Load(); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// MachinePoolMetrics 拉取式觀測快照，由 server/metrics 轉成 Prometheus 指標。
// Available / BrokenBacklog 來自 len(chan)，高併發下為近似值。
type MachinePoolMetrics struct {
	GameName string   `json:"game_name"`
	GameID   spec.GID `json:"game_id"`

	PoolSize      int    `json:"pool_size"`
	Available     int    `json:"available"`
	Inflight      int    `json:"inflight"`
	BrokenBacklog int    `json:"broken_backlog"`
	Spins         int64  `json:"spins"`
	Rebuild       int    `json:"rebuild"`
	Panics        int    `json:"panics"`
	Fatals        int    `json:"fatals"`
	Closed        bool   `json:"closed"`
	CloseReason   string `json:"close_reason"`

	CloseInflight int `json:"close_inflight"` // -1 表示尚未關閉
	CloseAvail    int `json:"close_avail"`
	CloseBroken   int `json:"close_broken"`
}

func (p *MachinePool) Metrics() MachinePoolMetrics {
	return MachinePoolMetrics{
		GameName:      p.gameName,
		GameID:        p.gameId,
		PoolSize:      p.poolsize,
		Available:     len(p.pool),
		Inflight:      int(p.inflight.Load()),
		BrokenBacklog: len(p.broken),
		Spins:         p.spins.Load(),
		Rebuild:       int(p.rebuild.Load()),
		Panics:        int(p.panics.Load()),
		Fatals:        int(p.fatals.Load()),
		Closed:        p.Closed(),
		CloseReason:   p.ClosedReason(),
		CloseInflight: int(p.closeInflight.Load()),
		CloseAvail:    int(p.closeAvail.Load()),
		CloseBroken:   int(p.closeBroken.Load()),
	}
}
