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

package dto

import (
	"github.com/shopspring/decimal"
	"github.com/zintix-labs/candyreels/sdk/cascade"
	"github.com/zintix-labs/candyreels/spec"
)

// 遊戲模式
const (
	ModeBase = "base"
	ModeFree = "free"
)

// SpinResult 對外輸出的單局結果，建立後不再修改。
type SpinResult struct {
	SpinID        string           `json:"spin_id"`                 // 本局唯一編號
	GameName      string           `json:"game"`                    // 遊戲名稱
	GameID        spec.GID         `json:"gameid"`                  // 遊戲編號
	Mode          string           `json:"mode"`                    // base / free
	Bet           decimal.Decimal  `json:"bet"`                     // 本局押注（免費遊戲為鎖定押注）
	TotalWin      decimal.Decimal  `json:"win"`                     // 總贏分（已截位、已封頂）
	Capped        bool             `json:"capped,omitempty"`        // 是否觸及最大贏分
	Truncated     bool             `json:"truncated,omitempty"`     // 連消到達輪數上限被截斷
	Rows          int              `json:"rows"`                    // 盤面列數
	Cols          int              `json:"cols"`                    // 盤面行數
	Steps         []StepDTO        `json:"steps"`                   // 每輪消除紀錄，至少一筆
	FinalGrid     []spec.SymbolID  `json:"final_grid"`              // 最終盤面
	Multipliers   []int            `json:"multipliers"`             // 最終倍數盤面
	FreeSpinDelta int              `json:"free_spin_delta"`         // 本局新增的免費遊戲次數
	FreeSpin      *FreeSpinInfo    `json:"free_spin,omitempty"`     // 結算後的免費遊戲狀態
	Balance       *decimal.Decimal `json:"balance,omitempty"`       // 結算後餘額（經 Runtime 才有）
	State         CoreState        `json:"spin_state"`              // RNG 快照
	Seed          *uint64          `json:"seed,omitempty"`          // 請求指定的 seed
	Trigger       int              `json:"bonus_cluster,omitempty"` // 本局最大 bonus 群組大小
}

// StepDTO 一輪消除
type StepDTO struct {
	Index       int             `json:"index"`
	Grid        []spec.SymbolID `json:"grid"`
	Clusters    []ClusterDTO    `json:"clusters,omitempty"`
	Multipliers []int           `json:"multipliers"`
	Removed     []int           `json:"removed,omitempty"`
	Win         decimal.Decimal `json:"win"`
}

// ClusterDTO 單一得獎群組
type ClusterDTO struct {
	Symbol     string          `json:"symbol"`
	Kind       spec.SymbolID   `json:"kind"`
	Cells      []int           `json:"cells"`
	Wilds      int             `json:"wilds,omitempty"`
	Multiplier int             `json:"multiplier"`
	Win        decimal.Decimal `json:"win"`
}

// FreeSpinInfo 免費遊戲存檔的對外視圖
type FreeSpinInfo struct {
	ID        string          `json:"id"`
	Remaining int             `json:"remaining"`
	Granted   int             `json:"granted"`
	Won       decimal.Decimal `json:"won"`
	Bet       decimal.Decimal `json:"bet"`
}

// CoreState RNG 快照：start 為本局開始前，after 為本局結束後。
type CoreState struct {
	StartCoreSnapB64U string `json:"start_b64u"`
	AfterCoreSnapB64U string `json:"after_b64u"`
}

// NewSteps 轉換每輪紀錄；Outcome 內的切片本身已是拷貝，這裡直接引用。
func NewSteps(steps []cascade.Step, cat *spec.SymbolCatalog) []StepDTO {
	out := make([]StepDTO, len(steps))
	for i, st := range steps {
		d := StepDTO{
			Index:       st.Index,
			Grid:        st.Grid.Cells,
			Multipliers: st.Multipliers,
			Removed:     st.Removed,
			Win:         st.Win,
		}
		if len(st.Clusters) > 0 {
			d.Clusters = make([]ClusterDTO, len(st.Clusters))
			for j, cw := range st.Clusters {
				d.Clusters[j] = ClusterDTO{
					Symbol:     cat.Name(cw.Kind),
					Kind:       cw.Kind,
					Cells:      cw.Cells,
					Wilds:      cw.Wilds,
					Multiplier: cw.Multiplier,
					Win:        cw.Win,
				}
			}
		}
		out[i] = d
	}
	return out
}

// BuyResult 購買免費遊戲的結果
type BuyResult struct {
	Player   string          `json:"player"`
	GameID   spec.GID        `json:"gameid"`
	Cost     decimal.Decimal `json:"cost"`
	FreeSpin *FreeSpinInfo   `json:"free_spin"`
	Balance  decimal.Decimal `json:"balance"`
}

type BalanceResult struct {
	Player  string          `json:"player"`
	Balance decimal.Decimal `json:"balance"`
}
