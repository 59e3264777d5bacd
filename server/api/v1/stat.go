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

package v1

import (
	"net/http"

	"github.com/zintix-labs/candyreels/dto"
	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/recorder"
	"github.com/zintix-labs/candyreels/server/httperr"
	"github.com/zintix-labs/candyreels/spec"
)

// DistStat 外部收集的逐回合結果（例如正式環境日誌），金額皆為最小貨幣單位。
// 陣列長度不同時以最短者為準。
type DistStat struct {
	GameName  string   `json:"game"`
	GameId    spec.GID `json:"gid"`
	Bet       int      `json:"bet"`
	TotalWins []int    `json:"total_wins"`
	BaseWins  []int    `json:"base_wins"`
	FreeWins  []int    `json:"free_wins"`
	Triggers  []int    `json:"triggers"` // 每回合玩掉的免費次數，0 表示未觸發
}

// Stat POST /v1/stat：以外部資料產出與模擬器相同格式的報表
func Stat(w http.ResponseWriter, r *http.Request) {
	dst := new(DistStat)
	if err := dto.DecodeJSON(r, dst); err != nil {
		httperr.Errs(w, err)
		return
	}
	if dst.Bet <= 0 {
		httperr.Errs(w, errs.NewWarn("bet must be > 0"))
		return
	}
	rounds := min(len(dst.TotalWins), len(dst.BaseWins), len(dst.FreeWins), len(dst.Triggers))
	if rounds < 1 {
		httperr.Errs(w, errs.NewWarn("rounds must be > 0"))
		return
	}
	rec, err := recorder.NewSpinRecorder(dst.GameName, dst.GameId, dst.Bet, 0)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	for i := 0; i < rounds; i++ {
		if dst.TotalWins[i] < 0 || dst.BaseWins[i] < 0 || dst.FreeWins[i] < 0 {
			httperr.Errs(w, errs.Warnf("negative win at round %d", i))
			return
		}
		rec.Record(recorder.Spin{
			Bet:       dst.Bet,
			Win:       dst.TotalWins[i],
			BaseWin:   dst.BaseWins[i],
			FreeWin:   dst.FreeWins[i],
			Triggered: dst.Triggers[i] > 0,
			FreeSpins: dst.Triggers[i],
		})
	}
	writeJSON(w, http.StatusOK, rec.Done())
}
