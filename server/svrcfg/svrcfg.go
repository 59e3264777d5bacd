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

package svrcfg

import (
	"log/slog"
	"time"

	"github.com/zintix-labs/candyreels"
	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/server/logger"
)

// SvrCfg server 組裝所需的一切，全部由呼叫端（cmd/svr）明確注入
type SvrCfg struct {
	Log     *slog.Logger
	Reels   *candyreels.CandyReels
	Runtime *candyreels.Runtime

	Addr        string
	CORS        []string      // 允許的前端來源，空值不啟用
	SpinTimeout time.Duration // 單一 spin/buy 請求上限
	SimTimeout  time.Duration // 模擬請求上限
	Shutdown    time.Duration // 優雅關閉上限
	ReportEvery time.Duration // 機台池狀態寫入 log 的間隔，0 表示不輸出
}

// Valid 檢查必要依賴並補上預設值
func (sc *SvrCfg) Valid() error {
	if sc.Log != nil {
		if ah, ok := sc.Log.Handler().(*logger.AsyncHandler); ok && !ah.Ready() {
			return errs.NewFatal("nil default log handler: async handler is nil")
		}
	} else {
		sc.Log = logger.NewDefaultLogger(logger.ModeSilence)
	}
	if sc.Reels == nil {
		return errs.NewFatal("candyreels is required")
	}
	if sc.Runtime == nil {
		return errs.NewFatal("runtime is required")
	}
	if sc.SpinTimeout <= 0 {
		sc.SpinTimeout = 5 * time.Second
	}
	if sc.SimTimeout <= 0 {
		sc.SimTimeout = 50 * time.Second
	}
	if sc.Shutdown <= 0 {
		sc.Shutdown = 10 * time.Second
	}
	return nil
}
