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

package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/server/api"
	"github.com/zintix-labs/candyreels/server/app"
	"github.com/zintix-labs/candyreels/server/metrics"
	"github.com/zintix-labs/candyreels/server/netsvr"
	"github.com/zintix-labs/candyreels/server/svrcfg"
)

// Run 是 server 套件的組裝器與啟動入口：
//  1. 驗證 SvrCfg（依賴都由呼叫端注入，不讀檔案路徑或環境變數）。
//  2. 建立 chi server、Prometheus 指標、註冊路由。
//  3. 交給 app.App 管理生命週期；停止後關閉 Runtime。
func Run(ctx context.Context, sCfg *svrcfg.SvrCfg) error {
	if err := sCfg.Valid(); err != nil {
		// logger 可能不可用，直接寫 stderr
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return RunWithSvr(ctx, sCfg, netsvr.NewChiServer(sCfg.Addr, netsvr.Timeouts{Write: sCfg.SimTimeout + sCfg.SpinTimeout}))
}

// RunWithSvr 與 Run 相同，但由呼叫端注入 NetSvr（自訂 listener、timeout 或其他 adapter）。
func RunWithSvr(ctx context.Context, sCfg *svrcfg.SvrCfg, svr netsvr.NetSvr) error {
	if err := sCfg.Valid(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	if svr == nil {
		err := errs.NewFatal("svr is required")
		sCfg.Log.Error(err.Error())
		return err
	}
	if s, ok := svr.(*netsvr.ChiAdapter); ok && !s.Ready() {
		err := errs.NewFatal("default server is not ready")
		sCfg.Log.Error(err.Error())
		return err
	}

	met := metrics.New(sCfg.Runtime)
	if err := api.RegisterRoutes(svr, sCfg, met); err != nil {
		sCfg.Log.Error("register routes failed", slog.Any("err", err))
		return err
	}

	a := app.NewWith(svr).WithLogger(sCfg.Log).WithShutdownTimeout(sCfg.Shutdown)
	if sCfg.ReportEvery > 0 {
		a.Register(app.Every(sCfg.ReportEvery, poolReporter(sCfg)))
	}
	a.OnStop(sCfg.Runtime.Close)
	sCfg.Log.Info("[candyreels] listening", slog.String("addr", svr.Address()), slog.Any("games", sCfg.Runtime.IDs()))
	if err := a.RunContext(ctx); err != nil {
		sCfg.Log.Error("app stopped", slog.Any("err", err))
		return err
	}
	sCfg.Log.Info("[candyreels] stopped")
	return nil
}

// poolReporter 每次輸出各機台池的快照，供沒有 Prometheus 的環境觀察
func poolReporter(sCfg *svrcfg.SvrCfg) func(ctx context.Context) {
	return func(ctx context.Context) {
		for _, pm := range sCfg.Runtime.Metrics() {
			sCfg.Log.LogAttrs(ctx, slog.LevelInfo, "pool.report",
				slog.String("game", pm.GameName),
				slog.Int("available", pm.Available),
				slog.Int("inflight", pm.Inflight),
				slog.Int64("spins", pm.Spins),
				slog.Int("rebuild", pm.Rebuild),
				slog.Bool("closed", pm.Closed),
			)
		}
	}
}
