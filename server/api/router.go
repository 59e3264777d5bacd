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

package api

import (
	"net/http"

	v1 "github.com/zintix-labs/candyreels/server/api/v1"
	"github.com/zintix-labs/candyreels/server/metrics"
	"github.com/zintix-labs/candyreels/server/netsvr"
	"github.com/zintix-labs/candyreels/server/netsvr/middleware"
	"github.com/zintix-labs/candyreels/server/svrcfg"
)

// RegisterRoutes 註冊 middleware、健康檢查、/metrics 與 v1 api。
// met 為 nil 時不掛 /metrics。
func RegisterRoutes(r netsvr.NetRouter, sCfg *svrcfg.SvrCfg, met *metrics.Metrics) error {
	registerMiddleware(r, sCfg, met)
	r.Get("/healthz", healthz(sCfg))
	if met != nil {
		r.Handle("/metrics", met.Handler())
	}
	return registerV1API(r, sCfg, met)
}

// 順序：request id → access log → recover → metrics → cors → 壓縮
func registerMiddleware(r netsvr.NetRouter, sCfg *svrcfg.SvrCfg, met *metrics.Metrics) {
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(sCfg.Log))
	r.Use(middleware.Recover(sCfg.Log))
	if met != nil {
		r.Use(met.Middleware)
	}
	r.Use(middleware.CORS(sCfg.CORS))
	r.Use(middleware.Compression)
}

func healthz(sCfg *svrcfg.SvrCfg) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if sCfg.Runtime.Closed() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"closed"}` + "\n"))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
	}
}

func registerV1API(r netsvr.NetRouter, sCfg *svrcfg.SvrCfg, met *metrics.Metrics) error {
	sp, err := v1.NewSpinHandler(sCfg.Reels, sCfg.Runtime, met, sCfg.Log, sCfg.SpinTimeout)
	if err != nil {
		return err
	}
	sim, err := v1.NewSimHandler(sCfg.Reels, sCfg.SimTimeout)
	if err != nil {
		return err
	}
	r.Group("/v1", func(vOne netsvr.NetRouter) {
		vOne.Get("/spin", sp.Spin)
		vOne.Post("/spin", sp.Spin)
		vOne.Post("/buy", sp.Buy)
		vOne.Get("/session/{player}", sp.Session)
		vOne.Get("/balance/{player}", sp.Balance)
		vOne.Post("/deposit", sp.Deposit)
		vOne.Get("/config", sp.Config)

		vOne.Post("/sim", sim.Sim)
		vOne.Post("/simplayer", sim.SimPlayers)
		vOne.Post("/simbycfg", sim.SimByCfg)
		vOne.Post("/stat", v1.Stat)
	})
	return nil
}
