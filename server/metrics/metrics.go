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

// Package metrics 把 Runtime 與 HTTP 的觀測值輸出為 Prometheus 指標。
//
// 指標名規範：candyreels_<name>，標籤 game / game_id / mode。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zintix-labs/candyreels"
	"github.com/zintix-labs/candyreels/dto"
)

const (
	ns         = "candyreels"
	labelGame  = "game"
	labelGID   = "game_id"
	labelMode  = "mode"
	labelRoute = "route"
)

// PoolSource 提供機台池快照，*candyreels.Runtime 即符合
type PoolSource interface {
	Metrics() []candyreels.MachinePoolMetrics
}

// Metrics 每個實例各自一個 Registry，測試可重複建立。
type Metrics struct {
	reg *prometheus.Registry

	httpReqs *prometheus.CounterVec
	httpDur  *prometheus.HistogramVec

	spins    *prometheus.CounterVec
	triggers *prometheus.CounterVec
	capped   *prometheus.CounterVec
	buys     *prometheus.CounterVec
	winMult  *prometheus.HistogramVec
	tumbles  *prometheus.HistogramVec
}

func New(src PoolSource) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	m := &Metrics{
		reg: reg,
		httpReqs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "http_requests_total", Help: "HTTP 請求數",
		}, []string{"method", labelRoute, "status"}),
		httpDur: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Name: "http_request_duration_seconds", Help: "HTTP 請求耗時",
			Buckets: prometheus.DefBuckets,
		}, []string{labelRoute}),
		spins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "spins_total", Help: "已結算局數",
		}, []string{labelGame, labelMode}),
		triggers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "free_spin_triggers_total", Help: "觸發或加贈免費遊戲的局數",
		}, []string{labelGame, labelMode}),
		capped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "max_win_capped_total", Help: "觸及最大贏分的局數",
		}, []string{labelGame}),
		buys: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "bonus_buys_total", Help: "購買免費遊戲次數",
		}, []string{labelGID}),
		winMult: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Name: "win_multiplier", Help: "單局贏分 / 押注",
			Buckets: []float64{0, 0.5, 1, 2, 5, 10, 25, 50, 100, 500, 1000, 5000},
		}, []string{labelGame, labelMode}),
		tumbles: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Name: "tumbles", Help: "單局得獎連消輪次",
			Buckets: []float64{0, 1, 2, 3, 4, 6, 8, 12, 16},
		}, []string{labelGame, labelMode}),
	}
	if src != nil {
		reg.MustRegister(&poolCollector{src: src})
	}
	return m
}

// Handler /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) Gatherer() prometheus.Gatherer { return m.reg }

// ObserveSpin 記錄一局已結算的結果
func (m *Metrics) ObserveSpin(res *dto.SpinResult) {
	if m == nil || res == nil {
		return
	}
	m.spins.WithLabelValues(res.GameName, res.Mode).Inc()
	if res.FreeSpinDelta > 0 {
		m.triggers.WithLabelValues(res.GameName, res.Mode).Inc()
	}
	if res.Capped {
		m.capped.WithLabelValues(res.GameName).Inc()
	}
	if res.Bet.IsPositive() {
		mult, _ := res.TotalWin.Div(res.Bet).Float64()
		m.winMult.WithLabelValues(res.GameName, res.Mode).Observe(mult)
	}
	n := 0
	for _, st := range res.Steps {
		if len(st.Clusters) > 0 {
			n++
		}
	}
	m.tumbles.WithLabelValues(res.GameName, res.Mode).Observe(float64(n))
}

func (m *Metrics) ObserveBuy(res *dto.BuyResult) {
	if m == nil || res == nil {
		return
	}
	m.buys.WithLabelValues(strconv.FormatUint(uint64(res.GameID), 10)).Inc()
}

// Middleware 以 chi 的路由樣板當 route 標籤，避免玩家 id 造成標籤爆量。
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimid.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpReqs.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDur.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// poolCollector 每次抓取時讀 Runtime 快照，不另外維護狀態
type poolCollector struct {
	src PoolSource
}

var (
	descPoolSize  = prometheus.NewDesc(ns+"_pool_size", "機台池容量", []string{labelGame, labelGID}, nil)
	descAvailable = prometheus.NewDesc(ns+"_pool_available", "閒置機台數（近似）", []string{labelGame, labelGID}, nil)
	descInflight  = prometheus.NewDesc(ns+"_pool_inflight", "執行中的局數", []string{labelGame, labelGID}, nil)
	descPoolSpins = prometheus.NewDesc(ns+"_pool_spins_total", "機台池完成局數", []string{labelGame, labelGID}, nil)
	descRebuilds  = prometheus.NewDesc(ns+"_pool_rebuilds_total", "panic 後重建的機台數", []string{labelGame, labelGID}, nil)
	descPanics    = prometheus.NewDesc(ns+"_pool_panics_total", "機台 panic 次數", []string{labelGame, labelGID}, nil)
	descClosed    = prometheus.NewDesc(ns+"_pool_closed", "機台池是否已關閉", []string{labelGame, labelGID}, nil)
)

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descPoolSize
	ch <- descAvailable
	ch <- descInflight
	ch <- descPoolSpins
	ch <- descRebuilds
	ch <- descPanics
	ch <- descClosed
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	for _, pm := range c.src.Metrics() {
		gid := strconv.FormatUint(uint64(pm.GameID), 10)
		closed := 0.0
		if pm.Closed {
			closed = 1
		}
		ch <- prometheus.MustNewConstMetric(descPoolSize, prometheus.GaugeValue, float64(pm.PoolSize), pm.GameName, gid)
		ch <- prometheus.MustNewConstMetric(descAvailable, prometheus.GaugeValue, float64(pm.Available), pm.GameName, gid)
		ch <- prometheus.MustNewConstMetric(descInflight, prometheus.GaugeValue, float64(pm.Inflight), pm.GameName, gid)
		ch <- prometheus.MustNewConstMetric(descPoolSpins, prometheus.CounterValue, float64(pm.Spins), pm.GameName, gid)
		ch <- prometheus.MustNewConstMetric(descRebuilds, prometheus.CounterValue, float64(pm.Rebuild), pm.GameName, gid)
		ch <- prometheus.MustNewConstMetric(descPanics, prometheus.CounterValue, float64(pm.Panics), pm.GameName, gid)
		ch <- prometheus.MustNewConstMetric(descClosed, prometheus.GaugeValue, closed, pm.GameName, gid)
	}
}
