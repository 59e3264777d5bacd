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
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/zintix-labs/candyreels"
	"github.com/zintix-labs/candyreels/dto"
	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/server/httperr"
	"github.com/zintix-labs/candyreels/server/metrics"
	"github.com/zintix-labs/candyreels/server/netsvr"
)

const DefaultSpinTimeout = 5 * time.Second

// ============================================================
// ** SpinHandler **
// ============================================================

// SpinHandler 玩家操作：spin / 購買 / 查詢免費遊戲 / 餘額 / 儲值 / 遊戲設定
type SpinHandler struct {
	cr      *candyreels.CandyReels
	rt      *candyreels.Runtime
	met     *metrics.Metrics
	log     *slog.Logger
	timeout time.Duration
}

func NewSpinHandler(cr *candyreels.CandyReels, rt *candyreels.Runtime, met *metrics.Metrics, log *slog.Logger, timeout time.Duration) (*SpinHandler, error) {
	if cr == nil || rt == nil {
		return nil, errs.NewFatal("spin handler requires candyreels and runtime")
	}
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultSpinTimeout
	}
	return &SpinHandler{cr: cr, rt: rt, met: met, log: log, timeout: timeout}, nil
}

func (h *SpinHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	httperr.Log(h.log, "v1 "+r.URL.Path, err)
	httperr.Errs(w, err)
}

// Spin GET（query）或 POST（JSON）
func (h *SpinHandler) Spin(w http.ResponseWriter, r *http.Request) {
	req, err := dto.DecodeSpinRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if req.GameId == 0 {
		if ids := h.rt.IDs(); len(ids) == 1 {
			req.GameId = ids[0]
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.rt.Spin(ctx, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.met.ObserveSpin(&res)
	writeJSON(w, http.StatusOK, res)
}

func (h *SpinHandler) Buy(w http.ResponseWriter, r *http.Request) {
	req := new(dto.BuyRequest)
	if err := dto.DecodeJSON(r, req); err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.rt.BuyBonus(ctx, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.met.ObserveBuy(&res)
	writeJSON(w, http.StatusOK, res)
}

// Session GET /v1/session/{player}?gid=
func (h *SpinHandler) Session(w http.ResponseWriter, r *http.Request) {
	gid, err := queryGID(r, h.rt.IDs())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	info, err := h.rt.FreeSpins(r.Context(), netsvr.Param(r, "player"), gid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *SpinHandler) Balance(w http.ResponseWriter, r *http.Request) {
	player := netsvr.Param(r, "player")
	bal, err := h.rt.Balance(r.Context(), player)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BalanceResult{Player: player, Balance: bal})
}

// Deposit 僅記憶體錢包（開發環境）可用
func (h *SpinHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	req := new(dto.DepositRequest)
	if err := dto.DecodeJSON(r, req); err != nil {
		h.fail(w, r, err)
		return
	}
	bal, err := h.rt.Deposit(r.Context(), req.Player, req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BalanceResult{Player: req.Player, Balance: bal})
}

// Config 帶 gid 時回傳完整設定，否則回傳摘要列表
func (h *SpinHandler) Config(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("gid") == "" {
		sum, err := h.cr.Summary()
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
		return
	}
	gid, err := queryGID(r, nil)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	gs, err := h.rt.GameSetting(gid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gs)
}
