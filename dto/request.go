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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/candyreels/corefmt"
	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/spec"
)

// 請求 body 上限
const maxBody = 1 << 20

// SpinRequest 單局請求。
//
// FreeSpinActive / Balance 由服務端填入（不接受外部輸入）：
//   - FreeSpinActive 為 true 時本局消耗免費遊戲，不檢查餘額。
//   - Balance 為 nil 表示呼叫端不要求機台檢查餘額。
type SpinRequest struct {
	Player     string          `json:"player"`                // 玩家識別
	GameName   string          `json:"game,omitempty"`        // 遊戲名稱（可省略）
	GameId     spec.GID        `json:"gid"`                   // 遊戲編號
	Bet        decimal.Decimal `json:"bet"`                   // 押注額
	Seed       *uint64         `json:"seed,omitempty"`        // 回放/測試用；會結算的 Spin 帶入時拒絕
	StartState *StartState     `json:"start_state,omitempty"` // 回放用；會結算的 Spin 帶入時拒絕

	FreeSpinActive bool             `json:"-"`
	Balance        *decimal.Decimal `json:"-"`
}

// StartState 由業務端帶入的 RNG 起始快照。
//   - 回放：帶入當初回應的 start_b64u，可重現該局。
//   - 續玩：帶入上一局回應的 after_b64u，延續 RNG 流水。
//
// after_b64u 只會出現在回應，請求端不得提供。
type StartState struct {
	StartCoreSnapB64U string `json:"start_b64u,omitempty"`
}

func (ss *StartState) HasPayload() bool {
	return ss != nil && ss.StartCoreSnapB64U != ""
}

// StartSnap 解碼起始快照；沒有帶入時回傳 nil。
func (sr *SpinRequest) StartSnap() ([]byte, error) {
	if !sr.StartState.HasPayload() {
		return nil, nil
	}
	snap, err := corefmt.DecodeBase64URL(sr.StartState.StartCoreSnapB64U)
	if err != nil {
		return nil, errs.Wrap(err, "core snap decode failed")
	}
	return snap, nil
}

// DecodeSpinRequest 把 HTTP 請求解碼成 SpinRequest。
//   - GET：從 query string 讀取 player/game/gid/bet/seed，適合簡單測試。
//   - POST：JSON body，開啟 DisallowUnknownFields，body 上限 1MiB。
//
// 只做解碼與型別轉換；bet 是否合法由 Machine 決定。
func DecodeSpinRequest(r *http.Request) (*SpinRequest, error) {
	if r == nil {
		return nil, errs.NewWarn("nil request")
	}
	req := new(SpinRequest)
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req.Player = q.Get("player")
		req.GameName = q.Get("game")
		if s := q.Get("gid"); s != "" {
			u, err := strconv.ParseUint(s, 10, 0)
			if err != nil {
				return nil, errs.NewWarn(fmt.Sprintf("invalid gid: %v", err))
			}
			req.GameId = spec.GID(u)
		}
		if s := q.Get("bet"); s != "" {
			v, err := decimal.NewFromString(s)
			if err != nil {
				return nil, errs.NewWarn(fmt.Sprintf("invalid bet: %v", err))
			}
			req.Bet = v
		}
		if s := q.Get("seed"); s != "" {
			v, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				return nil, errs.NewWarn(fmt.Sprintf("invalid seed: %v", err))
			}
			req.Seed = &v
		}
		return req, nil
	case http.MethodPost:
		if err := DecodeJSON(r, req); err != nil {
			return nil, err
		}
		return req, nil
	default:
		return nil, errs.NewWarn("method not allowed")
	}
}

// DecodeJSON 嚴格解碼 JSON body 到 dst
func DecodeJSON(r *http.Request, dst any) error {
	if r == nil || r.Body == nil {
		return errs.NewWarn("empty body")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errs.NewWithExtra(errs.Warn, "invalid json", err.Error())
	}
	return nil
}

// BuyRequest 購買免費遊戲
type BuyRequest struct {
	Player string          `json:"player"`
	GameId spec.GID        `json:"gid"`
	Bet    decimal.Decimal `json:"bet"`
}

// DepositRequest 開發用儲值
type DepositRequest struct {
	Player string          `json:"player"`
	Amount decimal.Decimal `json:"amount"`
}

// SimRequest 線上模擬
type SimRequest struct {
	GameId  spec.GID        `json:"gid"`
	Rounds  int             `json:"rounds"`
	Workers int             `json:"workers,omitempty"`
	Bet     decimal.Decimal `json:"bet"`
	Seed    *int64          `json:"seed,omitempty"`
}
