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

package httperr

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zintix-labs/candyreels/errs"
)

// Body 錯誤回應格式
type Body struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	codeTimeout  = "timeout"
	codeCanceled = "canceled"
	codeBadReq   = "bad_request"
	codeInternal = "internal"
)

var codeStatus = map[errs.Code]int{
	errs.CodeInvalidBet:          http.StatusBadRequest,
	errs.CodeInsufficientBalance: http.StatusPaymentRequired,
	errs.CodeSessionBusy:         http.StatusConflict,
	errs.CodeFreeSpinsActive:     http.StatusConflict,
	errs.CodeNotFound:            http.StatusNotFound,
	errs.CodeFeatureDisabled:     http.StatusForbidden,
}

// StatusCode 將錯誤映射成 HTTP status code。
//
// 順序：
//   - ctx timeout/cancel → 504/408
//   - errs.Code          → codeStatus（402/404/409…）
//   - errs.Warn          → 400
//   - 其他               → 500
//
// 放在 server/* 而不是 errs，核心錯誤包不依賴 net/http。
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	}
	if st, ok := codeStatus[errs.CodeOf(err)]; ok {
		return st
	}
	if e, ok := errs.AsErr(err); ok && e.ErrLv == errs.Warn {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// BodyOf 組出對外的錯誤內容；500 不外洩內部訊息。
func BodyOf(err error) Body {
	status := StatusCode(err)
	switch status {
	case http.StatusGatewayTimeout:
		return Body{Code: codeTimeout, Message: "request timed out"}
	case http.StatusRequestTimeout:
		return Body{Code: codeCanceled, Message: "request canceled"}
	case http.StatusInternalServerError:
		return Body{Code: codeInternal, Message: "internal server error"}
	}
	b := Body{Code: string(errs.CodeOf(err)), Message: err.Error()}
	if b.Code == "" {
		b.Code = codeBadReq
	}
	if e, ok := errs.AsErr(err); ok {
		b.Message = e.Message
		if e.Extra != "" {
			b.Message += ": " + e.Extra
		}
	}
	return b
}

// Errs 寫回 JSON 錯誤
func Errs(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	b, mErr := json.Marshal(BodyOf(err))
	if mErr != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(StatusCode(err))
	_, _ = w.Write(append(b, '\n'))
}

// Log 依狀態碼決定是否記錄：5xx → error，逾時/取消/衝突 → warn，其餘 4xx 不記。
func Log(log *slog.Logger, msg string, err error) {
	if err == nil || log == nil {
		return
	}
	switch status := StatusCode(err); {
	case status >= 500:
		log.Error(msg, slog.Int("status", status), slog.Any("err", err))
	case status == http.StatusRequestTimeout || status == http.StatusConflict:
		log.Warn(msg, slog.Int("status", status), slog.Any("err", err))
	}
}
