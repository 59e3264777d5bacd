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

package errs

import (
	"errors"
	"fmt"
)

// ErrLevel : Error 分級，使最上層理解問題嚴重程度
//   - Fatal : 設定/前置條件錯誤，或機台狀態不可信
//   - Warn  : 請求參數問題，呼叫端可修正後重試
//   - Log   : 僅需紀錄
type ErrLevel uint8

const (
	None ErrLevel = iota
	Fatal
	Warn
	Log
)

var errLvMap = map[ErrLevel]string{
	None:  "",
	Fatal: "fatal",
	Warn:  "warn",
	Log:   "log",
}

func ErrLv(errlv ErrLevel) string {
	if str, ok := errLvMap[errlv]; ok {
		return str
	}
	return ""
}

// Code 是給呼叫端辨識的穩定錯誤碼（對外序列化時使用）。
type Code string

const (
	CodeNone                Code = ""
	CodeInvalidBet          Code = "invalid_bet"
	CodeInsufficientBalance Code = "insufficient_balance"
	CodeSessionBusy         Code = "session_busy"
	CodeFreeSpinsActive     Code = "free_spins_active"
	CodeNotFound            Code = "not_found"
	CodeFeatureDisabled     Code = "feature_disabled"
	CodeConfig              Code = "config"
)

// 對外哨兵錯誤。使用 errors.Is 比對，比對依據為 Code，因此帶不同訊息的同碼錯誤也會命中。
var (
	ErrInvalidBet          = NewCode(Warn, CodeInvalidBet, "invalid bet")
	ErrInsufficientBalance = NewCode(Warn, CodeInsufficientBalance, "insufficient balance")
	ErrSessionBusy         = NewCode(Warn, CodeSessionBusy, "another spin is in progress for this session")
	ErrFreeSpinsActive     = NewCode(Warn, CodeFreeSpinsActive, "free spins already active")
	ErrNotFound            = NewCode(Warn, CodeNotFound, "not found")
	ErrFeatureDisabled     = NewCode(Warn, CodeFeatureDisabled, "feature disabled")
)

// E 是統一的錯誤型別。
// Message 為主訊息；Extra 為呼叫端追加的上下文；Cause 串接下層錯誤；Code 供外部辨識。
type E struct {
	Message string
	Extra   string
	Code    Code
	Cause   error
	ErrLv   ErrLevel
}

// Error 實作 error 介面並回傳格式化後的錯誤訊息。
func (e *E) Error() string {
	base := fmt.Sprintf("errlv=%s %s", ErrLv(e.ErrLv), e.Message)
	if e.Code != CodeNone {
		base = fmt.Sprintf("errlv=%s code=%s %s", ErrLv(e.ErrLv), e.Code, e.Message)
	}
	if e.Extra != "" {
		base += " | extra: " + e.Extra
	}
	if e.Cause != nil {
		base += fmt.Sprintf(" (cause: %v)", e.Cause)
	}
	return base
}

// Unwrap 讓 errors.Is / errors.As 能夠向下展開。
func (e *E) Unwrap() error { return e.Cause }

// Is 以 Code 比對；沒有 Code 的錯誤只與自己相等。
func (e *E) Is(target error) bool {
	t, ok := target.(*E)
	if !ok {
		return false
	}
	if e.Code == CodeNone || t.Code == CodeNone {
		return e == t
	}
	return e.Code == t.Code
}

// New 依錯誤等級與訊息建立錯誤
func New(errLv ErrLevel, msg string) *E {
	return &E{Message: msg, ErrLv: errLv}
}

// NewCode 建立帶有錯誤碼的錯誤
func NewCode(errLv ErrLevel, code Code, msg string) *E {
	return &E{Message: msg, Code: code, ErrLv: errLv}
}

func NewFatal(msg string) *E {
	return &E{Message: msg, ErrLv: Fatal}
}

func NewWarn(msg string) *E {
	return &E{Message: msg, ErrLv: Warn}
}

func NewLog(msg string) *E {
	return &E{Message: msg, ErrLv: Log}
}

func Fatalf(format string, a ...any) *E {
	return NewFatal(fmt.Sprintf(format, a...))
}

func Warnf(format string, a ...any) *E {
	return NewWarn(fmt.Sprintf(format, a...))
}

func Logf(format string, a ...any) *E {
	return NewLog(fmt.Sprintf(format, a...))
}

// With 以哨兵錯誤為基礎，附加上下文後回傳新錯誤（Code/ErrLv 保持不變）。
//
//	return errs.ErrInvalidBet.With("bet below minimum 0.10")
func (e *E) With(extra string) *E {
	return &E{Message: e.Message, Extra: extra, Code: e.Code, ErrLv: e.ErrLv}
}

// NewWithExtra 與 New 相同，但可附加額外上下文字串（不影響主訊息）。
func NewWithExtra(errLv ErrLevel, msg string, extra string) *E {
	e := New(errLv, msg)
	e.Extra = extra
	return e
}

// Wrap 使用給定訊息包裝底層錯誤。
//
// ErrLevel 規則：
//   - 若 cause 已經是 *E，沿用其 ErrLv 與 Code。
//   - 否則（標準庫或三方依賴錯誤，例如 pgx / redis）一律視為 Fatal。
func Wrap(cause error, msg string) *E {
	var e *E
	r := New(Fatal, msg)
	if errors.As(cause, &e) {
		r.ErrLv = e.ErrLv
		r.Code = e.Code
	}
	r.Cause = cause
	return r
}

// WrapWithExtra 同 Wrap，並附加上下文。
func WrapWithExtra(cause error, msg string, extra string) *E {
	r := Wrap(cause, msg)
	r.Extra = extra
	return r
}

func AsErr(err error) (*E, bool) {
	var e *E
	if errors.As(err, &e) {
		return e, true
	}
	return e, false
}

// CodeOf 回傳錯誤鏈上第一個非空 Code。
func CodeOf(err error) Code {
	for err != nil {
		if e, ok := err.(*E); ok && e.Code != CodeNone {
			return e.Code
		}
		err = errors.Unwrap(err)
	}
	return CodeNone
}
