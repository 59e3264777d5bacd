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

// Package corefmt 負責 RNG 快照的文字編碼（HTTP/JSON 傳輸用）。
package corefmt

import (
	"encoding/base64"

	"github.com/zintix-labs/candyreels/errs"
)

// EncodeBase64URL 以 URL-safe、無 padding 的 base64 編碼快照
func EncodeBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeBase64URL 解碼失敗屬於請求錯誤（Warn）
func DecodeBase64URL(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, errs.NewWithExtra(errs.Warn, "decode base64url failed", err.Error())
	}
	return b, nil
}
