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

// Package v1 對外 JSON API。
package v1

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/server/httperr"
	"github.com/zintix-labs/candyreels/spec"
)

// writeJSON 先編碼到 buffer，保證不會寫到一半才出錯
func writeJSON(w http.ResponseWriter, status int, v any) {
	var b bytes.Buffer
	if err := json.NewEncoder(&b).Encode(v); err != nil {
		httperr.Errs(w, errs.Wrap(err, "encode response failed"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b.Bytes())
}

// queryGID 讀取 ?gid=；缺省時若只有一款遊戲則回傳該款
func queryGID(r *http.Request, ids []spec.GID) (spec.GID, error) {
	s := r.URL.Query().Get("gid")
	if s == "" {
		if len(ids) == 1 {
			return ids[0], nil
		}
		return 0, errs.NewWarn("gid is required")
	}
	u, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return 0, errs.NewWarn("gid must be non-negative integer")
	}
	return spec.GID(u), nil
}
