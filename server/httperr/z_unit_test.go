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
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zintix-labs/candyreels/errs"
)

func TestStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("spin: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errs.Wrap(context.Canceled, "spin"), http.StatusRequestTimeout},
		{errs.ErrInsufficientBalance.With("need 1.00"), http.StatusPaymentRequired},
		{errs.Wrap(errs.ErrSessionBusy, "lock"), http.StatusConflict},
		{errs.ErrFreeSpinsActive, http.StatusConflict},
		{errs.ErrNotFound.With("gid 9"), http.StatusNotFound},
		{errs.ErrInvalidBet, http.StatusBadRequest},
		{errs.NewWarn("bad json"), http.StatusBadRequest},
		{errs.NewFatal("machine broken"), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for i, c := range cases {
		if got := StatusCode(c.err); got != c.want {
			t.Fatalf("case %d (%v): want %d got %d", i, c.err, c.want, got)
		}
	}
}

func TestErrsWritesJSON(t *testing.T) {
	w := httptest.NewRecorder()
	Errs(w, errs.ErrInsufficientBalance.With("balance 0.50"))
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("unexpected status %d", w.Code)
	}
	var b Body
	if err := json.Unmarshal(w.Body.Bytes(), &b); err != nil {
		t.Fatalf("body is not json: %v", err)
	}
	if b.Code != string(errs.CodeInsufficientBalance) || b.Message != "insufficient balance: balance 0.50" {
		t.Fatalf("unexpected body %+v", b)
	}

	w = httptest.NewRecorder()
	Errs(w, errs.NewFatal("pg: connection refused"))
	if err := json.Unmarshal(w.Body.Bytes(), &b); err != nil {
		t.Fatalf("body is not json: %v", err)
	}
	if b.Code != "internal" || b.Message != "internal server error" {
		t.Fatalf("fatal details must not leak: %+v", b)
	}
}
