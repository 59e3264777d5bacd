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

// Package memory 為單機與測試用的 store 實作。
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/spec"
	"github.com/zintix-labs/candyreels/store"
)

// Wallet 以 map 保存餘額，未知玩家餘額為 0。
type Wallet struct {
	mu  sync.Mutex
	bal map[string]decimal.Decimal
}

func NewWallet() *Wallet {
	return &Wallet{bal: make(map[string]decimal.Decimal)}
}

// Deposit 儲值（僅開發環境使用）
func (w *Wallet) Deposit(_ context.Context, player string, amount decimal.Decimal) (decimal.Decimal, error) {
	if player == "" {
		return decimal.Zero, errs.NewWarn("player is required")
	}
	if !amount.IsPositive() {
		return decimal.Zero, errs.NewWarn("deposit amount must be > 0")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	b := w.bal[player].Add(amount)
	w.bal[player] = b
	return b, nil
}

func (w *Wallet) Balance(_ context.Context, player string) (decimal.Decimal, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bal[player], nil
}

func (w *Wallet) Debit(_ context.Context, player string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, errs.NewWarn("debit amount must be >= 0")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	b := w.bal[player]
	if amount.GreaterThan(b) {
		return b, errs.ErrInsufficientBalance.With("balance " + b.String() + " < " + amount.String())
	}
	b = b.Sub(amount)
	w.bal[player] = b
	return b, nil
}

func (w *Wallet) Credit(_ context.Context, player string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, errs.NewWarn("credit amount must be >= 0")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	b := w.bal[player].Add(amount)
	w.bal[player] = b
	return b, nil
}

type sessionKey struct {
	player string
	gid    spec.GID
}

// Sessions 免費遊戲存檔，存取時一律拷貝。
type Sessions struct {
	mu   sync.RWMutex
	data map[sessionKey]*store.FreeSpinSession
	now  func() time.Time
}

func NewSessions() *Sessions {
	return &Sessions{data: make(map[sessionKey]*store.FreeSpinSession), now: time.Now}
}

func (s *Sessions) Load(_ context.Context, player string, gid spec.GID) (*store.FreeSpinSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fs, ok := s.data[sessionKey{player, gid}]
	if !ok {
		return nil, errs.ErrNotFound.With("free spin session of " + player)
	}
	return fs.Clone(), nil
}

func (s *Sessions) Save(_ context.Context, fs *store.FreeSpinSession) error {
	if fs == nil {
		return errs.NewFatal("nil free spin session")
	}
	c := fs.Clone()
	c.UpdatedAt = s.now()
	s.mu.Lock()
	s.data[sessionKey{fs.Player, fs.GameID}] = c
	s.mu.Unlock()
	return nil
}

func (s *Sessions) Delete(_ context.Context, player string, gid spec.GID) error {
	s.mu.Lock()
	delete(s.data, sessionKey{player, gid})
	s.mu.Unlock()
	return nil
}

// Locker 行程內的非阻塞鎖
type Locker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocker() *Locker {
	return &Locker{held: make(map[string]struct{})}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, errs.ErrSessionBusy.With(key)
	}
	l.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

var (
	_ store.Wallet       = (*Wallet)(nil)
	_ store.SessionStore = (*Sessions)(nil)
	_ store.Locker       = (*Locker)(nil)
)
