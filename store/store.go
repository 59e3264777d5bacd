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

// Package store 定義 Spin 服務需要的外部協作者：錢包、免費遊戲存檔、玩家鎖與交易。
//
// 引擎本身不保存任何餘額；這些介面由 memory / postgres / redisstore 實作。
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/candyreels/spec"
)

// FreeSpinSession 進行中的免費遊戲。觸發或購買時建立，每消耗一局減一，歸零即刪除。
type FreeSpinSession struct {
	ID        string          `json:"id"`
	Player    string          `json:"player"`
	GameID    spec.GID        `json:"game_id"`
	Remaining int             `json:"remaining"`
	Granted   int             `json:"granted"`
	Won       decimal.Decimal `json:"won"`
	Bet       decimal.Decimal `json:"bet"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Clone 回傳獨立拷貝
func (s *FreeSpinSession) Clone() *FreeSpinSession {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Wallet 玩家餘額。Debit 餘額不足時回傳 errs.ErrInsufficientBalance 且不得變更餘額。
type Wallet interface {
	Balance(ctx context.Context, player string) (decimal.Decimal, error)
	Debit(ctx context.Context, player string, amount decimal.Decimal) (decimal.Decimal, error)
	Credit(ctx context.Context, player string, amount decimal.Decimal) (decimal.Decimal, error)
}

// SessionStore 免費遊戲存檔。Load 找不到時回傳 errs.ErrNotFound。
type SessionStore interface {
	Load(ctx context.Context, player string, gid spec.GID) (*FreeSpinSession, error)
	Save(ctx context.Context, s *FreeSpinSession) error
	Delete(ctx context.Context, player string, gid spec.GID) error
}

// Locker 玩家鎖。已被持有時立即回傳 errs.ErrSessionBusy，不排隊。
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Transactor 讓 fn 內的錢包與存檔操作在同一個交易中完成。
type Transactor interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// NoTx 不具交易能力的儲存（記憶體、Redis）使用
type NoTx struct{}

func (NoTx) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// LockKey 玩家在單一遊戲上的鎖名稱
func LockKey(player string, gid spec.GID) string {
	return "candyreels:lock:" + player + ":" + gid.String()
}
