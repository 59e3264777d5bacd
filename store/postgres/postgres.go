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

// Package postgres 以 PostgreSQL 實作錢包與免費遊戲存檔。
//
// 所有查詢都透過 trmpgx.DefaultCtxGetter 取得目前交易，在 Transactor.Do 內呼叫時會加入同一個交易。
// numeric 欄位一律以 text 進出，避免浮點誤差。
package postgres

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/spec"
	"github.com/zintix-labs/candyreels/store"
)

const (
	walletTable = "candy_wallets"
	colPlayer   = "player"
	colBalance  = "balance"

	sessionTable = "candy_free_spin_sessions"
	colID        = "id"
	colGameID    = "game_id"
	colRemaining = "remaining"
	colGranted   = "granted"
	colWon       = "won"
	colBet       = "bet"
	colUpdatedAt = "updated_at"
)

// Schema 建表語句，Migrate 會執行
const Schema = `
CREATE TABLE IF NOT EXISTS candy_wallets (
	player  TEXT PRIMARY KEY,
	balance NUMERIC(20, 4) NOT NULL DEFAULT 0 CHECK (balance >= 0)
);
CREATE TABLE IF NOT EXISTS candy_free_spin_sessions (
	player     TEXT NOT NULL,
	game_id    BIGINT NOT NULL,
	id         TEXT NOT NULL,
	remaining  INT NOT NULL,
	granted    INT NOT NULL,
	won        NUMERIC(20, 4) NOT NULL DEFAULT 0,
	bet        NUMERIC(20, 4) NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (player, game_id)
);`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Open 建立連線池並確認可連線
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, errs.NewFatal("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errs.Wrap(err, "failed to create db pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.Wrap(err, "failed to ping db")
	}
	return pool, nil
}

// Migrate 建立所需資料表
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return errs.Wrap(err, "migrate schema")
	}
	return nil
}

// Transactor 以 avito trm 管理交易
type Transactor struct {
	m trm.Manager
}

func NewTransactor(pool *pgxpool.Pool) (*Transactor, error) {
	m, err := manager.New(trmpgx.NewDefaultFactory(pool))
	if err != nil {
		return nil, errs.Wrap(err, "failed to create tx manager")
	}
	return &Transactor{m: m}, nil
}

func (t *Transactor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.m.Do(ctx, fn)
}

// Wallet 餘額表 candy_wallets
type Wallet struct {
	pool *pgxpool.Pool
}

func NewWallet(pool *pgxpool.Pool) *Wallet {
	return &Wallet{pool: pool}
}

func (w *Wallet) conn(ctx context.Context) trmpgx.Tr {
	return trmpgx.DefaultCtxGetter.DefaultTrOrDB(ctx, w.pool)
}

func balanceQuery(player string) sq.SelectBuilder {
	return psql.Select(colBalance + "::text").
		From(walletTable).
		Where(sq.Eq{colPlayer: player})
}

// debitQuery 只在餘額足夠時扣款，RETURNING 為空表示餘額不足或玩家不存在
func debitQuery(player string, amount decimal.Decimal) sq.UpdateBuilder {
	amt := amount.String()
	return psql.Update(walletTable).
		Set(colBalance, sq.Expr(colBalance+" - ?::text::numeric", amt)).
		Where(sq.Eq{colPlayer: player}).
		Where(sq.Expr(colBalance+" >= ?::text::numeric", amt)).
		Suffix("RETURNING " + colBalance + "::text")
}

func creditQuery(player string, amount decimal.Decimal) sq.InsertBuilder {
	return psql.Insert(walletTable).
		Columns(colPlayer, colBalance).
		Values(player, sq.Expr("?::text::numeric", amount.String())).
		Suffix("ON CONFLICT (" + colPlayer + ") DO UPDATE SET " + colBalance + " = " +
			walletTable + "." + colBalance + " + EXCLUDED." + colBalance +
			" RETURNING " + colBalance + "::text")
}

func (w *Wallet) Balance(ctx context.Context, player string) (decimal.Decimal, error) {
	sqlStr, args, err := balanceQuery(player).ToSql()
	if err != nil {
		return decimal.Zero, errs.Wrap(err, "build balance query")
	}
	b, err := scanDecimal(w.conn(ctx).QueryRow(ctx, sqlStr, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, errs.Wrap(err, "query balance")
	}
	return b, nil
}

func (w *Wallet) Debit(ctx context.Context, player string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, errs.NewWarn("debit amount must be >= 0")
	}
	sqlStr, args, err := debitQuery(player, amount).ToSql()
	if err != nil {
		return decimal.Zero, errs.Wrap(err, "build debit query")
	}
	b, err := scanDecimal(w.conn(ctx).QueryRow(ctx, sqlStr, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		cur, berr := w.Balance(ctx, player)
		if berr != nil {
			return decimal.Zero, berr
		}
		return cur, errs.ErrInsufficientBalance.With("balance " + cur.String() + " < " + amount.String())
	}
	if err != nil {
		return decimal.Zero, errs.Wrap(err, "debit balance")
	}
	return b, nil
}

func (w *Wallet) Credit(ctx context.Context, player string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, errs.NewWarn("credit amount must be >= 0")
	}
	sqlStr, args, err := creditQuery(player, amount).ToSql()
	if err != nil {
		return decimal.Zero, errs.Wrap(err, "build credit query")
	}
	b, err := scanDecimal(w.conn(ctx).QueryRow(ctx, sqlStr, args...))
	if err != nil {
		return decimal.Zero, errs.Wrap(err, "credit balance")
	}
	return b, nil
}

// Deposit 等同 Credit，但金額必須大於 0
func (w *Wallet) Deposit(ctx context.Context, player string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, errs.NewWarn("deposit amount must be > 0")
	}
	return w.Credit(ctx, player, amount)
}

// Sessions 免費遊戲存檔表 candy_free_spin_sessions
type Sessions struct {
	pool *pgxpool.Pool
}

func NewSessions(pool *pgxpool.Pool) *Sessions {
	return &Sessions{pool: pool}
}

func (s *Sessions) conn(ctx context.Context) trmpgx.Tr {
	return trmpgx.DefaultCtxGetter.DefaultTrOrDB(ctx, s.pool)
}

func loadQuery(player string, gid spec.GID) sq.SelectBuilder {
	return psql.Select(colID, colRemaining, colGranted, colWon+"::text", colBet+"::text", colUpdatedAt).
		From(sessionTable).
		Where(sq.Eq{colPlayer: player, colGameID: int64(gid)})
}

func saveQuery(fs *store.FreeSpinSession) sq.InsertBuilder {
	return psql.Insert(sessionTable).
		Columns(colPlayer, colGameID, colID, colRemaining, colGranted, colWon, colBet, colUpdatedAt).
		Values(fs.Player, int64(fs.GameID), fs.ID, fs.Remaining, fs.Granted,
			sq.Expr("?::text::numeric", fs.Won.String()),
			sq.Expr("?::text::numeric", fs.Bet.String()),
			sq.Expr("now()")).
		Suffix("ON CONFLICT (" + colPlayer + ", " + colGameID + ") DO UPDATE SET " +
			colID + " = EXCLUDED." + colID + ", " +
			colRemaining + " = EXCLUDED." + colRemaining + ", " +
			colGranted + " = EXCLUDED." + colGranted + ", " +
			colWon + " = EXCLUDED." + colWon + ", " +
			colBet + " = EXCLUDED." + colBet + ", " +
			colUpdatedAt + " = EXCLUDED." + colUpdatedAt)
}

func (s *Sessions) Load(ctx context.Context, player string, gid spec.GID) (*store.FreeSpinSession, error) {
	sqlStr, args, err := loadQuery(player, gid).ToSql()
	if err != nil {
		return nil, errs.Wrap(err, "build session query")
	}
	fs := &store.FreeSpinSession{Player: player, GameID: gid}
	var won, bet string
	err = s.conn(ctx).QueryRow(ctx, sqlStr, args...).
		Scan(&fs.ID, &fs.Remaining, &fs.Granted, &won, &bet, &fs.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound.With("free spin session of " + player)
	}
	if err != nil {
		return nil, errs.Wrap(err, "load session")
	}
	if fs.Won, err = decimal.NewFromString(won); err != nil {
		return nil, errs.Wrap(err, "parse session won")
	}
	if fs.Bet, err = decimal.NewFromString(bet); err != nil {
		return nil, errs.Wrap(err, "parse session bet")
	}
	return fs, nil
}

func (s *Sessions) Save(ctx context.Context, fs *store.FreeSpinSession) error {
	if fs == nil {
		return errs.NewFatal("nil free spin session")
	}
	sqlStr, args, err := saveQuery(fs).ToSql()
	if err != nil {
		return errs.Wrap(err, "build save session query")
	}
	if _, err := s.conn(ctx).Exec(ctx, sqlStr, args...); err != nil {
		return errs.Wrap(err, "save session")
	}
	return nil
}

func (s *Sessions) Delete(ctx context.Context, player string, gid spec.GID) error {
	sqlStr, args, err := psql.Delete(sessionTable).
		Where(sq.Eq{colPlayer: player, colGameID: int64(gid)}).
		ToSql()
	if err != nil {
		return errs.Wrap(err, "build delete session query")
	}
	if _, err := s.conn(ctx).Exec(ctx, sqlStr, args...); err != nil {
		return errs.Wrap(err, "delete session")
	}
	return nil
}

func scanDecimal(row pgx.Row) (decimal.Decimal, error) {
	var s string
	if err := row.Scan(&s); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(s)
}

var (
	_ store.Wallet       = (*Wallet)(nil)
	_ store.SessionStore = (*Sessions)(nil)
	_ store.Transactor   = (*Transactor)(nil)
)
