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

// Package redisstore 以 Redis 保存免費遊戲存檔並提供跨行程的玩家鎖。
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/zintix-labs/candyreels/errs"
	"github.com/zintix-labs/candyreels/spec"
	"github.com/zintix-labs/candyreels/store"
)

const (
	sessionPrefix = "candyreels:fs:"

	DefaultLockTTL = 10 * time.Second
)

// Options Redis 連線設定
type Options struct {
	Addrs    []string
	Password string
	DB       int
}

// NewClient 建立 UniversalClient；單一位址為單機，多位址為叢集。
func NewClient(ctx context.Context, opt Options) (redis.UniversalClient, error) {
	if len(opt.Addrs) == 0 {
		return nil, errs.NewFatal("redis address is required")
	}
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:           opt.Addrs,
		Password:        opt.Password,
		DB:              opt.DB,
		PoolSize:        50,
		MinIdleConns:    10,
		PoolTimeout:     5 * time.Second,
		ConnMaxLifetime: 10 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errs.Wrap(err, "redis ping failed")
	}
	return rdb, nil
}

func sessionKey(player string, gid spec.GID) string {
	return sessionPrefix + gid.String() + ":" + player
}

// Sessions 每個存檔一個 JSON 字串，不設過期；只有次數歸零時由 Delete 移除。
type Sessions struct {
	rdb redis.UniversalClient
	now func() time.Time
}

func NewSessions(rdb redis.UniversalClient) *Sessions {
	return &Sessions{rdb: rdb, now: time.Now}
}

func (s *Sessions) Load(ctx context.Context, player string, gid spec.GID) (*store.FreeSpinSession, error) {
	b, err := s.rdb.Get(ctx, sessionKey(player, gid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errs.ErrNotFound.With("free spin session of " + player)
	}
	if err != nil {
		return nil, errs.Wrap(err, "redis load session")
	}
	fs := new(store.FreeSpinSession)
	if err := json.Unmarshal(b, fs); err != nil {
		return nil, errs.Wrap(err, "decode session")
	}
	return fs, nil
}

func (s *Sessions) Save(ctx context.Context, fs *store.FreeSpinSession) error {
	if fs == nil {
		return errs.NewFatal("nil free spin session")
	}
	c := fs.Clone()
	c.UpdatedAt = s.now().UTC()
	b, err := json.Marshal(c)
	if err != nil {
		return errs.Wrap(err, "encode session")
	}
	if err := s.rdb.Set(ctx, sessionKey(fs.Player, fs.GameID), b, 0).Err(); err != nil {
		return errs.Wrap(err, "redis save session")
	}
	return nil
}

func (s *Sessions) Delete(ctx context.Context, player string, gid spec.GID) error {
	if err := s.rdb.Del(ctx, sessionKey(player, gid)).Err(); err != nil {
		return errs.Wrap(err, "redis delete session")
	}
	return nil
}

// 只刪除自己持有的鎖
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker SET NX PX 鎖，TTL 到期自動釋放，避免行程崩潰後卡死玩家。
type Locker struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewLocker(rdb redis.UniversalClient, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &Locker{rdb: rdb, ttl: ttl}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, errs.Wrap(err, "redis lock")
	}
	if !ok {
		return nil, errs.ErrSessionBusy.With(key)
	}
	return func() {
		// 請求 ctx 可能已取消，釋放使用獨立 ctx
		rctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, l.rdb, []string{key}, token).Err()
	}, nil
}

var (
	_ store.SessionStore = (*Sessions)(nil)
	_ store.Locker       = (*Locker)(nil)
)
