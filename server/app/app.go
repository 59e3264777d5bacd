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

package app

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultShutdown = 5 * time.Second

// errStopped 元件自行結束（無錯誤）時用來觸發整體關閉
var errStopped = errors.New("component stopped")

type App struct {
	comps   []Component
	stops   []func()
	timeout time.Duration
	log     *slog.Logger
}

func New() *App { return &App{timeout: defaultShutdown} }

func NewWith(comps ...Component) *App {
	app := New()
	for _, c := range comps {
		app.Register(c)
	}
	return app
}

func (a *App) Register(c Component) {
	a.comps = append(a.comps, c)
}

// OnStop 在所有元件 Shutdown 之後依註冊的相反順序執行（關閉 runtime、store 連線、logger）。
func (a *App) OnStop(fn func()) {
	a.stops = append(a.stops, fn)
}

// WithLogger 關閉錯誤寫入 log；未設定時丟棄
func (a *App) WithLogger(log *slog.Logger) *App {
	a.log = log
	return a
}

func (a *App) WithShutdownTimeout(td time.Duration) *App {
	if td > 0 {
		a.timeout = td
	}
	return a
}

// Run 直到收到 SIGINT/SIGTERM 或任一元件結束
func (a *App) Run() error {
	return a.RunContext(context.Background())
}

// RunContext 同 Run，ctx 結束也會觸發優雅關閉。
// 回傳第一個元件錯誤；信號或 ctx 造成的正常關閉回傳 nil。
func (a *App) RunContext(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range a.comps {
		g.Go(func() error {
			if err := c.Run(); err != nil {
				return err
			}
			return errStopped
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		a.gracefulShutdown(a.timeout)
		return nil
	})

	err := g.Wait()
	for i := len(a.stops) - 1; i >= 0; i-- {
		a.stops[i]()
	}
	if errors.Is(err, errStopped) {
		return nil
	}
	return err
}

func (a *App) gracefulShutdown(td time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), td)
	defer cancel()
	for _, c := range a.comps {
		if err := c.Shutdown(ctx); err != nil && a.log != nil {
			a.log.Error("shutdown error", slog.Any("err", err))
		}
	}
}
