// Package app 管理長期運行元件（HTTP server、背景回報）的啟動與優雅關閉。
package app

import (
	"context"
	"sync"
	"time"
)

// Component 可啟動 / 可關閉的長生命週期元件。
//   - Run() 阻塞到元件停止；正常停止回傳 nil。
//   - Shutdown(ctx) 要求優雅關閉，需尊重 ctx deadline。
type Component interface {
	Run() error
	Shutdown(ctx context.Context) error
}

// Ticker 週期性背景工作（例如定時輸出機台池狀態）。
// fn 收到的 ctx 在 Shutdown 時取消；Shutdown 後 Run 回傳 nil。
type Ticker struct {
	every time.Duration
	fn    func(ctx context.Context)

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// Every 建立 Ticker；d <= 0 時使用一分鐘
func Every(d time.Duration, fn func(ctx context.Context)) *Ticker {
	if d <= 0 {
		d = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Ticker{every: d, fn: fn, ctx: ctx, cancel: cancel}
}

func (t *Ticker) Run() error {
	tk := time.NewTicker(t.every)
	defer tk.Stop()
	for {
		select {
		case <-t.ctx.Done():
			return nil
		case <-tk.C:
			t.fn(t.ctx)
		}
	}
}

func (t *Ticker) Shutdown(context.Context) error {
	t.once.Do(t.cancel)
	return nil
}
