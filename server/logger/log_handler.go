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

// Package logger 組裝服務用的 *slog.Logger：模式、非同步寫出與檔案輪替。
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/zintix-labs/candyreels/errs"
	"gopkg.in/natefinch/lumberjack.v2"
)

// enum LogMode
type LogMode uint8

const (
	ModeDev LogMode = iota
	ModeProd
	ModeSilence
)

// ParseMode 由旗標字串取得模式（dev / prod / silence）
func ParseMode(s string) (LogMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dev":
		return ModeDev, nil
	case "prod":
		return ModeProd, nil
	case "silence", "silent":
		return ModeSilence, nil
	}
	return ModeDev, errs.NewWarn("unknown log mode: " + s)
}

// Options 服務 logger 設定。
//   - Buf > 0 時以 AsyncHandler 包裝，請求路徑不會被 I/O 阻塞。
//   - File 非空時寫入輪替檔案（lumberjack），不再寫 stdout/stderr。
type Options struct {
	Mode       LogMode
	Buf        int
	File       string
	MaxSizeMB  int // 單檔上限，預設 100
	MaxBackups int // 預設 7
	MaxAgeDays int // 預設 10
}

// New 依 Options 建立 logger；回傳的 closer 會 drain 非同步佇列並關閉檔案，可重複呼叫。
func New(opt Options) (*slog.Logger, func()) {
	var w io.Writer
	var rot *lumberjack.Logger
	if opt.File != "" && opt.Mode != ModeSilence {
		rot = &lumberjack.Logger{
			Filename:   opt.File,
			MaxSize:    withDefault(opt.MaxSizeMB, 100),
			MaxBackups: withDefault(opt.MaxBackups, 7),
			MaxAge:     withDefault(opt.MaxAgeDays, 10),
			Compress:   true,
		}
		w = rot
	}
	h := buildHandler(opt.Mode, w)

	var ah *AsyncHandler
	if opt.Buf > 0 {
		ah = NewAsyncHandler(h, opt.Buf)
		h = ah
	}

	var once sync.Once
	closer := func() {
		once.Do(func() {
			ah.Close()
			if rot != nil {
				_ = rot.Close()
			}
		})
	}
	return slog.New(h), closer
}

// NewDefaultLogger returns a *slog.Logger built from LogMode defaults.
func NewDefaultLogger(mode LogMode) *slog.Logger {
	return slog.New(buildHandler(mode, nil))
}

// NewAsync 預設模式 + 非同步
func NewAsync(buf int, mode LogMode) (*slog.Logger, *AsyncHandler) {
	ah := NewAsyncHandler(buildHandler(mode, nil), buf)
	return slog.New(ah), ah
}

// AsyncHandler 把任何 slog.Handler 變成非阻塞：
//   - Handle 只做 enqueue，背景 goroutine 逐筆寫出。
//   - channel 滿時丟棄並計數，避免把延遲傳回請求路徑。
//
// slog.Logger 會忽略 Handle 回傳的 error；I/O error 需由 next handler 自行處理。
type AsyncHandler struct {
	next slog.Handler
	d    *asyncDispatcher
}

type asyncDispatcher struct {
	ch     chan asyncItem
	closed chan struct{}
	once   sync.Once
	wg     sync.WaitGroup

	dropCount atomic.Uint64
}

type asyncItem struct {
	ctx     context.Context
	rec     slog.Record
	handler slog.Handler
}

// NewAsyncHandler buf 越大越不容易 drop，但 shutdown drain 時間也越長。
func NewAsyncHandler(next slog.Handler, buf int) *AsyncHandler {
	if next == nil {
		next = buildHandler(ModeDev, nil)
	}
	if buf <= 0 {
		buf = 1024
	}
	d := &asyncDispatcher{
		ch:     make(chan asyncItem, buf),
		closed: make(chan struct{}),
	}
	d.wg.Add(1)
	go d.worker()
	return &AsyncHandler{next: next, d: d}
}

func (h *AsyncHandler) Ready() bool {
	return (h != nil && h.d != nil)
}

// Dropped 因佇列已滿（或已關閉）而丟棄的筆數
func (h *AsyncHandler) Dropped() uint64 {
	if h == nil || h.d == nil {
		return 0
	}
	return h.d.dropCount.Load()
}

// Close 停止背景寫出並 drain 剩餘紀錄；nil 安全。
func (h *AsyncHandler) Close() {
	if h == nil || h.d == nil {
		return
	}
	h.d.once.Do(func() { close(h.d.closed) })
	h.d.wg.Wait()
}

func (d *asyncDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case it := <-d.ch:
			_ = it.handler.Handle(it.ctx, it.rec)
		case <-d.closed:
			for {
				select {
				case it := <-d.ch:
					_ = it.handler.Handle(it.ctx, it.rec)
				default:
					return
				}
			}
		}
	}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *AsyncHandler) Handle(ctx context.Context, r slog.Record) error {
	if h == nil || h.d == nil {
		return nil
	}
	select {
	case <-h.d.closed:
		h.d.dropCount.Add(1)
		return nil
	default:
	}
	// Record 跨 goroutine 前必須 Clone
	it := asyncItem{ctx: context.WithoutCancel(ctx), rec: r.Clone(), handler: h.next}
	select {
	case h.d.ch <- it:
	default:
		h.d.dropCount.Add(1)
	}
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{next: h.next.WithAttrs(attrs), d: h.d}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{next: h.next.WithGroup(name), d: h.d}
}

// buildHandler w 為 nil 時依模式使用 stderr（dev）或 stdout（prod）。
func buildHandler(mode LogMode, w io.Writer) slog.Handler {
	switch mode {
	case ModeSilence:
		return slog.NewTextHandler(io.Discard, nil)
	case ModeProd:
		// JSON，給 Loki / Promtail
		if w == nil {
			w = os.Stdout
		}
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	default:
		if w == nil {
			w = os.Stderr
		}
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
}

func withDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
