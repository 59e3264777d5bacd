package middleware

import (
	"bufio"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade") ||
		r.Header.Get("Upgrade") != ""
}

// 204 / 304 / 1xx 不可帶 body
func isNoBodyStatus(code int) bool {
	return (code >= 100 && code < 200) || code == http.StatusNoContent || code == http.StatusNotModified
}

// CompressConfig 壓縮設定。SkipPrefixes 下的路徑不壓縮（例如 /metrics 自帶 gzip 協商）。
type CompressConfig struct {
	GzipLevel    int
	ZstdLevel    zstd.EncoderLevel
	SkipPrefixes []string
}

var DefaultCompressConfig = CompressConfig{
	GzipLevel:    gzip.DefaultCompression,
	ZstdLevel:    zstd.SpeedFastest,
	SkipPrefixes: []string{"/metrics"},
}

// encoders 每組設定各自一份 writer pool，避免不同等級的 encoder 混用
type encoders struct {
	cfg  CompressConfig
	gzip sync.Pool
	zstd sync.Pool
}

func (e *encoders) getZstd(w io.Writer) *zstd.Encoder {
	if v := e.zstd.Get(); v != nil {
		zw := v.(*zstd.Encoder)
		zw.Reset(w)
		return zw
	}
	zw, err := zstd.NewWriter(w,
		zstd.WithEncoderLevel(e.cfg.ZstdLevel),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		panic(err)
	}
	return zw
}

func (e *encoders) putZstd(zw *zstd.Encoder) {
	_ = zw.Close()
	e.zstd.Put(zw)
}

func (e *encoders) getGzip(w io.Writer) *gzip.Writer {
	if v := e.gzip.Get(); v != nil {
		gw := v.(*gzip.Writer)
		gw.Reset(w)
		return gw
	}
	gw, err := gzip.NewWriterLevel(w, e.cfg.GzipLevel)
	if err != nil {
		gw = gzip.NewWriter(w)
	}
	return gw
}

func (e *encoders) putGzip(gw *gzip.Writer) {
	_ = gw.Close()
	e.gzip.Put(gw)
}

func (e *encoders) skip(r *http.Request) bool {
	if r.Method == http.MethodHead || isWebSocketUpgrade(r) {
		return true
	}
	for _, p := range e.cfg.SkipPrefixes {
		if strings.HasPrefix(r.URL.Path, p) {
			return true
		}
	}
	return false
}

type compressResponseWriter struct {
	http.ResponseWriter
	w        io.Writer // gzip.Writer 或 zstd.Encoder
	disabled bool      // 回應為無 body 狀態碼時停用
}

func (cw *compressResponseWriter) Write(b []byte) (int, error) {
	if cw.disabled {
		return cw.ResponseWriter.Write(b)
	}
	cw.Header().Del("Content-Length")
	if cw.Header().Get("Content-Type") == "" {
		cw.Header().Set("Content-Type", http.DetectContentType(b))
	}
	return cw.w.Write(b)
}

func (cw *compressResponseWriter) WriteHeader(code int) {
	cw.Header().Del("Content-Length")
	if isNoBodyStatus(code) {
		cw.disabled = true
		cw.Header().Del("Content-Encoding")
		cw.Header().Del("Vary")
	}
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *compressResponseWriter) Flush() {
	if !cw.disabled {
		if f, ok := cw.w.(interface{ Flush() error }); ok {
			_ = f.Flush()
		}
	}
	if f, ok := cw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (cw *compressResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := cw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("underlying response writer does not support Hijacker")
	}
	return hj.Hijack()
}

// Compress 依 Accept-Encoding 選擇 zstd 優先、其次 gzip。
func Compress(cfg CompressConfig) func(http.Handler) http.Handler {
	enc := &encoders{cfg: cfg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if enc.skip(r) || w.Header().Get("Content-Encoding") != "" {
				next.ServeHTTP(w, r)
				return
			}
			accept := r.Header.Get("Accept-Encoding")
			switch {
			case strings.Contains(accept, "zstd"):
				w.Header().Set("Content-Encoding", "zstd")
				w.Header().Add("Vary", "Accept-Encoding")
				zw := enc.getZstd(w)
				cw := &compressResponseWriter{ResponseWriter: w, w: zw}
				defer func() {
					// 停用時 footer 丟到 io.Discard，不可污染 204/304
					if cw.disabled {
						zw.Reset(io.Discard)
					}
					enc.putZstd(zw)
				}()
				next.ServeHTTP(cw, r)
			case strings.Contains(accept, "gzip"):
				w.Header().Set("Content-Encoding", "gzip")
				w.Header().Add("Vary", "Accept-Encoding")
				gw := enc.getGzip(w)
				cw := &compressResponseWriter{ResponseWriter: w, w: gw}
				defer func() {
					if cw.disabled {
						gw.Reset(io.Discard)
					}
					enc.putGzip(gw)
				}()
				next.ServeHTTP(cw, r)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// Compression 使用預設設定
func Compression(next http.Handler) http.Handler {
	return Compress(DefaultCompressConfig)(next)
}
