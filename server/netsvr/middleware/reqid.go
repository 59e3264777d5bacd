package middleware

import (
	"context"
	"net/http"
	"strings"

	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// HeaderRequestID 上游（閘道/前端）可帶入的請求編號
const HeaderRequestID = "X-Request-Id"

const maxReqIDLen = 128

// RequestID 沿用上游的 X-Request-Id，沒有則產生 UUID。
// 編號寫入 chi 的 RequestIDKey，因此 chimid.GetReqID 仍可取用，並回寫到 response header。
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if id == "" || len(id) > maxReqIDLen {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		ctx := context.WithValue(r.Context(), chimid.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetReqId(r *http.Request) string {
	return chimid.GetReqID(r.Context())
}

// ShortReqId 取 UUID 第一段，方便在日誌中肉眼比對
func ShortReqId(r *http.Request) string {
	str := GetReqId(r)
	if i := strings.IndexByte(str, '-'); i > 0 {
		return str[:i]
	}
	return str
}
