package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/MorseWayne/shopcart/internal/resp"
)

// Timeout 在 d 之后取消请求上下文；处理器届时仍未写响应时，客户端收到 504 统一超时响应。
// 上游目录请求携带该上下文，慢的上游不会拖住连接。
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	body, _ := json.Marshal(resp.Response[any]{
		Code:    resp.CodeTimeout,
		Message: "request timeout",
	})
	return func(next http.Handler) http.Handler {
		h := http.TimeoutHandler(next, d, string(body))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tw := &timeoutStatusWriter{ResponseWriter: w}
			h.ServeHTTP(tw, r)
		})
	}
}

// timeoutStatusWriter 将 http.TimeoutHandler 的 503 改写为 504，并补上 JSON 头
type timeoutStatusWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *timeoutStatusWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	if code == http.StatusServiceUnavailable && w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		code = resp.HTTPStatusFromCode(resp.CodeTimeout)
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *timeoutStatusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
