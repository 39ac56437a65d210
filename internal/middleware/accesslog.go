package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// AccessLog 每个请求一条日志；5xx 记为 Error，4xx 记为 Warn，其余为 Info。
// 购物车会话在内层的 gin 中间件里才确定，通过 accessInfo 回填。
func AccessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			ctx, info := withAccessInfo(r.Context())
			next.ServeHTTP(rw, r.WithContext(ctx))

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.statusCode),
				zap.Int("bytes", rw.bytes),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("request_id", rw.Header().Get(HeaderRequestID)),
			}
			if r.URL.RawQuery != "" {
				fields = append(fields, zap.String("query", r.URL.RawQuery))
			}
			if sid := info.session(); sid != "" {
				fields = append(fields, zap.String("cart_session", sid))
			}
			switch {
			case rw.statusCode >= http.StatusInternalServerError:
				logger.Error("http_access", fields...)
			case rw.statusCode >= http.StatusBadRequest:
				logger.Warn("http_access", fields...)
			default:
				logger.Info("http_access", fields...)
			}
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	bytes       int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}
