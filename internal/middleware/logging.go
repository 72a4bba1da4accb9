package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RequestLogger struct {
	logr *zap.Logger
}

// NewRequestLogger creates a middleware that logs one line per request.
func NewRequestLogger(logr *zap.Logger) *RequestLogger {
	return &RequestLogger{logr: logr}
}

// Log records method, path, status and latency, tagged with the chi request id.
// Server errors are logged at error level, client errors at warn.
func (m *RequestLogger) Log(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := []zap.Field{
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("latency", time.Since(start)),
		}

		switch {
		case status >= http.StatusInternalServerError:
			m.logr.Error("request", fields...)
		case status >= http.StatusBadRequest:
			m.logr.Warn("request", fields...)
		default:
			m.logr.Debug("request", fields...)
		}
	})
}
