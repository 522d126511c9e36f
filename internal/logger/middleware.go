package logger

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StatusRecorder remembers the status code written through it.
type StatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *StatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *StatusRecorder) Write(b []byte) (int, error) {
	if r.Status == 0 {
		r.Status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *StatusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Middleware attaches a request-scoped logger carrying request_id to the
// request context and logs one line per completed request.
func Middleware(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		reqLog := log.With(zap.String("request_id", requestID))
		rec := &StatusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r.WithContext(WithContext(r.Context(), reqLog)))

		status := rec.Status
		if status == 0 {
			status = http.StatusOK
		}

		fields := []zapcore.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("user_agent", r.UserAgent()),
		}
		if status >= http.StatusInternalServerError {
			reqLog.Error("HTTP request failed", fields...)
			return
		}
		reqLog.Info("HTTP request completed", fields...)
	})
}
