package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

// AccessLog emits one line per request and flags handlers that call WriteHeader twice,
// which on the webhook path would mean an ack raced a failure.
func AccessLog(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, log: log, method: r.Method, path: r.URL.Path}
			next.ServeHTTP(sw, r)
			if sw.code == 0 {
				sw.code = http.StatusOK
			}
			log.Infow("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.code,
				"bytes", sw.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", RequestIDFrom(r.Context()),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	log    *zap.SugaredLogger
	method string
	path   string
	code   int
	bytes  int
}

func (s *statusWriter) WriteHeader(code int) {
	if s.code == 0 {
		s.code = code
		s.ResponseWriter.WriteHeader(code)
		return
	}
	s.log.Warnw("double WriteHeader", "method", s.method, "path", s.path, "first", s.code, "second", code, "stack", string(debug.Stack()))
}

func (s *statusWriter) Write(b []byte) (int, error) {
	if s.code == 0 {
		s.WriteHeader(http.StatusOK)
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func (s *statusWriter) Unwrap() http.ResponseWriter { return s.ResponseWriter }
