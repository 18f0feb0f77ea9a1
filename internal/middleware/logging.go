package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mcoot/rafflegrid/internal/services/audit"
)

// ResponseWriter records the status, size, and whether anything has been
// sent yet
type ResponseWriter struct {
	http.ResponseWriter
	status  int
	size    int
	started bool
}

func wrap(w http.ResponseWriter) *ResponseWriter {
	if rw, ok := w.(*ResponseWriter); ok {
		return rw
	}
	return &ResponseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *ResponseWriter) WriteHeader(status int) {
	if !rw.started {
		rw.status = status
		rw.started = true
	}
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	rw.started = true
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Status returns the status code sent, or 200 if none was set explicitly
func (rw *ResponseWriter) Status() int {
	return rw.status
}

// Size returns the number of body bytes written
func (rw *ResponseWriter) Size() int {
	return rw.size
}

// Started reports whether headers or body have gone out
func (rw *ResponseWriter) Started() bool {
	return rw.started
}

// Flush lets SSE handlers push events through the wrapper
func (rw *ResponseWriter) Flush() {
	rw.started = true
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController
func (rw *ResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Logging logs one line per request. Event streams are logged when the
// client disconnects, with the whole stream's duration.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrap(w)

			next.ServeHTTP(wrapped, r)

			msg := "http request"
			if strings.HasPrefix(wrapped.Header().Get("Content-Type"), "text/event-stream") {
				msg = "event stream closed"
			}

			level := slog.LevelInfo
			if wrapped.status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, msg,
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("client_addr", audit.ClientAddress(r.Context())),
				slog.Int("status", wrapped.status),
				slog.Int("size", wrapped.size),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
