package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mkrupp/homecase-accounts/internal/infra/logging"
)

// ResponseRecorder wraps http.ResponseWriter to capture the status code
// and the number of bytes sent.
type ResponseRecorder struct {
	http.ResponseWriter
	StatusCode int
	BytesSent  int

	wroteHeader bool
}

// NewResponseRecorder wraps w, defaulting the status to 200.
func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	if rec, ok := w.(*ResponseRecorder); ok {
		return rec
	}

	return &ResponseRecorder{ResponseWriter: w, StatusCode: http.StatusOK}
}

func (w *ResponseRecorder) WriteHeader(code int) {
	if !w.wroteHeader {
		w.StatusCode = code
		w.wroteHeader = true
	}

	w.ResponseWriter.WriteHeader(code)
}

func (w *ResponseRecorder) Write(b []byte) (int, error) {
	w.wroteHeader = true
	w.BytesSent += len(b)

	n, err := w.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write: %w", err)
	}

	return n, nil
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *ResponseRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// LoggingMiddleware creates middleware that logs HTTP request and response details.
// It logs requests at DEBUG level and responses at a level determined by the status code:
// - 5xx: ERROR
// - 4xx: WARN
// - Other: INFO.
func LoggingMiddleware(next http.Handler, log logging.Logger) http.Handler {
	//nolint:varnamelen
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.DebugContext(r.Context(), "request", slog.Group("http",
			"uri", r.RequestURI,
			"method", r.Method,
		))

		rec := NewResponseRecorder(w)

		next.ServeHTTP(rec, r)

		var level logging.Level

		switch {
		case rec.StatusCode >= http.StatusInternalServerError:
			level = logging.LevelError
		case rec.StatusCode >= http.StatusBadRequest:
			level = logging.LevelWarn
		default:
			level = logging.LevelInfo
		}

		log.Log(r.Context(), level, "response", slog.Group("http",
			"uri", r.RequestURI,
			"method", r.Method,
			"status", rec.StatusCode,
			"bytes_sent", rec.BytesSent,
		))
	})
}
