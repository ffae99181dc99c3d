package api

import (
	"net/http"
	"time"

	"closingdoors/internal/logging"
)

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (a *API) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx := logging.WithLogger(r.Context(), a.logger)
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r.WithContext(ctx))

		logging.LogHTTPRequest(a.logger,
			r.Method,
			r.URL.Path,
			wrapped.statusCode,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}
