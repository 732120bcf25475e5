package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// RequestLogger returns chi middleware emitting the request.start/end/error
// JSONL lines the logging contract names, tagged with the chi request id
// used as the trace id and stamped onto the request context for downstream
// handlers and audit rows.
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			traceID := middleware.GetReqID(r.Context())
			ctx := WithTraceID(r.Context(), traceID)
			r = r.WithContext(ctx)

			log.Info().
				Str("event", "request.start").
				Str("trace_id", traceID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Msg("request started")

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			durationMS := float64(time.Since(start).Microseconds()) / 1000.0
			event := "request.end"
			logLine := log.Info()
			if ww.Status() >= 500 {
				event = "request.error"
				logLine = log.Error()
			}

			logLine.
				Str("event", event).
				Str("trace_id", traceID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Float64("duration_ms", durationMS).
				Int("status_code", ww.Status()).
				Msg("request finished")
		})
	}
}
