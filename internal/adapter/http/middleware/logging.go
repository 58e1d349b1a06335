package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// pollRoutes are hit by orchestrators and scrapers; successful hits log at debug.
var pollRoutes = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// RequestLog logs one line per request, keyed by route pattern rather than raw path.
// Failed readiness checks surface at warn, server errors at error.
func RequestLog(logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "ops_http").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)

			var event *zerolog.Event
			switch {
			case status >= http.StatusInternalServerError && route != "/ready":
				event = logger.Error()
			case status >= http.StatusBadRequest:
				event = logger.Warn()
			case pollRoutes[route]:
				event = logger.Debug()
			default:
				event = logger.Info()
			}
			event.
				Str("request_id", chimiddleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("route", route).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Msg("ops request")
		})
	}
}
