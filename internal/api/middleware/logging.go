package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Logger returns a request logging middleware using zerolog. The completion
// entry carries the caller identity when the edge supplied one. Push streams
// stay open for minutes, so their entry only fires at disconnect and is
// tagged as a stream with the connection duration instead of a latency.
func Logger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				evt := logger.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("remote_addr", r.RemoteAddr)

				if ident := IdentityFromContext(r.Context()); ident != nil {
					evt = evt.Str("user_id", ident.UserID)
				}

				if ww.Header().Get("Content-Type") == "text/event-stream" {
					evt.Dur("connected", time.Since(start)).Msg("stream completed")
					return
				}
				evt.Dur("latency", time.Since(start)).Msg("request completed")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
