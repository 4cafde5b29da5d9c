package middleware

import (
	"net/http"
	"time"

	"socialsync/internal/platform/logger"
	pnet "socialsync/internal/platform/net"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestContext moves chi's request id onto pnet's context key and the response
// header. Mount after chi's RequestID
func RequestContext() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := chimw.GetReqID(r.Context())
			if rid != "" {
				w.Header().Set("X-Request-ID", rid)
			}
			next.ServeHTTP(w, r.WithContext(pnet.WithRequestID(r.Context(), rid)))
		})
	}
}

// AccessLogOptions configures AccessLogZerolog
type AccessLogOptions struct {
	// Slow logs requests at least this long at warn. 0 disables
	Slow time.Duration
}

// AccessLogZerolog writes one line per request through logger.C. 5xx is logged at error
func AccessLogZerolog(opt AccessLogOptions) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			took := time.Since(start)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log := logger.C(r.Context())
			evt := log.Info()
			if status >= http.StatusInternalServerError {
				evt = log.Error()
			} else if opt.Slow > 0 && took >= opt.Slow {
				evt = log.Warn()
			}
			evt.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", took).
				Str("remote", r.RemoteAddr).
				Msg("request done")
		})
	}
}
