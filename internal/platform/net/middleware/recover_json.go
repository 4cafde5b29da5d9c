package middleware

import (
	stdhttp "net/http"
	"runtime/debug"

	perr "socialsync/internal/platform/errors"
	"socialsync/internal/platform/logger"
	phttp "socialsync/internal/platform/net/http"
)

// RecoverJSON converts panics into the JSON error envelope and logs the stack
// with the request id. http.ErrAbortHandler is re-raised
func RecoverJSON(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == stdhttp.ErrAbortHandler {
				panic(v)
			}

			logger.C(r.Context()).Error().
				Interface("panic", v).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			status, env := phttp.ErrorEnvelope(r, perr.PanicErrf("internal error"))
			phttp.JSON(w, status, env)
		}()
		next.ServeHTTP(w, r)
	})
}
