// Package middleware is the server's middleware set: chi's stock pieces plus the
// request logging and panic recovery written here
package middleware

import (
	"compress/flate"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	chicors "github.com/go-chi/cors"
)

// Middleware is a plain net/http middleware
type Middleware = func(http.Handler) http.Handler

// Compress gzips or deflates responses the client accepts at level
func Compress(level int) Middleware { return chimw.NewCompressor(level).Handler }

// CORSOptions is the part of go-chi/cors the API exposes
type CORSOptions struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// CORS builds a cors handler. Empty method and header lists fall back to what the ingest API needs
func CORS(o CORSOptions) Middleware {
	if len(o.AllowedMethods) == 0 {
		o.AllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	if len(o.AllowedHeaders) == 0 {
		o.AllowedHeaders = []string{"Accept", "Content-Type", "X-Request-ID"}
	}
	return chicors.Handler(chicors.Options{
		AllowedOrigins:   o.AllowedOrigins,
		AllowedMethods:   o.AllowedMethods,
		AllowedHeaders:   o.AllowedHeaders,
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: o.AllowCredentials,
		MaxAge:           o.MaxAge,
	})
}

// Defaults is the root stack of every server, outermost first.
// The request id reaches the logger context before anything can log
func Defaults(timeout time.Duration) []Middleware {
	return []Middleware{
		chimw.RealIP,
		chimw.RequestID,
		RequestContext(),
		RecoverJSON,
		chimw.Timeout(timeout),
		Compress(flate.DefaultCompression),
		chimw.NoCache,
	}
}
