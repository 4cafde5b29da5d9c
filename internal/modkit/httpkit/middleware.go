package httpkit

import (
	"net/http"
	"time"

	"socialsync/internal/platform/config"
	"socialsync/internal/platform/net/middleware"
)

// StackOptions tunes the per-API middleware stack
type StackOptions struct {
	Origins []string
	SlowLog time.Duration
}

// StackFromConfig reads CORS_ORIGINS and SLOW_LOG from cfg
func StackFromConfig(cfg config.Conf) StackOptions {
	return StackOptions{
		Origins: cfg.MayCSV("CORS_ORIGINS", []string{"*"}),
		SlowLog: cfg.MayDuration("SLOW_LOG", 2*time.Second),
	}
}

// CommonStack is the per-API middleware slice mounted under /api/v1.
// Request id, recovery and timeouts live on the root via middleware.Defaults
func CommonStack(o StackOptions) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.AccessLogZerolog(middleware.AccessLogOptions{Slow: o.SlowLog}),
		middleware.CORS(middleware.CORSOptions{AllowedOrigins: o.Origins}),
	}
}
