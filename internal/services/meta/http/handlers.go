// Package http serves the service's own status: liveness, backend readiness and build info
package http

import (
	"context"
	"net/http"
	"time"

	"socialsync/internal/core/version"
	"socialsync/internal/modkit/httpkit"
	"socialsync/internal/platform/store"
)

// Deps are what the meta routes report on. A nil backend is skipped
type Deps struct {
	ServiceName string
	StartedAt   time.Time
	PG          any
	CH          any

	Now          func() time.Time // default time.Now
	ReadyTimeout time.Duration    // default 2s, shared by all pings
}

// HealthResponse answers GET /health
type HealthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
	Started string `json:"started"`
	Uptime  int64  `json:"uptime"` // seconds
}

// Backend readiness, ordered from best to worst
const (
	StatusOK       = "ok"
	StatusSkipped  = "skipped"
	StatusUnknown  = "unknown"
	StatusDegraded = "degraded"
	StatusFail     = "fail"
)

var severity = map[string]int{
	StatusOK: 0, StatusSkipped: 1, StatusUnknown: 1, StatusDegraded: 1, StatusFail: 2,
}

// ReadyCheck is one backend's answer
type ReadyCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ReadyResponse answers GET /ready. Status is ok, degraded or fail
type ReadyResponse struct {
	Status string       `json:"status"`
	Checks []ReadyCheck `json:"checks"`
	Now    string       `json:"now"`
}

// Register mounts /health, /ready and /version on r
func Register(r httpkit.Router, d Deps) {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.ReadyTimeout <= 0 {
		d.ReadyTimeout = 2 * time.Second
	}

	httpkit.Get(r, "/health", func(*http.Request) (any, error) {
		return HealthResponse{
			OK:      true,
			Service: d.ServiceName,
			Started: d.StartedAt.UTC().Format(time.RFC3339),
			Uptime:  int64(d.Now().Sub(d.StartedAt) / time.Second),
		}, nil
	})
	httpkit.Get(r, "/ready", func(req *http.Request) (any, error) {
		return ready(req.Context(), d), nil
	})
	httpkit.Get(r, "/version", func(*http.Request) (any, error) {
		return version.Info(d.ServiceName), nil
	})
}

func ready(ctx context.Context, d Deps) ReadyResponse {
	ctx, cancel := context.WithTimeout(ctx, d.ReadyTimeout)
	defer cancel()

	out := ReadyResponse{Status: StatusOK, Now: d.Now().UTC().Format(time.RFC3339)}
	for _, b := range []struct {
		name string
		seam any
	}{{"pg", d.PG}, {"ch", d.CH}} {
		c := probe(ctx, b.name, b.seam)
		out.Checks = append(out.Checks, c)
		switch {
		case severity[c.Status] == 2:
			out.Status = StatusFail
		case severity[c.Status] == 1 && out.Status == StatusOK:
			out.Status = StatusDegraded
		}
	}
	return out
}

func probe(ctx context.Context, name string, seam any) ReadyCheck {
	c := ReadyCheck{Name: name}
	p, isPinger := seam.(store.Pinger)
	switch {
	case seam == nil:
		c.Status = StatusSkipped
	case !isPinger:
		c.Status = StatusUnknown
	default:
		if err := p.Ping(ctx); err != nil {
			c.Status, c.Error = StatusFail, err.Error()
		} else {
			c.Status = StatusOK
		}
	}
	return c
}
