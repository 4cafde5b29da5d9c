package http

import (
	"context"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	phttp "socialsync/internal/platform/net/http"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func get(t *testing.T, d Deps, path string) string {
	t.Helper()
	r := phttp.AdaptChi(chi.NewRouter())
	Register(r, d)
	rr := httptest.NewRecorder()
	r.Mux().ServeHTTP(rr, httptest.NewRequest(stdhttp.MethodGet, path, nil))
	if rr.Code != stdhttp.StatusOK {
		t.Fatalf("%s = %d", path, rr.Code)
	}
	return rr.Body.String()
}

func TestHealthAndVersion(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	d := Deps{ServiceName: "socialsync-api", StartedAt: start, Now: func() time.Time { return start.Add(90 * time.Second) }}

	if body := get(t, d, "/health"); !strings.Contains(body, `"uptime":90`) || !strings.Contains(body, `"service":"socialsync-api"`) {
		t.Fatal(body)
	}
	if body := get(t, d, "/version"); !strings.Contains(body, `"service":"socialsync-api"`) {
		t.Fatal(body)
	}
}

func TestReady(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		pg, ch any
		want   string
	}{
		{"all ok", pinger{}, pinger{}, `"status":"ok"`},
		{"ch off", pinger{}, nil, `"status":"degraded"`},
		{"no ping", pinger{}, struct{}{}, `"status":"degraded"`},
		{"pg down", pinger{err: errors.New("refused")}, nil, `"status":"fail"`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			body := get(t, Deps{PG: c.pg, CH: c.ch}, "/ready")
			if !strings.Contains(body, c.want) {
				t.Fatal(body)
			}
		})
	}
}
