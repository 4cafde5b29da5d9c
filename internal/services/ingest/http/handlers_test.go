package http

import (
	"context"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"socialsync/internal/core/catalog"
	"socialsync/internal/core/reconcile"
	"socialsync/internal/core/report"
	"socialsync/internal/modkit/httpkit"
	perr "socialsync/internal/platform/errors"
	phttp "socialsync/internal/platform/net/http"
	"socialsync/internal/services/ingest/domain"
)

type fakeRunner struct {
	got []domain.RunInput
	err error
}

func (f *fakeRunner) Run(_ context.Context, in domain.RunInput) (report.Summary, error) {
	f.got = append(f.got, in)
	return report.Summary{RunID: "run-1", Actions: map[reconcile.Action]int{reconcile.Insert: len(in.Items)}}, f.err
}

type fakeRuns struct{ limit int }

func (f *fakeRuns) Recent(_ context.Context, limit int) ([]domain.RunRow, error) {
	f.limit = limit
	return []domain.RunRow{{RunID: "run-1", Inserted: 2}}, nil
}

func newRouter() httpkit.Router { return phttp.AdaptChi(chi.NewRouter()) }

func serve(r httpkit.Router, method, path, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	r.Mux().ServeHTTP(rr, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rr
}

func TestRegister(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	runs := &fakeRuns{}
	r := newRouter()
	Register(r, runner, catalog.Default(), runs, 1<<20)

	cases := []struct {
		name, method, path, body string
		code                     int
		want                     string
	}{
		{"run", "POST", "/runs", `{"items":[{"shortCode":"A1","id":"1"}],"kind_hint":"post"}`, 201, `"run_id":"run-1"`},
		{"missing items", "POST", "/runs", `{"kind_hint":"post"}`, 400, `"field":"items"`},
		{"bad hint", "POST", "/runs", `{"items":[],"kind_hint":"reel"}`, 400, `"field":"kind_hint"`},
		{"unknown key", "POST", "/runs", `{"items":[],"dataset":"x"}`, 400, `"code_name":"JSON"`},
		{"catalog", "GET", "/catalog", "", 200, `"kind":"profile"`},
		{"runs", "GET", "/runs?limit=5", "", 200, `"inserted":2`},
		{"bad limit", "GET", "/runs?limit=-1", "", 400, `"field":"limit"`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rr := serve(r, c.method, c.path, c.body)
			if rr.Code != c.code || !strings.Contains(rr.Body.String(), c.want) {
				t.Fatalf("%d %s", rr.Code, rr.Body.String())
			}
		})
	}
	if len(runner.got) != 1 || runner.got[0].KindHint != "post" {
		t.Fatalf("runner got %+v", runner.got)
	}
	if runs.limit != 5 {
		t.Fatalf("limit = %d", runs.limit)
	}
}

func TestRegister_KeepsLargeIDs(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	r := newRouter()
	Register(r, runner, catalog.Default(), nil, 1<<20)

	rr := serve(r, "POST", "/runs", `{"items":[{"id":17841400008460056,"shortCode":"A1"}]}`)
	if rr.Code != 201 {
		t.Fatalf("%d %s", rr.Code, rr.Body.String())
	}
	if got := runner.got[0].Items[0]["id"]; got == nil || got.(interface{ String() string }).String() != "17841400008460056" {
		t.Fatalf("id = %#v", got)
	}
}

func TestRegister_RunErrorAndNoHistory(t *testing.T) {
	t.Parallel()

	r := newRouter()
	Register(r, &fakeRunner{err: perr.Unavailablef("store down")}, catalog.Default(), nil, 64)

	if rr := serve(r, "POST", "/runs", `{"items":[]}`); rr.Code != 503 {
		t.Fatalf("run error = %d %s", rr.Code, rr.Body.String())
	}
	if rr := serve(r, "POST", "/runs", `{"items":[{"caption":"`+strings.Repeat("x", 100)+`"}]}`); rr.Code != 400 {
		t.Fatalf("oversized body = %d", rr.Code)
	}
	if rr := serve(r, stdhttp.MethodGet, "/runs", ""); rr.Code != 405 && rr.Code != 404 {
		t.Fatalf("runs without history = %d", rr.Code)
	}
}

func TestRegister_PartialSummaryOnDeadline(t *testing.T) {
	t.Parallel()

	r := newRouter()
	Register(r, &fakeRunner{err: context.DeadlineExceeded}, catalog.Default(), nil, 1<<20)

	rr := serve(r, "POST", "/runs", `{"items":[{"shortCode":"A1","id":"1"}]}`)
	if rr.Code != 503 {
		t.Fatalf("%d %s", rr.Code, rr.Body.String())
	}
	for _, want := range []string{`"code_name":"UNAVAILABLE"`, `"run_id":"run-1"`, `"INSERT":1`} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Fatalf("missing %s in %s", want, rr.Body.String())
		}
	}
}
