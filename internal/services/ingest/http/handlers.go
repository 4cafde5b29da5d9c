// Package http provides http transport for ingest
package http

import (
	stdhttp "net/http"
	"strconv"
	"sync"

	"socialsync/internal/core/record"
	"socialsync/internal/modkit/httpkit"
	perr "socialsync/internal/platform/errors"
	"socialsync/internal/services/ingest/domain"
)

var registerOnce sync.Once

func registerValidations() {
	registerOnce.Do(func() {
		_ = httpkit.RegisterValidation("record_kind", "{0} must be one of profile, post, comment", func(fl httpkit.FieldLevel) bool {
			_, err := record.ParseKind(fl.Field().String())
			return err == nil
		})
	})
}

// Register mounts ingest endpoints on the given router. runs may be nil when no
// sink keeps run history
func Register(r httpkit.Router, runner domain.RunnerPort, cat domain.CatalogPort, runs domain.RunLister, maxBody int64) {
	registerValidations()
	h := &handlers{runner: runner, cat: cat, runs: runs}

	// one scraper response through the whole pipeline
	httpkit.PostJSON[domain.RunInput](r, "/runs", h.run, httpkit.JSONOptions{
		MaxBytes:        maxBody,
		DisallowUnknown: true,
		UseNumber:       true,
	})

	httpkit.Get(r, "/catalog", h.catalog)

	if runs != nil {
		httpkit.Get(r, "/runs", h.recent)
	}
}

type handlers struct {
	runner domain.RunnerPort
	cat    domain.CatalogPort
	runs   domain.RunLister
}

// POST /ingest/runs
// Body: domain.RunInput. 201 with the run summary; a run cut short by its deadline
// answers with the error and the partial summary as data
func (h *handlers) run(r *stdhttp.Request, in domain.RunInput) (any, error) {
	sum, err := h.runner.Run(r.Context(), in)
	if err != nil {
		if sum.RunID == "" {
			return nil, err
		}
		if _, ok := perr.As(err); !ok {
			err = perr.Wrap(err, perr.ErrorCodeUnavailable, "run ended early")
		}
		return httpkit.ErrorWith(err, sum), nil
	}
	return httpkit.Created(sum), nil
}

// GET /ingest/catalog
func (h *handlers) catalog(*stdhttp.Request) (any, error) {
	return h.cat.Schemas(), nil
}

// GET /ingest/runs?limit=50
func (h *handlers) recent(r *stdhttp.Request) (any, error) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return nil, perr.WithField(perr.InvalidArgf("limit must be a positive integer"), "limit")
		}
		limit = n
	}
	return h.runs.Recent(r.Context(), limit)
}
