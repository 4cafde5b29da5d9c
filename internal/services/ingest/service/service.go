// Package service provides the ingest service implementation
package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"socialsync/internal/core/audit"
	"socialsync/internal/core/catalog"
	"socialsync/internal/core/classify"
	"socialsync/internal/core/extract"
	"socialsync/internal/core/normalize"
	"socialsync/internal/core/reconcile"
	"socialsync/internal/core/record"
	"socialsync/internal/core/report"
	perr "socialsync/internal/platform/errors"
	"socialsync/internal/platform/logger"
	"socialsync/internal/services/ingest/domain"
	"socialsync/internal/services/ingest/guardrails"
)

// Config holds configuration options for the ingest service
type Config struct {
	// Workers bounds parallel extraction and parallel key partitions; <=0 -> 1
	Workers int

	// Keyed write retry
	MaxRetries int           // attempts per record; <=0 -> 1
	RetryBase  time.Duration // base backoff; <=0 -> 250ms

	Timeouts guardrails.Timeouts

	// OwnerFilter drops posts owned by anyone but RunInput.OwnerUsername
	OwnerFilter bool
}

// Service implements domain.RunnerPort
type Service struct {
	Catalog *catalog.Catalog
	Auditor *audit.Auditor
	Store   domain.RecordStore
	Sink    domain.RunSink // optional
	Cfg     Config

	now   func() time.Time
	newID func() string
}

// New constructs the ingest service. A nil auditor uses the default thresholds
func New(cat *catalog.Catalog, aud *audit.Auditor, st domain.RecordStore, sink domain.RunSink, cfg Config) *Service {
	if cat == nil {
		panic("ingest.Service requires a catalog")
	}
	if st == nil {
		panic("ingest.Service requires a non nil RecordStore")
	}
	if aud == nil {
		aud = audit.New(audit.DefaultConfig())
	}
	return &Service{
		Catalog: cat,
		Auditor: aud,
		Store:   st,
		Sink:    sink,
		Cfg:     cfg,
		now:     time.Now,
		newID:   func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

// unit is one record candidate: a top level item or a child embedded in one
type unit struct {
	index   int
	path    string
	kind    record.Kind
	payload map[string]any

	rec  record.Record
	err  error
	done bool
}

// run accumulates everything the summary is built from
type run struct {
	kinds     map[record.Kind]*report.KindCounts
	top       map[record.Kind]int // top level items per kind as the scraper returned them
	findings  []audit.Finding
	decisions []reconcile.Decision
	failures  []report.Failure
}

func (r *run) count(k record.Kind) *report.KindCounts {
	c, ok := r.kinds[k]
	if !ok {
		c = &report.KindCounts{}
		r.kinds[k] = c
	}
	return c
}

func (r *run) fail(stage string, u unit, err error) {
	f := report.NewFailure(stage, u.index, err)
	f.Path, f.Kind, f.Key = u.path, u.kind, u.rec.Key
	r.failures = append(r.failures, f)
	if u.kind != "" {
		r.count(u.kind).Failed++
	}
}

// Run pushes one batch through classify, extract, owner filter, audit and reconcile.
// Per record problems land in the summary; the error is only set when ctx ends the
// run early, and the partial summary is returned with it
func (s *Service) Run(ctx context.Context, in domain.RunInput) (report.Summary, error) {
	var hint record.Kind
	if in.KindHint != "" {
		k, err := record.ParseKind(in.KindHint)
		if err != nil {
			return report.Summary{}, perr.WithField(err, "kind_hint")
		}
		hint = k
	}

	runID := s.newID()
	ctx = logger.WithRun(ctx, runID)
	ctx, cancel := guardrails.WithRun(ctx, s.Cfg.Timeouts)
	defer cancel()
	log := logger.C(ctx)

	started := s.now().UTC()
	at := started
	if !in.ExtractedAt.IsZero() {
		at = in.ExtractedAt.UTC()
	}
	st := &run{kinds: map[record.Kind]*report.KindCounts{}, top: map[record.Kind]int{}}

	units := s.classify(in.Items, hint, st)
	log.Debug().Int("items", len(in.Items)).Int("records", len(units)).Msg("ingest: classified")

	good := s.extract(ctx, units, at, st)
	if err := ctx.Err(); err == nil {
		good = s.filterOwner(ctx, good, in.OwnerUsername, st)
		st.findings = s.audit(good, st.top, in.RequestParameters)
		s.reconcile(ctx, good, st)
	}

	sum := report.Summarize(report.Input{
		RunID:      runID,
		StartedAt:  started,
		FinishedAt: s.now().UTC(),
		Kinds:      st.kinds,
		Findings:   st.findings,
		Decisions:  st.decisions,
		Failures:   st.failures,
	})
	s.record(ctx, sum)

	log.Info().
		Int("insert", sum.Actions[reconcile.Insert]).
		Int("update", sum.Actions[reconcile.Update]).
		Int("noop", sum.Actions[reconcile.Noop]).
		Int("findings", len(sum.Findings)).
		Int("failures", len(sum.Failures)).
		Dur("elapsed", sum.FinishedAt.Sub(sum.StartedAt)).
		Msg("ingest: run finished")

	if err := ctx.Err(); err != nil {
		return sum, err
	}
	return sum, nil
}

func (s *Service) classify(items []map[string]any, hint record.Kind, st *run) []unit {
	units := make([]unit, 0, len(items))
	for i, item := range items {
		kind, err := classify.ClassifyHint(item, hint)
		if err != nil {
			f := report.NewFailure(report.StageClassify, i, err)
			f.Payload = item
			st.failures = append(st.failures, f)
			continue
		}
		units = append(units, unit{index: i, kind: kind, payload: item})
		st.top[kind]++
		for _, e := range extract.Flatten(s.Catalog, kind, item) {
			units = append(units, unit{index: i, path: e.Path, kind: e.Kind, payload: e.Payload})
		}
	}
	for _, u := range units {
		st.count(u.kind).Received++
	}
	return units
}

// extract runs the pure stage on the worker pool and returns the keyed records in input order
func (s *Service) extract(ctx context.Context, units []unit, at time.Time, st *run) []unit {
	parallel(ctx, s.Cfg.Workers, len(units), func(i int) {
		u := &units[i]
		defer func() { u.done = true }()
		sch, err := s.Catalog.SchemaFor(u.kind)
		if err != nil {
			u.err = err
			return
		}
		u.rec = extract.Extract(u.payload, sch, at)
		if u.rec.Key == "" {
			u.err = perr.WithField(perr.Newf(perr.ErrorCodeMissingKey, "%s record has no usable %s", u.kind, sch.KeyField), sch.KeyField)
		}
	})

	good := make([]unit, 0, len(units))
	for _, u := range units {
		switch {
		case !u.done:
		case u.err != nil:
			st.fail(report.StageExtract, u, u.err)
		default:
			st.count(u.kind).Extracted++
			good = append(good, u)
		}
	}
	return good
}

// filterOwner drops posts whose owner is not the target account, together with the
// comments that hang off them. Posts without an owner are kept
func (s *Service) filterOwner(ctx context.Context, units []unit, owner string, st *run) []unit {
	if !s.Cfg.OwnerFilter || normalize.Handle(owner) == "" {
		return units
	}
	foreign := map[string]bool{}
	for _, u := range units {
		if u.kind != record.KindPost {
			continue
		}
		if name, ok := stringField(u.rec, "ownerUsername"); ok && !normalize.SameHandle(name, owner) {
			foreign[u.rec.Key] = true
		}
	}
	if len(foreign) == 0 {
		return units
	}

	out := make([]unit, 0, len(units))
	for _, u := range units {
		drop := false
		switch u.kind {
		case record.KindPost:
			drop = foreign[u.rec.Key]
		case record.KindComment:
			pid, _ := stringField(u.rec, "postId")
			drop = foreign[pid]
		}
		if drop {
			st.count(u.kind).Filtered++
			continue
		}
		out = append(out, u)
	}
	logger.C(ctx).Debug().Str("owner", owner).Int("foreign_posts", len(foreign)).Msg("ingest: owner filter")
	return out
}

// audit runs the auditor once per kind. Truncation compares the top level items the
// scraper returned, before extraction failures and the owner filter, since request
// limits do not apply to embedded collections
func (s *Service) audit(units []unit, top map[record.Kind]int, params map[string]any) []audit.Finding {
	var out []audit.Finding
	for _, k := range s.Catalog.Kinds() {
		var batch []record.Record
		for _, u := range units {
			if u.kind == k {
				batch = append(batch, u.rec)
			}
		}
		if len(batch) == 0 && top[k] == 0 {
			continue
		}
		out = append(out, s.Auditor.Audit(batch, audit.BatchContext{
			RequestParameters: params,
			RecordCount:       top[k],
			RecordKind:        k,
		})...)
	}
	return out
}

type outcome struct {
	dec  reconcile.Decision
	err  error
	done bool
}

// reconcile partitions records by natural key. Partitions run in parallel, records inside
// one partition run in input order so later observations merge over earlier ones
func (s *Service) reconcile(ctx context.Context, units []unit, st *run) {
	var parts [][]int
	byRef := map[record.Ref]int{}
	for i, u := range units {
		ref := u.rec.Ref()
		p, ok := byRef[ref]
		if !ok {
			p = len(parts)
			byRef[ref] = p
			parts = append(parts, nil)
		}
		parts[p] = append(parts[p], i)
	}

	results := make([]outcome, len(units))
	parallel(ctx, s.Cfg.Workers, len(parts), func(p int) {
		for _, i := range parts[p] {
			if ctx.Err() != nil {
				return
			}
			d, err := s.upsertWithRetry(ctx, units[i].rec)
			results[i] = outcome{dec: d, err: err, done: true}
		}
	})

	for i, r := range results {
		switch {
		case !r.done:
		case r.err != nil:
			if ctx.Err() != nil && (errors.Is(r.err, context.Canceled) || errors.Is(r.err, context.DeadlineExceeded)) {
				continue
			}
			u := units[i]
			logger.C(logger.WithKind(ctx, string(u.rec.Kind))).Warn().Err(r.err).Str("key", u.rec.Key).Msg("ingest: store write failed")
			st.fail(report.StageStore, u, perr.Wrapf(r.err, perr.ErrorCodeStoreWrite, "store %s", u.rec.Ref()))
		default:
			st.decisions = append(st.decisions, r.dec)
		}
	}
}

func (s *Service) upsertWithRetry(ctx context.Context, rec record.Record) (reconcile.Decision, error) {
	attempts := max(s.Cfg.MaxRetries, 1)
	base := s.Cfg.RetryBase
	if base <= 0 {
		base = 250 * time.Millisecond
	}

	var last error
	for i := range attempts {
		d, err := s.upsert(ctx, rec)
		if err == nil {
			return d, nil
		}
		last = err

		// Stop early on non-retryable errors
		if !perr.Retryable(err) || i == attempts-1 {
			break
		}

		// Exponential backoff with jitter, cap at 30s
		d2 := min(base<<i, 30*time.Second)
		if half := int64(d2 / 2); half > 0 {
			d2 = d2/2 + time.Duration(rand.Int63n(half))
		}
		if se := sleepCtx(ctx, d2); se != nil {
			return reconcile.Decision{}, se
		}
	}
	return reconcile.Decision{}, last
}

// upsert loads, merges and writes one record while holding its key
func (s *Service) upsert(ctx context.Context, rec record.Record) (reconcile.Decision, error) {
	sctx, cancel := guardrails.ForStore(ctx, s.Cfg.Timeouts)
	defer cancel()

	var dec reconcile.Decision
	err := s.Store.WithKey(sctx, rec.Kind, rec.Key, func(ctx context.Context, repo domain.RecordRepo) error {
		existing, err := repo.Load(ctx, rec.Kind, rec.Key)
		if err != nil {
			return err
		}
		d, merged := reconcile.Reconcile(rec, existing)
		if d.Action != reconcile.Noop {
			if err := repo.Upsert(ctx, merged); err != nil {
				return err
			}
		}
		dec = d
		return nil
	})
	return dec, err
}

// record hands the summary to the sink. A sink failure never fails the run
func (s *Service) record(ctx context.Context, sum report.Summary) {
	if s.Sink == nil {
		return
	}
	sctx, cancel := guardrails.ForSink(ctx, s.Cfg.Timeouts)
	defer cancel()
	if err := s.Sink.Record(sctx, sum); err != nil {
		logger.C(ctx).Error().Err(err).Msg("ingest: run sink failed")
	}
}

// parallel runs fn for 0..n-1 on at most w goroutines and stops launching once ctx is done
func parallel(ctx context.Context, w, n int, fn func(i int)) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, max(w, 1))
	for i := range n {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func() {
			defer func() { <-sem; wg.Done() }()
			fn(i)
		}()
	}
	wg.Wait()
}

func stringField(r record.Record, name string) (string, bool) {
	v, ok := r.Value(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
