package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"socialsync/internal/core/audit"
	"socialsync/internal/core/catalog"
	"socialsync/internal/core/reconcile"
	"socialsync/internal/core/record"
	"socialsync/internal/core/report"
	perr "socialsync/internal/platform/errors"
	"socialsync/internal/platform/testkit"
	"socialsync/internal/services/ingest/domain"
	"socialsync/internal/services/ingest/repo"
)

var at = time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)

func newService(t *testing.T, st domain.RecordStore, sink domain.RunSink, cfg Config) *Service {
	t.Helper()
	s := New(catalog.Default(), nil, st, sink, cfg)
	var n int64
	s.newID = func() string { return fmt.Sprintf("run-%d", atomic.AddInt64(&n, 1)) }
	s.now = func() time.Time { return at }
	return s
}

func items(t *testing.T, src ...string) []map[string]any {
	t.Helper()
	out := make([]map[string]any, len(src))
	for i, s := range src {
		out[i] = testkit.Payload(t, s)
	}
	return out
}

type captureSink struct {
	got []report.Summary
	err error
}

func (c *captureSink) Record(_ context.Context, s report.Summary) error {
	c.got = append(c.got, s)
	return c.err
}

func TestRun_InsertThenNoop(t *testing.T) {
	t.Parallel()

	mem := repo.NewMemory()
	sink := &captureSink{}
	svc := newService(t, mem, sink, Config{Workers: 4})
	in := domain.RunInput{Items: items(t, string(testkit.Fixture(t, "post_full.json")))}

	first, err := svc.Run(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if !first.OK() || first.Actions[reconcile.Insert] == 0 {
		t.Fatalf("first run: %+v", first)
	}
	if first.RunID != "run-1" || len(sink.got) != 1 {
		t.Fatalf("run id %q, sink calls %d", first.RunID, len(sink.got))
	}

	second, err := svc.Run(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if second.Actions[reconcile.Insert] != 0 || second.Actions[reconcile.Update] != 0 {
		t.Fatalf("re-running a batch must be a NOOP: %v", second.Actions)
	}
	if second.Actions[reconcile.Noop] != first.Actions[reconcile.Insert] {
		t.Fatalf("noop %d, want %d", second.Actions[reconcile.Noop], first.Actions[reconcile.Insert])
	}
	for _, f := range second.Findings {
		if f.Severity == audit.SeverityError {
			t.Fatalf("unexpected error finding %+v", f)
		}
	}
}

func TestRun_FlattensAndFiltersOwner(t *testing.T) {
	t.Parallel()

	mem := repo.NewMemory()
	svc := newService(t, mem, nil, Config{Workers: 2, OwnerFilter: true})
	sum, err := svc.Run(context.Background(), domain.RunInput{
		Items:         items(t, string(testkit.Fixture(t, "profile_nested.json"))),
		OwnerUsername: "@NatGeo",
	})
	if err != nil {
		t.Fatal(err)
	}

	want := map[record.Kind]report.KindCounts{
		record.KindProfile: {Received: 1, Extracted: 1},
		record.KindPost:    {Received: 2, Extracted: 2, Filtered: 1},
		record.KindComment: {Received: 2, Extracted: 2},
	}
	testkit.MustEqual(t, want, sum.Kinds)

	if _, ok := mem.Get(record.KindPost, "P2"); ok {
		t.Fatal("foreign post P2 was stored")
	}
	p1, ok := mem.Get(record.KindPost, "P1")
	if !ok {
		t.Fatal("P1 missing")
	}
	if v, _ := p1.Value("ownerUsername"); v != "natgeo" {
		t.Fatalf("P1 owner = %v", v)
	}
	c1, _ := mem.Get(record.KindComment, "c1")
	if v, _ := c1.Value("postId"); v != "P1" {
		t.Fatalf("c1 postId = %v", v)
	}
}

func TestRun_OwnerFilterOff(t *testing.T) {
	t.Parallel()

	svc := newService(t, repo.NewMemory(), nil, Config{})
	sum, err := svc.Run(context.Background(), domain.RunInput{
		Items:         items(t, string(testkit.Fixture(t, "profile_nested.json"))),
		OwnerUsername: "natgeo",
	})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Kinds[record.KindPost].Filtered != 0 || sum.Actions[reconcile.Insert] != 5 {
		t.Fatalf("kinds %v actions %v", sum.Kinds, sum.Actions)
	}
}

func TestRun_FailuresAreReported(t *testing.T) {
	t.Parallel()

	svc := newService(t, repo.NewMemory(), nil, Config{Workers: 3})
	sum, err := svc.Run(context.Background(), domain.RunInput{
		Items: items(t,
			`{"shortCode":"A1","id":"1","type":"Image"}`,
			`{"mystery":true}`,
			`{"shortCode":null,"id":"2","type":"Image"}`,
		),
		KindHint: "post",
	})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Actions[reconcile.Insert] != 1 || len(sum.Failures) != 2 {
		t.Fatalf("actions %v failures %+v", sum.Actions, sum.Failures)
	}
	for _, f := range sum.Failures {
		switch f.Index {
		case 1:
			// {"mystery":true} falls back to the post hint and has no key
			if f.Stage != report.StageExtract || f.Code != perr.ErrorCodeMissingKey {
				t.Fatalf("failure %+v", f)
			}
		case 2:
			if f.Stage != report.StageExtract || f.Kind != record.KindPost {
				t.Fatalf("failure %+v", f)
			}
		default:
			t.Fatalf("unexpected failure %+v", f)
		}
	}
	if sum.Kinds[record.KindPost].Failed != 2 {
		t.Fatalf("kinds %v", sum.Kinds)
	}
}

func TestRun_UnclassifiableKeepsPayload(t *testing.T) {
	t.Parallel()

	svc := newService(t, repo.NewMemory(), nil, Config{})
	sum, err := svc.Run(context.Background(), domain.RunInput{Items: items(t, `{"mystery":true}`)})
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.Failures) != 1 {
		t.Fatalf("failures %+v", sum.Failures)
	}
	f := sum.Failures[0]
	if f.Stage != report.StageClassify || f.Code != perr.ErrorCodeUnclassifiable || f.Payload["mystery"] != true {
		t.Fatalf("failure %+v", f)
	}
}

func TestRun_SameKeyInInputOrder(t *testing.T) {
	t.Parallel()

	mem := repo.NewMemory()
	svc := newService(t, mem, nil, Config{Workers: 4})
	sum, err := svc.Run(context.Background(), domain.RunInput{Items: items(t,
		`{"shortCode":"K1","id":"1","type":"Image","likesCount":10}`,
		`{"shortCode":"Z9","id":"9","type":"Image"}`,
		`{"shortCode":"K1","id":"1","type":"Image","likesCount":20,"caption":"later"}`,
	)})
	if err != nil {
		t.Fatal(err)
	}
	var k1 []reconcile.Decision
	for _, d := range sum.Decisions {
		if d.Key == "K1" {
			k1 = append(k1, d)
		}
	}
	if len(k1) != 2 || k1[0].Action != reconcile.Insert || k1[1].Action != reconcile.Update {
		t.Fatalf("K1 decisions %+v", k1)
	}
	testkit.MustEqual(t, []string{"caption"}, k1[1].Changed)

	got, _ := mem.Get(record.KindPost, "K1")
	if v, _ := got.Value("likesCount"); v != int64(10) {
		t.Fatalf("equal freshness must keep the first value, got %v", v)
	}
}

func TestRun_Truncation(t *testing.T) {
	t.Parallel()

	src := make([]string, 18)
	for i := range src {
		src[i] = fmt.Sprintf(`{"shortCode":"S%d","id":"%d","type":"Image"}`, i, i)
	}
	svc := newService(t, repo.NewMemory(), nil, Config{Workers: 4})

	sum, err := svc.Run(context.Background(), domain.RunInput{Items: items(t, src...)})
	if err != nil {
		t.Fatal(err)
	}
	if sum.FindingCounts[audit.CodeLikelyTruncated] != 1 {
		t.Fatalf("findings %v", sum.FindingCounts)
	}

	sum, err = svc.Run(context.Background(), domain.RunInput{
		Items:             items(t, src...),
		RequestParameters: map[string]any{"cursor": "abc"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if sum.FindingCounts[audit.CodeLikelyTruncated] != 0 {
		t.Fatalf("a cursor should silence truncation: %v", sum.FindingCounts)
	}
}

func TestRun_TruncationCountsDroppedPosts(t *testing.T) {
	t.Parallel()

	batch := func(last string) []map[string]any {
		src := make([]string, 18)
		for i := range 17 {
			src[i] = fmt.Sprintf(`{"shortCode":"T%d","id":"%d","type":"Image","ownerUsername":"natgeo"}`, i, i)
		}
		src[17] = last
		return items(t, src...)
	}
	tests := []struct {
		name string
		last string
		cfg  Config
		want func(report.KindCounts) bool
	}{
		{"foreign owner", `{"shortCode":"T17","id":"17","type":"Image","ownerUsername":"someone"}`,
			Config{Workers: 3, OwnerFilter: true},
			func(c report.KindCounts) bool { return c.Filtered == 1 }},
		{"no key", `{"shortCode":"","id":"17","type":"Image"}`,
			Config{Workers: 3},
			func(c report.KindCounts) bool { return c.Failed == 1 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := newService(t, repo.NewMemory(), nil, tc.cfg)
			sum, err := svc.Run(context.Background(), domain.RunInput{
				Items:         batch(tc.last),
				KindHint:      "post",
				OwnerUsername: "natgeo",
			})
			if err != nil {
				t.Fatal(err)
			}
			c := sum.Kinds[record.KindPost]
			if c.Received != 18 || !tc.want(c) {
				t.Fatalf("counts %+v", c)
			}
			if sum.FindingCounts[audit.CodeLikelyTruncated] != 1 {
				t.Fatalf("findings %v", sum.FindingCounts)
			}
		})
	}
}

// flaky fails the first n calls with err before delegating
type flaky struct {
	inner domain.RecordStore
	n     int32
	err   error
	calls atomic.Int32
}

func (f *flaky) WithKey(ctx context.Context, kind record.Kind, key string, fn func(context.Context, domain.RecordRepo) error) error {
	if f.calls.Add(1) <= f.n {
		return f.err
	}
	return f.inner.WithKey(ctx, kind, key, fn)
}

func TestRun_RetriesRetryableStoreErrors(t *testing.T) {
	t.Parallel()

	st := &flaky{inner: repo.NewMemory(), n: 2, err: perr.Unavailablef("db restarting")}
	svc := newService(t, st, nil, Config{Workers: 1, MaxRetries: 3, RetryBase: time.Millisecond})
	sum, err := svc.Run(context.Background(), domain.RunInput{Items: items(t, `{"shortCode":"R1","id":"1","type":"Image"}`)})
	if err != nil {
		t.Fatal(err)
	}
	if !sum.OK() || sum.Actions[reconcile.Insert] != 1 || st.calls.Load() != 3 {
		t.Fatalf("failures %+v calls %d", sum.Failures, st.calls.Load())
	}
}

func TestRun_NonRetryableStoreError(t *testing.T) {
	t.Parallel()

	st := &flaky{inner: repo.NewMemory(), n: 100, err: perr.InvalidArgf("bad row")}
	svc := newService(t, st, nil, Config{Workers: 1, MaxRetries: 5, RetryBase: time.Millisecond})
	sum, err := svc.Run(context.Background(), domain.RunInput{Items: items(t, `{"shortCode":"R1","id":"1","type":"Image"}`)})
	if err != nil {
		t.Fatal(err)
	}
	if st.calls.Load() != 1 || len(sum.Failures) != 1 {
		t.Fatalf("calls %d failures %+v", st.calls.Load(), sum.Failures)
	}
	f := sum.Failures[0]
	if f.Stage != report.StageStore || f.Code != perr.ErrorCodeStoreWrite || f.Key != "R1" || f.Kind != record.KindPost {
		t.Fatalf("failure %+v", f)
	}
	if sum.Kinds[record.KindPost].Failed != 1 {
		t.Fatalf("kinds %v", sum.Kinds)
	}
}

func TestRun_CancelledReturnsPartialSummary(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &captureSink{}
	svc := newService(t, repo.NewMemory(), sink, Config{Workers: 2})
	sum, err := svc.Run(ctx, domain.RunInput{Items: items(t, `{"shortCode":"R1","id":"1","type":"Image"}`)})
	if err == nil {
		t.Fatal("expected ctx error")
	}
	if sum.RunID == "" || sum.Kinds[record.KindPost].Received != 1 {
		t.Fatalf("partial summary %+v", sum)
	}
	if len(sink.got) != 1 {
		t.Fatal("an aborted run should still reach the sink")
	}
}

func TestRun_SinkErrorDoesNotFail(t *testing.T) {
	t.Parallel()

	svc := newService(t, repo.NewMemory(), &captureSink{err: perr.Unavailablef("ch down")}, Config{})
	if _, err := svc.Run(context.Background(), domain.RunInput{Items: items(t, `{"shortCode":"R1","id":"1","type":"Image"}`)}); err != nil {
		t.Fatal(err)
	}
}

func TestRun_BadKindHint(t *testing.T) {
	t.Parallel()

	svc := newService(t, repo.NewMemory(), nil, Config{})
	_, err := svc.Run(context.Background(), domain.RunInput{KindHint: "story"})
	if !perr.IsCode(err, perr.ErrorCodeUnknownKind) || perr.FieldOf(err) != "kind_hint" {
		t.Fatalf("err = %v", err)
	}
}

func TestRun_SummaryIsJSON(t *testing.T) {
	t.Parallel()

	svc := newService(t, repo.NewMemory(), nil, Config{})
	sum, _ := svc.Run(context.Background(), domain.RunInput{Items: items(t, `{"shortCode":"R1","id":"1","type":"Image"}`)})
	b, err := json.Marshal(sum)
	if err != nil {
		t.Fatal(err)
	}
	testkit.MustContain(t, string(b), `"actions":{"INSERT":1,"NOOP":0,"UPDATE":0}`)
}

func TestNew_Panics(t *testing.T) {
	t.Parallel()

	testkit.MustPanic(t, func() { New(nil, nil, repo.NewMemory(), nil, Config{}) })
	testkit.MustPanic(t, func() { New(catalog.Default(), nil, nil, nil, Config{}) })
}

func TestParallel_StopsOnCancel(t *testing.T) {
	t.Parallel()

	var ran atomic.Int32
	parallel(context.Background(), 3, 10, func(int) { ran.Add(1) })
	if ran.Load() != 10 {
		t.Fatalf("ran %d", ran.Load())
	}

	ctx, cancel := context.WithCancel(context.Background())
	ran.Store(0)
	parallel(ctx, 1, 10, func(i int) {
		ran.Add(1)
		if i == 2 {
			cancel()
		}
	})
	if n := ran.Load(); n >= 10 {
		t.Fatalf("parallel kept launching after cancel: %d", n)
	}
}
