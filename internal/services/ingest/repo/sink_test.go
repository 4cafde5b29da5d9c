package repo

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"socialsync/internal/core/audit"
	"socialsync/internal/core/reconcile"
	"socialsync/internal/core/record"
	"socialsync/internal/core/report"
	"socialsync/internal/platform/store"
	"socialsync/internal/platform/testkit"
	"socialsync/internal/services/ingest/domain"
)

func summary() report.Summary {
	start := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	return report.Summarize(report.Input{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
		Kinds:      map[record.Kind]*report.KindCounts{record.KindPost: {Received: 18, Extracted: 18}},
		Findings: []audit.Finding{
			{Severity: audit.SeverityWarn, Code: audit.CodeLikelyTruncated, Kind: record.KindPost, Message: "18 post records"},
			{Severity: audit.SeverityInfo, Code: audit.CodeResultsLimitReached, Kind: record.KindPost, Message: "limit"},
		},
		Decisions: []reconcile.Decision{
			{Key: "P1", Kind: record.KindPost, Action: reconcile.Insert},
			{Key: "P2", Kind: record.KindPost, Action: reconcile.Noop},
		},
	})
}

type sinkFunc func(context.Context, report.Summary) error

func (f sinkFunc) Record(ctx context.Context, s report.Summary) error { return f(ctx, s) }

func TestFanout(t *testing.T) {
	t.Parallel()

	var calls int
	ok := sinkFunc(func(context.Context, report.Summary) error { calls++; return nil })
	bad := sinkFunc(func(context.Context, report.Summary) error { calls++; return errBoom })

	err := Fanout{ok, nil, bad, ok}.Record(context.Background(), summary())
	if !errors.Is(err, errBoom) || calls != 3 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestLogSink(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := zerolog.New(&buf)
	if err := (LogSink{Log: &l}).Record(context.Background(), summary()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	testkit.MustContain(t, out, `"inserted":1`)
	testkit.MustContain(t, out, `"code":"LIKELY_TRUNCATED"`)
	if strings.Contains(out, "RESULTS_LIMIT_REACHED") {
		t.Fatal("info findings should not be logged one by one")
	}
}

type fakeCH struct {
	inserts map[string][][]any
	execs   []string
	args    [][]any
	rows    *fakeCHRows
	err     error
}

func (f *fakeCH) Insert(_ context.Context, table string, rows [][]any) error {
	if f.err != nil {
		return f.err
	}
	if f.inserts == nil {
		f.inserts = map[string][][]any{}
	}
	f.inserts[table] = append(f.inserts[table], rows...)
	return nil
}

func (f *fakeCH) Query(_ context.Context, sql string, args ...any) (store.Rows, error) {
	f.execs = append(f.execs, sql)
	f.args = append(f.args, args)
	return f.rows, nil
}

func (f *fakeCH) Exec(_ context.Context, sql string, _ ...any) error {
	f.execs = append(f.execs, sql)
	return f.err
}

func (f *fakeCH) Close() error { return nil }

type fakeCHRows struct {
	rows []domain.RunRow
	i    int
}

func (r *fakeCHRows) Next() bool { r.i++; return r.i <= len(r.rows) }
func (r *fakeCHRows) Scan(dst ...any) error {
	row := r.rows[r.i-1]
	*dst[0].(*string) = row.RunID
	*dst[1].(*time.Time) = row.StartedAt
	*dst[2].(*time.Time) = row.FinishedAt
	for i, v := range []int{row.Received, row.Inserted, row.Updated, row.Noop, row.Failures, row.Findings} {
		*dst[3+i].(*uint32) = uint32(v)
	}
	return nil
}
func (r *fakeCHRows) Err() error        { return nil }
func (r *fakeCHRows) Close()            {}
func (r *fakeCHRows) Columns() []string { return nil }

func TestCHSink_Record(t *testing.T) {
	t.Parallel()

	ch := &fakeCH{}
	sink := NewCHSink(ch)
	if err := sink.Record(context.Background(), summary()); err != nil {
		t.Fatal(err)
	}
	runs := ch.inserts[RunsTable]
	if len(runs) != 1 || len(runs[0]) != 10 {
		t.Fatalf("runs = %v", runs)
	}
	if runs[0][0] != "run-1" || runs[0][3] != uint32(18) || runs[0][4] != uint32(1) || runs[0][6] != uint32(1) {
		t.Fatalf("run row = %v", runs[0])
	}
	testkit.MustContain(t, runs[0][9].(string), `"run_id":"run-1"`)

	finds := ch.inserts[FindingsTable]
	if len(finds) != 2 || finds[0][3] != "LIKELY_TRUNCATED" || finds[0][4] != "WARN" {
		t.Fatalf("findings = %v", finds)
	}
	if keys, ok := finds[0][7].([]string); !ok || keys == nil {
		t.Fatalf("keys column must be a non nil slice, got %#v", finds[0][7])
	}
}

func TestCHSink_RecordError(t *testing.T) {
	t.Parallel()

	err := NewCHSink(&fakeCH{err: errBoom}).Record(context.Background(), summary())
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v", err)
	}
}

func TestCHSink_EnsureSchemaAndRecent(t *testing.T) {
	t.Parallel()

	want := domain.RowFromSummary(summary())
	ch := &fakeCH{rows: &fakeCHRows{rows: []domain.RunRow{want}}}
	sink := NewCHSink(ch)
	if err := sink.EnsureSchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(ch.execs) != len(CHDDL) {
		t.Fatalf("execs = %d", len(ch.execs))
	}

	got, err := sink.Recent(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	testkit.MustEqual(t, []domain.RunRow{want}, got)
	testkit.MustContain(t, ch.execs[len(ch.execs)-1], "ORDER BY started_at DESC")
}

func TestCHSink_RecentLimit(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct{ in, want int }{{0, 50}, {-3, 50}, {400, 400}, {500, 500}, {1000, 500}} {
		ch := &fakeCH{rows: &fakeCHRows{}}
		if _, err := NewCHSink(ch).Recent(context.Background(), tc.in); err != nil {
			t.Fatal(err)
		}
		testkit.MustEqual(t, []any{tc.want}, ch.args[0])
	}
}

func TestNewCHSink_NilPanics(t *testing.T) {
	t.Parallel()
	testkit.MustPanic(t, func() { NewCHSink(nil) })
}
