package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"socialsync/internal/core/audit"
	"socialsync/internal/core/report"
	"socialsync/internal/platform/logger"
	"socialsync/internal/platform/store"
	"socialsync/internal/services/ingest/domain"
)

// LogSink writes a run summary to the log
type LogSink struct {
	Log *logger.Logger
}

// Record implements domain.RunSink
func (l LogSink) Record(ctx context.Context, s report.Summary) error {
	log := l.Log
	if log == nil {
		log = logger.C(ctx)
	}
	row := domain.RowFromSummary(s)
	log.Info().
		Str("run_id", row.RunID).
		Int("received", row.Received).
		Int("inserted", row.Inserted).
		Int("updated", row.Updated).
		Int("noop", row.Noop).
		Int("failures", row.Failures).
		Msg("ingest: run summary")
	for _, f := range s.Findings {
		if f.Severity < audit.SeverityWarn {
			continue
		}
		log.Warn().
			Str("run_id", row.RunID).
			Str("code", string(f.Code)).
			Str("kind", string(f.Kind)).
			Str("field", f.Field).
			Strs("keys", f.Keys).
			Msg(f.Message)
	}
	return nil
}

// Fanout hands a summary to every sink and joins their errors
type Fanout []domain.RunSink

// Record implements domain.RunSink
func (f Fanout) Record(ctx context.Context, s report.Summary) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ClickHouse tables written by CHSink
const (
	RunsTable     = "ingest_runs"
	FindingsTable = "ingest_findings"
)

// CHDDL creates the run analytics tables
var CHDDL = []string{
	`CREATE TABLE IF NOT EXISTS ` + RunsTable + ` (
  run_id      String,
  started_at  DateTime64(3, 'UTC'),
  finished_at DateTime64(3, 'UTC'),
  received    UInt32,
  inserted    UInt32,
  updated     UInt32,
  noop        UInt32,
  failures    UInt32,
  findings    UInt32,
  summary     String CODEC(ZSTD)
) ENGINE = MergeTree ORDER BY (started_at, run_id)`,
	`CREATE TABLE IF NOT EXISTS ` + FindingsTable + ` (
  run_id     String,
  started_at DateTime64(3, 'UTC'),
  kind       LowCardinality(String),
  code       LowCardinality(String),
  severity   LowCardinality(String),
  field      String,
  message    String,
  keys       Array(String)
) ENGINE = MergeTree ORDER BY (kind, code, started_at)`,
}

// CHSink stores run headlines and findings in ClickHouse
type CHSink struct {
	ch store.Clickhouse
}

// NewCHSink wraps a clickhouse seam
func NewCHSink(ch store.Clickhouse) *CHSink {
	if ch == nil {
		panic("repo.CHSink requires a clickhouse seam")
	}
	return &CHSink{ch: ch}
}

// EnsureSchema creates the sink tables
func (c *CHSink) EnsureSchema(ctx context.Context) error {
	for _, stmt := range CHDDL {
		if err := c.ch.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("clickhouse ddl: %w", err)
		}
	}
	return nil
}

// Record implements domain.RunSink
func (c *CHSink) Record(ctx context.Context, s report.Summary) error {
	row := domain.RowFromSummary(s)
	full, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := c.ch.Insert(ctx, RunsTable, [][]any{{
		row.RunID, row.StartedAt, row.FinishedAt,
		uint32(row.Received), uint32(row.Inserted), uint32(row.Updated), uint32(row.Noop),
		uint32(row.Failures), uint32(row.Findings), string(full),
	}}); err != nil {
		return err
	}

	rows := make([][]any, 0, len(s.Findings))
	for _, f := range s.Findings {
		keys := f.Keys
		if keys == nil {
			keys = []string{}
		}
		rows = append(rows, []any{
			row.RunID, row.StartedAt, string(f.Kind), string(f.Code), f.Severity.String(), f.Field, f.Message, keys,
		})
	}
	return c.ch.Insert(ctx, FindingsTable, rows)
}

// Recent implements domain.RunLister
func (c *CHSink) Recent(ctx context.Context, limit int) ([]domain.RunRow, error) {
	if limit <= 0 {
		limit = 50
	}
	limit = min(limit, 500)
	return store.ManyCH(ctx, c.ch, scanRun, `
SELECT run_id, started_at, finished_at, received, inserted, updated, noop, failures, findings
FROM `+RunsTable+`
ORDER BY started_at DESC
LIMIT ?`, limit)
}

func scanRun(r store.Row) (domain.RunRow, error) {
	var (
		row                                domain.RunRow
		recv, ins, upd, noop, fails, finds uint32
	)
	if err := r.Scan(&row.RunID, &row.StartedAt, &row.FinishedAt, &recv, &ins, &upd, &noop, &fails, &finds); err != nil {
		return row, err
	}
	row.Received, row.Inserted, row.Updated, row.Noop = int(recv), int(ins), int(upd), int(noop)
	row.Failures, row.Findings = int(fails), int(finds)
	return row, nil
}
