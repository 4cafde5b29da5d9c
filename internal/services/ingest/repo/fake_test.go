package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"socialsync/internal/modkit/repokit"
)

type fakeTag struct{}

func (fakeTag) String() string      { return "INSERT 0 1" }
func (fakeTag) RowsAffected() int64 { return 1 }

// fakeRows serves one preset row of field_meta, raw, extracted_at
type fakeRows struct {
	data [][]any
	i    int
}

func (r *fakeRows) Next() bool {
	if r.i >= len(r.data) {
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Scan(dst ...any) error {
	row := r.data[r.i-1]
	for i := range dst {
		switch d := dst[i].(type) {
		case *[]byte:
			b, _ := row[i].([]byte)
			*d = b
		case *time.Time:
			*d, _ = row[i].(time.Time)
		}
	}
	return nil
}

func (r *fakeRows) Err() error        { return nil }
func (r *fakeRows) Close()            {}
func (r *fakeRows) Columns() []string { return []string{"field_meta", "raw", "extracted_at"} }

// fakeQ records statements; rows answers SELECTs and execErr fails writes
type fakeQ struct {
	sqls    []string
	args    [][]any
	rows    [][]any
	execErr error
	txs     int
}

func (f *fakeQ) Exec(_ context.Context, sql string, args ...any) (repokit.CommandTag, error) {
	f.sqls = append(f.sqls, sql)
	f.args = append(f.args, args)
	if f.execErr != nil && !strings.Contains(sql, "pg_advisory_xact_lock") {
		return nil, f.execErr
	}
	return fakeTag{}, nil
}

func (f *fakeQ) Query(_ context.Context, sql string, args ...any) (repokit.Rows, error) {
	f.sqls = append(f.sqls, sql)
	f.args = append(f.args, args)
	return &fakeRows{data: f.rows}, nil
}

func (f *fakeQ) QueryRow(context.Context, string, ...any) repokit.Row {
	return nil
}

func (f *fakeQ) Tx(_ context.Context, fn func(repokit.Queryer) error) error {
	f.txs++
	return fn(f)
}

var errBoom = errors.New("boom")
