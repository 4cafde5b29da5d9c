// Package repo provides the ingest module's record stores and run sinks
package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"socialsync/internal/core/catalog"
	"socialsync/internal/core/extract"
	"socialsync/internal/core/record"
	"socialsync/internal/modkit/repokit"
	perr "socialsync/internal/platform/errors"
	"socialsync/internal/platform/store"
	"socialsync/internal/services/ingest/domain"
)

// PG is the Postgres binder. Statements are rendered once per kind from the catalog
type PG struct {
	cat   *catalog.Catalog
	stmts map[record.Kind]statements
}

type statements struct {
	load   string
	upsert string
}

type queries struct {
	q  repokit.Queryer
	pg *PG
}

// NewPG returns a binder for Postgres-backed record repos
func NewPG(c *catalog.Catalog) repokit.Binder[domain.RecordRepo] {
	p := &PG{cat: c, stmts: make(map[record.Kind]statements)}
	for _, s := range c.Schemas() {
		p.stmts[s.Kind] = render(s)
	}
	return p
}

// Bind implements repokit.Binder
func (p *PG) Bind(q repokit.Queryer) domain.RecordRepo { return &queries{q: q, pg: p} }

func render(s catalog.Schema) statements {
	tbl := ident(Table(s.Kind))
	cols := []string{"natural_key"}
	for _, f := range s.Fields {
		cols = append(cols, ident(Column(f.Name)))
	}
	cols = append(cols, "field_meta", "raw", "extracted_at")

	ph := make([]string, len(cols))
	set := make([]string, 0, len(cols))
	for i, c := range cols {
		ph[i] = fmt.Sprintf("$%d", i+1)
		if c != "natural_key" {
			set = append(set, c+" = EXCLUDED."+c)
		}
	}
	set = append(set, "updated_at = now()")

	return statements{
		load: `SELECT field_meta, raw, extracted_at FROM ` + tbl + ` WHERE natural_key = $1`,
		upsert: `INSERT INTO ` + tbl + ` (` + strings.Join(cols, ", ") + `)
VALUES (` + strings.Join(ph, ", ") + `)
ON CONFLICT (natural_key) DO UPDATE SET ` + strings.Join(set, ", "),
	}
}

// fieldMeta is the stored form of one record.Field
type fieldMeta struct {
	Value      any             `json:"v"`
	Presence   record.Presence `json:"p"`
	ObservedAt time.Time       `json:"at,omitzero"`
	Source     string          `json:"src,omitempty"`
}

type stored struct {
	meta        []byte
	raw         []byte
	extractedAt time.Time
}

func scanStored(r store.Row) (stored, error) {
	var s stored
	err := r.Scan(&s.meta, &s.raw, &s.extractedAt)
	return s, err
}

func (r *queries) schema(kind record.Kind) (catalog.Schema, statements, error) {
	s, err := r.pg.cat.SchemaFor(kind)
	if err != nil {
		return catalog.Schema{}, statements{}, err
	}
	return s, r.pg.stmts[kind], nil
}

// Load implements domain.RecordRepo
func (r *queries) Load(ctx context.Context, kind record.Kind, key string) (*record.Record, error) {
	s, st, err := r.schema(kind)
	if err != nil {
		return nil, err
	}
	row, err := store.One(ctx, r.q, scanStored, st.load, key)
	if errors.Is(err, perr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, perr.FromPostgres(err, "load "+string(kind))
	}
	rec, err := decode(s, key, row)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Upsert implements domain.RecordRepo
func (r *queries) Upsert(ctx context.Context, rec record.Record) error {
	s, st, err := r.schema(rec.Kind)
	if err != nil {
		return err
	}
	args, err := encode(s, rec)
	if err != nil {
		return err
	}
	if _, err := r.q.Exec(ctx, st.upsert, args...); err != nil {
		return perr.FromPostgres(err, "upsert "+string(rec.Kind))
	}
	return nil
}

// encode lays rec out in the column order of render
func encode(s catalog.Schema, rec record.Record) ([]any, error) {
	args := make([]any, 0, len(s.Fields)+4)
	args = append(args, rec.Key)

	meta := make(map[string]fieldMeta, len(rec.Fields))
	for name, f := range rec.Fields {
		meta[name] = fieldMeta{Value: f.Value, Presence: f.Presence, ObservedAt: f.ObservedAt, Source: f.Source}
	}
	for _, spec := range s.Fields {
		f, ok := rec.Fields[spec.Name]
		if !ok || !f.Known() || f.Value == nil {
			args = append(args, nil)
			continue
		}
		if spec.Type == catalog.TypeNested {
			b, err := json.Marshal(f.Value)
			if err != nil {
				return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "encode %s.%s", rec.Kind, spec.Name)
			}
			args = append(args, b)
			continue
		}
		args = append(args, f.Value)
	}

	mb, err := json.Marshal(meta)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "encode %s field meta", rec.Kind)
	}
	var raw []byte
	if rec.Raw != nil {
		if raw, err = json.Marshal(rec.Raw); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "encode %s raw payload", rec.Kind)
		}
	}
	return append(args, mb, raw, rec.ExtractedAt), nil
}

// decode rebuilds a record from field_meta. Values go back through the catalog coercion
// so they compare equal to freshly extracted ones
func decode(s catalog.Schema, key string, row stored) (record.Record, error) {
	rec := record.Record{Kind: s.Kind, Key: key, ExtractedAt: row.extractedAt.UTC()}

	var meta map[string]fieldMeta
	if err := unmarshal(row.meta, &meta); err != nil {
		return rec, perr.Wrapf(err, perr.ErrorCodeDB, "decode %s %s field meta", s.Kind, key)
	}
	rec.Fields = make(map[string]record.Field, len(meta))
	for name, m := range meta {
		f := record.Field{Value: m.Value, Presence: m.Presence, Source: m.Source}
		if !m.ObservedAt.IsZero() {
			f.ObservedAt = m.ObservedAt.UTC()
		}
		if spec, ok := s.Field(name); ok && m.Value != nil {
			v, err := extract.Coerce(spec, m.Value)
			if err != nil {
				return rec, perr.Wrapf(err, perr.ErrorCodeDB, "decode %s %s", s.Kind, key)
			}
			f.Value = v
		}
		rec.Fields[name] = f
	}
	if len(row.raw) > 0 {
		if err := unmarshal(row.raw, &rec.Raw); err != nil {
			return rec, perr.Wrapf(err, perr.ErrorCodeDB, "decode %s %s raw payload", s.Kind, key)
		}
	}
	return rec, nil
}

func unmarshal(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(v)
}

// Locked is the Postgres RecordStore: one transaction per key under an advisory lock.
// Writers of different keys never block each other
type Locked struct {
	tx     repokit.TxRunner
	binder repokit.Binder[domain.RecordRepo]
}

// NewLocked wraps tx. Use repokit.WithBeginHooks on tx for per statement budgets
func NewLocked(tx repokit.TxRunner, b repokit.Binder[domain.RecordRepo]) *Locked {
	if tx == nil {
		panic("repo.Locked requires a non nil TxRunner")
	}
	return &Locked{tx: tx, binder: b}
}

// WithKey implements domain.RecordStore
func (l *Locked) WithKey(ctx context.Context, kind record.Kind, key string, fn func(context.Context, domain.RecordRepo) error) error {
	return store.RunLocked(ctx, l.tx, string(kind)+":"+key, func(ctx context.Context, q store.RowQuerier) error {
		return fn(ctx, repokit.MustBind(l.binder, q))
	})
}
