package repo

import (
	"context"
	"sync"

	"socialsync/internal/core/record"
	"socialsync/internal/services/ingest/domain"
)

// Memory is an in-process RecordStore for tests and dry runs.
// Writes inside WithKey are staged and only land when fn returns nil
type Memory struct {
	mu    sync.Mutex
	locks map[record.Ref]*sync.Mutex
	rows  map[record.Ref]record.Record
}

// NewMemory returns an empty store
func NewMemory() *Memory {
	return &Memory{
		locks: make(map[record.Ref]*sync.Mutex),
		rows:  make(map[record.Ref]record.Record),
	}
}

func (m *Memory) lock(ref record.Ref) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[ref]
	if !ok {
		l = &sync.Mutex{}
		m.locks[ref] = l
	}
	return l
}

// WithKey implements domain.RecordStore
func (m *Memory) WithKey(ctx context.Context, kind record.Kind, key string, fn func(context.Context, domain.RecordRepo) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ref := record.Ref{Kind: kind, Key: key}
	l := m.lock(ref)
	l.Lock()
	defer l.Unlock()

	tx := &memTx{m: m, staged: map[record.Ref]record.Record{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.mu.Lock()
	for r, rec := range tx.staged {
		m.rows[r] = rec
	}
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the stored record
func (m *Memory) Get(kind record.Kind, key string) (record.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[record.Ref{Kind: kind, Key: key}]
	if !ok {
		return record.Record{}, false
	}
	return rec.Clone(), true
}

// Len returns how many records are stored
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memTx struct {
	m      *Memory
	staged map[record.Ref]record.Record
}

func (t *memTx) Load(ctx context.Context, kind record.Kind, key string) (*record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ref := record.Ref{Kind: kind, Key: key}
	if rec, ok := t.staged[ref]; ok {
		c := rec.Clone()
		return &c, nil
	}
	rec, ok := t.m.Get(kind, key)
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (t *memTx) Upsert(ctx context.Context, rec record.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.staged[rec.Ref()] = rec.Clone()
	return nil
}
