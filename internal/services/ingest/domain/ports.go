// Package domain holds the ingest module's types and ports
package domain

import (
	"context"

	"socialsync/internal/core/catalog"
	"socialsync/internal/core/record"
	"socialsync/internal/core/report"
)

// RunnerPort is the public port exposed by the module
type RunnerPort interface {
	Run(ctx context.Context, in RunInput) (report.Summary, error)
}

// CatalogPort exposes the field catalog the runner extracts with
type CatalogPort interface {
	Schemas() []catalog.Schema
}

// RecordRepo reads and writes stored records of one natural key
type RecordRepo interface {
	// Load returns the stored record or nil when there is none
	Load(ctx context.Context, kind record.Kind, key string) (*record.Record, error)

	// Upsert writes rec under rec.Kind and rec.Key, replacing any stored version
	Upsert(ctx context.Context, rec record.Record) error
}

// RecordStore serializes work per natural key. fn runs with exclusive access to
// kind+key until it returns; an error from fn discards its writes
type RecordStore interface {
	WithKey(ctx context.Context, kind record.Kind, key string, fn func(ctx context.Context, repo RecordRepo) error) error
}

// RunSink receives every finished run summary
type RunSink interface {
	Record(ctx context.Context, s report.Summary) error
}

// RunLister reads back recent runs from a sink that keeps them
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]RunRow, error)
}
