package domain

import (
	"time"

	"socialsync/internal/core/reconcile"
	"socialsync/internal/core/report"
)

// RunInput is one scraper response handed to the pipeline
type RunInput struct {
	// RequestParameters are the parameters the scraper was called with (resultsLimit, cursors)
	RequestParameters map[string]any `json:"request_parameters"`

	// Items are the raw dataset items; decode with UseNumber so large ids survive
	Items []map[string]any `json:"items" validate:"required"`

	// KindHint is the dataset kind when the caller knows it. It never overrides a
	// discriminator match
	KindHint string `json:"kind_hint" validate:"omitempty,record_kind"`

	// OwnerUsername limits posts to one account; foreign posts are counted as filtered
	OwnerUsername string `json:"owner_username" validate:"omitempty,max=64"`

	// ExtractedAt stamps every field read in this run; zero means now
	ExtractedAt time.Time `json:"extracted_at"`
}

// RunRow is the persisted headline of a finished run
type RunRow struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Received   int       `json:"received"`
	Inserted   int       `json:"inserted"`
	Updated    int       `json:"updated"`
	Noop       int       `json:"noop"`
	Failures   int       `json:"failures"`
	Findings   int       `json:"findings"`
}

// RowFromSummary flattens a summary into its headline counters
func RowFromSummary(s report.Summary) RunRow {
	row := RunRow{
		RunID:      s.RunID,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Failures:   len(s.Failures),
		Findings:   len(s.Findings),
	}
	for _, c := range s.Kinds {
		row.Received += c.Received
	}
	row.Inserted = s.Actions[reconcile.Insert]
	row.Updated = s.Actions[reconcile.Update]
	row.Noop = s.Actions[reconcile.Noop]
	return row
}
