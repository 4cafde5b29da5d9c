// Package report folds a run's findings, merge decisions and failures into one summary
package report

import (
	"slices"
	"time"

	"socialsync/internal/core/audit"
	"socialsync/internal/core/reconcile"
	"socialsync/internal/core/record"
	perr "socialsync/internal/platform/errors"
)

// Pipeline stages a record can fail in
const (
	StageClassify = "classify"
	StageExtract  = "extract"
	StageStore    = "store"
)

// Failure is one record that did not make it through the pipeline
type Failure struct {
	Stage    string         `json:"stage"`
	Index    int            `json:"index"`
	Path     string         `json:"path,omitempty"`
	Kind     record.Kind    `json:"kind,omitempty"`
	Key      string         `json:"key,omitempty"`
	Code     perr.ErrorCode `json:"code"`
	CodeName string         `json:"code_name"`
	Error    string         `json:"error"`

	// Payload is the raw item, kept for unclassifiable records so nothing is dropped silently
	Payload map[string]any `json:"payload,omitempty"`
}

// NewFailure builds a failure from err
func NewFailure(stage string, index int, err error) Failure {
	code := perr.CodeOf(err)
	return Failure{Stage: stage, Index: index, Code: code, CodeName: code.String(), Error: err.Error()}
}

// KindCounts tracks one kind through the pipeline
type KindCounts struct {
	Received  int `json:"received"`
	Extracted int `json:"extracted"`
	Failed    int `json:"failed"`
	Filtered  int `json:"filtered"`
}

// Input is everything a run produced
type Input struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Kinds      map[record.Kind]*KindCounts
	Findings   []audit.Finding
	Decisions  []reconcile.Decision
	Failures   []Failure
}

// Summary is the caller-facing result of a run
type Summary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Actions       map[reconcile.Action]int `json:"actions"`
	FindingCounts map[audit.Code]int       `json:"finding_counts"`

	// Affected lists natural keys per WARN or ERROR finding code, deduplicated in first-seen order
	Affected map[audit.Code][]string `json:"affected_keys"`

	Kinds     map[record.Kind]KindCounts `json:"kinds"`
	Findings  []audit.Finding            `json:"findings"`
	Decisions []reconcile.Decision       `json:"decisions"`
	Failures  []Failure                  `json:"failures"`
}

// Summarize aggregates in without side effects
func Summarize(in Input) Summary {
	s := Summary{
		RunID:         in.RunID,
		StartedAt:     in.StartedAt,
		FinishedAt:    in.FinishedAt,
		Actions:       map[reconcile.Action]int{reconcile.Insert: 0, reconcile.Update: 0, reconcile.Noop: 0},
		FindingCounts: map[audit.Code]int{},
		Affected:      map[audit.Code][]string{},
		Kinds:         make(map[record.Kind]KindCounts, len(in.Kinds)),
		Findings:      slices.Clone(in.Findings),
		Decisions:     slices.Clone(in.Decisions),
		Failures:      slices.Clone(in.Failures),
	}
	if s.Findings == nil {
		s.Findings = []audit.Finding{}
	}
	if s.Decisions == nil {
		s.Decisions = []reconcile.Decision{}
	}
	if s.Failures == nil {
		s.Failures = []Failure{}
	}

	for k, c := range in.Kinds {
		if c != nil {
			s.Kinds[k] = *c
		}
	}
	for _, d := range in.Decisions {
		s.Actions[d.Action]++
	}
	for _, f := range in.Findings {
		s.FindingCounts[f.Code]++
		if f.Severity < audit.SeverityWarn {
			continue
		}
		keys := s.Affected[f.Code]
		for _, k := range f.Keys {
			if !slices.Contains(keys, k) {
				keys = append(keys, k)
			}
		}
		s.Affected[f.Code] = keys
	}
	return s
}

// OK reports whether every received record was stored
func (s Summary) OK() bool { return len(s.Failures) == 0 }

// Worst returns the highest finding severity and whether there were findings at all
func (s Summary) Worst() (audit.Severity, bool) {
	if len(s.Findings) == 0 {
		return audit.SeverityInfo, false
	}
	w := audit.SeverityInfo
	for _, f := range s.Findings {
		w = max(w, f.Severity)
	}
	return w, true
}
