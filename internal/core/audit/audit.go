// Package audit flags batches that look truncated or were produced by a request
// that did not ask for fields the caller needs. Findings are advisory; they never
// block persistence
package audit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"socialsync/internal/core/record"
)

// Severity ranks findings
type Severity uint8

// Severities
const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
)

var severityNames = [...]string{SeverityInfo: "INFO", SeverityWarn: "WARN", SeverityError: "ERROR"}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return fmt.Sprintf("SEVERITY(%d)", uint8(s))
}

// MarshalText renders the severity name
func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Code identifies a finding type
type Code string

// Finding codes
const (
	CodeLikelyTruncated      Code = "LIKELY_TRUNCATED"
	CodeResultsLimitReached  Code = "RESULTS_LIMIT_REACHED"
	CodeMissingCriticalField Code = "MISSING_CRITICAL_FIELD"
	CodeCoercionFailed       Code = "COERCION_FAILED"
)

// Finding is one audit observation about a batch
type Finding struct {
	Severity Severity    `json:"severity"`
	Code     Code        `json:"code"`
	Kind     record.Kind `json:"kind"`
	Field    string      `json:"field,omitempty"`
	Message  string      `json:"message"`
	Keys     []string    `json:"affected_keys,omitempty"`
}

// BatchContext describes the request that produced a batch
type BatchContext struct {
	RequestParameters map[string]any `json:"request_parameters"`
	RecordCount       int            `json:"record_count"`
	RecordKind        record.Kind    `json:"record_kind"`
}

// Auditor runs both heuristics with a fixed config
type Auditor struct {
	cfg Config
}

// New returns an auditor for cfg
func New(cfg Config) *Auditor { return &Auditor{cfg: cfg} }

// Config returns the thresholds in use
func (a *Auditor) Config() Config { return a.cfg }

var std = New(DefaultConfig())

// Audit runs the default auditor
func Audit(batch []record.Record, bc BatchContext) []Finding { return std.Audit(batch, bc) }

// Audit returns findings for one batch of records of bc.RecordKind, in a stable order:
// truncation, limit, critical fields in config order, then coercion failures by field name
func (a *Auditor) Audit(batch []record.Record, bc BatchContext) []Finding {
	var out []Finding
	out = append(out, a.truncation(bc)...)
	out = append(out, a.critical(batch, bc.RecordKind)...)
	out = append(out, coercions(batch, bc.RecordKind)...)
	return out
}

func (a *Auditor) truncation(bc BatchContext) []Finding {
	var out []Finding
	limit, explicit := intParam(bc.RequestParameters, a.cfg.LimitKey)

	if def, ok := a.cfg.DefaultLimits[bc.RecordKind]; ok && def > 0 && bc.RecordCount == def {
		if cursor := a.cursor(bc.RequestParameters); cursor == "" && (!explicit || limit > bc.RecordCount) {
			out = append(out, Finding{
				Severity: SeverityWarn,
				Code:     CodeLikelyTruncated,
				Kind:     bc.RecordKind,
				Message: fmt.Sprintf("%d %s records equals the default result cap and no pagination cursor was sent",
					bc.RecordCount, bc.RecordKind),
			})
		}
	}
	if explicit && limit > 0 && bc.RecordCount >= limit {
		out = append(out, Finding{
			Severity: SeverityInfo,
			Code:     CodeResultsLimitReached,
			Kind:     bc.RecordKind,
			Field:    a.cfg.LimitKey,
			Message:  fmt.Sprintf("%d %s records reached %s=%d; more may exist", bc.RecordCount, bc.RecordKind, a.cfg.LimitKey, limit),
		})
	}
	return out
}

// cursor returns the first pagination key carrying a value
func (a *Auditor) cursor(params map[string]any) string {
	for _, k := range a.cfg.CursorKeys {
		v, ok := params[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return k
	}
	return ""
}

func (a *Auditor) critical(batch []record.Record, kind record.Kind) []Finding {
	var out []Finding
	for _, c := range a.cfg.Critical[kind] {
		applicable, missing := 0, []string(nil)
		for _, r := range batch {
			if r.Kind != kind || !matches(r, c.When) {
				continue
			}
			applicable++
			if f, ok := r.Fields[c.Field]; !ok || f.Presence != record.Present {
				missing = append(missing, r.Key)
			}
		}
		if len(missing) == 0 || !a.fires(len(missing), applicable) {
			continue
		}
		out = append(out, Finding{
			Severity: SeverityWarn,
			Code:     CodeMissingCriticalField,
			Kind:     kind,
			Field:    c.Field,
			Message: fmt.Sprintf("%s missing on %d of %d %s records; check the request asks for it",
				c.Field, len(missing), applicable, kind),
			Keys: missing,
		})
	}
	return out
}

func (a *Auditor) fires(missing, applicable int) bool {
	if applicable <= a.cfg.SmallBatchMax {
		return true
	}
	return float64(missing)/float64(applicable) > a.cfg.LargeBatchRatio
}

func coercions(batch []record.Record, kind record.Kind) []Finding {
	byField := map[string][]string{}
	for _, r := range batch {
		if r.Kind != kind {
			continue
		}
		for name, f := range r.Fields {
			if f.Err != nil {
				byField[name] = append(byField[name], r.Key)
			}
		}
	}
	fields := make([]string, 0, len(byField))
	for k := range byField {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	out := make([]Finding, 0, len(fields))
	for _, name := range fields {
		out = append(out, Finding{
			Severity: SeverityWarn,
			Code:     CodeCoercionFailed,
			Kind:     kind,
			Field:    name,
			Message:  fmt.Sprintf("%s failed type coercion on %d records; upstream shape may have changed", name, len(byField[name])),
			Keys:     byField[name],
		})
	}
	return out
}

// matches reports whether every When condition holds on r
func matches(r record.Record, when map[string]string) bool {
	for field, want := range when {
		v, ok := r.Value(field)
		if !ok || fmt.Sprint(v) != want {
			return false
		}
	}
	return true
}

// intParam reads a request parameter as an int; numbers, numeric strings and json.Number are accepted
func intParam(params map[string]any, key string) (int, bool) {
	v, ok := params[key]
	if !ok || v == nil {
		return 0, false
	}
	switch x := v.(type) {
	case json.Number:
		n, err := x.Int64()
		return int(n), err == nil
	case float64:
		return int(x), x == float64(int(x))
	case int:
		return x, true
	case int64:
		return int(x), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		return n, err == nil
	}
	return 0, false
}
