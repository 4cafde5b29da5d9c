// Package reconcile merges a freshly extracted record into the stored one.
//
// Per field:
//   - a PRESENT value is never replaced by a MISSING or DEFAULTED one
//   - when both sides are PRESENT the fresher observation wins; a tie keeps the stored value
//   - when neither is PRESENT, DEFAULTED beats MISSING
//
// Repeated scrapes can therefore only fill gaps or refresh values.
package reconcile

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"socialsync/internal/core/record"
)

// Action is the write a reconciliation asks the store to perform
type Action uint8

// Actions
const (
	Noop Action = iota
	Insert
	Update
)

var actionNames = [...]string{Noop: "NOOP", Insert: "INSERT", Update: "UPDATE"}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("ACTION(%d)", uint8(a))
}

// MarshalText renders the action name
func (a Action) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText parses an action name
func (a *Action) UnmarshalText(b []byte) error {
	for i, n := range actionNames {
		if strings.EqualFold(n, string(b)) {
			*a = Action(i)
			return nil
		}
	}
	return fmt.Errorf("unknown action %q", string(b))
}

// Decision is the outcome for one natural key
type Decision struct {
	Key     string      `json:"key"`
	Kind    record.Kind `json:"kind"`
	Action  Action      `json:"action"`
	Changed []string    `json:"changed_fields,omitempty"`
}

// Reconcile merges incoming into existing and returns the decision with the record to store.
// With no existing record the incoming record is stored as is
func Reconcile(incoming record.Record, existing *record.Record) (Decision, record.Record) {
	d := Decision{Key: incoming.Key, Kind: incoming.Kind}
	if existing == nil {
		d.Action = Insert
		d.Changed = names(incoming.Fields)
		return d, incoming.Clone()
	}

	merged := existing.Clone()
	if incoming.ExtractedAt.After(existing.ExtractedAt) {
		merged.ExtractedAt = incoming.ExtractedAt
		merged.Raw = incoming.Raw
	}

	for name, in := range incoming.Fields {
		cur, ok := existing.Fields[name]
		if !ok {
			// field added to the catalog since the stored record was written
			merged.Fields[name] = in
			d.Changed = append(d.Changed, name)
			continue
		}
		won := pick(name, in, cur, incoming, *existing)
		merged.Fields[name] = won
		if !sameField(won, cur) {
			d.Changed = append(d.Changed, name)
		}
	}
	sort.Strings(d.Changed)

	if len(d.Changed) > 0 {
		d.Action = Update
	}
	return d, merged
}

// pick returns the field that survives the merge
func pick(name string, in, cur record.Field, incoming, existing record.Record) record.Field {
	switch {
	case in.Presence == record.Present && cur.Presence == record.Present:
		if incoming.ObservedAt(name).After(existing.ObservedAt(name)) {
			return in
		}
		return cur
	case in.Presence == record.Present:
		return in
	case cur.Presence == record.Present:
		return cur
	case in.Presence > cur.Presence:
		return in
	default:
		return cur
	}
}

// sameField compares what a store would persist; Source and Err are diagnostics only
func sameField(a, b record.Field) bool {
	if a.Presence != b.Presence {
		return false
	}
	return sameValue(a.Value, b.Value)
}

func sameValue(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

func names(fields map[string]record.Field) []string {
	out := make([]string, 0, len(fields))
	for k := range fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
