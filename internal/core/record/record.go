// Package record holds the normalized record model shared by every pipeline stage
package record

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	perr "socialsync/internal/platform/errors"
)

// Kind is one of the payload shapes the scraper produces
type Kind string

// Known record kinds, in classifier precedence order
const (
	KindProfile Kind = "profile"
	KindPost    Kind = "post"
	KindComment Kind = "comment"
)

// Kinds lists every known kind in precedence order
func Kinds() []Kind { return []Kind{KindProfile, KindPost, KindComment} }

// ParseKind accepts a kind name case-insensitively
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindProfile, KindPost, KindComment:
		return k, nil
	}
	return "", perr.UnknownKindf("unknown record kind %q", s)
}

// Presence tells whether a field value came from the payload
type Presence uint8

const (
	// Missing means required and absent, or present but not coercible
	Missing Presence = iota
	// Defaulted means optional and absent, filled from the catalog default
	Defaulted
	// Present means a value was found in the payload
	Present
)

var presenceNames = [...]string{Missing: "MISSING", Defaulted: "DEFAULTED", Present: "PRESENT"}

func (p Presence) String() string {
	if int(p) < len(presenceNames) {
		return presenceNames[p]
	}
	return fmt.Sprintf("PRESENCE(%d)", uint8(p))
}

// MarshalText renders the presence name
func (p Presence) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText parses a presence name
func (p *Presence) UnmarshalText(b []byte) error {
	for i, n := range presenceNames {
		if strings.EqualFold(n, string(b)) {
			*p = Presence(i)
			return nil
		}
	}
	return perr.InvalidArgf("unknown presence %q", string(b))
}

// Field is one resolved field of a record
type Field struct {
	Value    any      `json:"value"`
	Presence Presence `json:"presence"`

	// ObservedAt is when this value was read from the payload. Zero for non-present fields
	ObservedAt time.Time `json:"observed_at,omitzero"`

	// Source is the payload alias that supplied the value
	Source string `json:"source,omitempty"`

	// Err is the coercion failure that left the field MISSING
	Err error `json:"-"`
}

// MarshalJSON adds the coercion error text
func (f Field) MarshalJSON() ([]byte, error) {
	type plain Field
	out := struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain: plain(f)}
	if f.Err != nil {
		out.Error = f.Err.Error()
	}
	return json.Marshal(out)
}

// Known reports whether the field holds a usable value (present or defaulted)
func (f Field) Known() bool { return f.Presence != Missing }

// Record is an extracted, schema-complete record
type Record struct {
	Kind        Kind             `json:"kind"`
	Key         string           `json:"key"`
	Fields      map[string]Field `json:"fields"`
	ExtractedAt time.Time        `json:"extracted_at"`

	// Raw is the payload the record was extracted from, kept for audit storage
	Raw map[string]any `json:"-"`
}

// Get returns the named field
func (r Record) Get(name string) (Field, bool) {
	f, ok := r.Fields[name]
	return f, ok
}

// Value returns the named field value when it is present
func (r Record) Value(name string) (any, bool) {
	f, ok := r.Fields[name]
	if !ok || f.Presence != Present {
		return nil, false
	}
	return f.Value, true
}

// Count returns how many fields are in the given presence state
func (r Record) Count(p Presence) int {
	n := 0
	for _, f := range r.Fields {
		if f.Presence == p {
			n++
		}
	}
	return n
}

// ObservedAt returns the freshness of a field, falling back to the record extraction time
func (r Record) ObservedAt(name string) time.Time {
	if f, ok := r.Fields[name]; ok && !f.ObservedAt.IsZero() {
		return f.ObservedAt
	}
	return r.ExtractedAt
}

// Clone returns a copy whose field map can be mutated independently
func (r Record) Clone() Record {
	c := r
	c.Fields = make(map[string]Field, len(r.Fields))
	for k, v := range r.Fields {
		c.Fields[k] = v
	}
	return c
}

// Ref identifies a record by kind and natural key
type Ref struct {
	Kind Kind
	Key  string
}

func (r Ref) String() string { return string(r.Kind) + ":" + r.Key }

// Ref returns the record identity
func (r Record) Ref() Ref { return Ref{Kind: r.Kind, Key: r.Key} }
