// Package extract maps raw scraper payloads onto catalog schemas.
// Extraction is pure: the same payload, schema and time always give the same record
package extract

import (
	"maps"
	"strconv"
	"strings"
	"time"

	"socialsync/internal/core/catalog"
	"socialsync/internal/core/record"
)

// Extract builds a record holding exactly one entry per field declared in s.
// A bad value only affects its own field; the record is always produced
func Extract(payload map[string]any, s catalog.Schema, at time.Time) record.Record {
	at = at.UTC()
	rec := record.Record{
		Kind:        s.Kind,
		Fields:      make(map[string]record.Field, len(s.Fields)),
		ExtractedAt: at,
		Raw:         payload,
	}
	for _, spec := range s.Fields {
		rec.Fields[spec.Name] = resolve(payload, spec, at)
	}
	rec.Key = Key(rec, s)
	return rec
}

func resolve(payload map[string]any, spec catalog.FieldSpec, at time.Time) record.Field {
	for _, alias := range spec.Aliases {
		v, ok := Lookup(payload, alias)
		if !ok || v == nil {
			continue
		}
		// first non-null alias decides, even when it does not coerce
		cv, err := Coerce(spec, v)
		if err != nil {
			return record.Field{Presence: record.Missing, Source: alias, Err: err}
		}
		return record.Field{Value: cv, Presence: record.Present, ObservedAt: at, Source: alias}
	}
	if spec.Required {
		return record.Field{Presence: record.Missing}
	}
	return record.Field{Value: spec.Default, Presence: record.Defaulted}
}

// Key renders the natural key of rec, empty when the key field is not present
func Key(rec record.Record, s catalog.Schema) string {
	v, ok := rec.Value(s.KeyField)
	if !ok {
		return ""
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case int64:
		return strconv.FormatInt(x, 10)
	}
	return ""
}

// Lookup reads alias from payload. A dotted alias walks nested objects
// unless the payload holds the dotted name literally
func Lookup(payload map[string]any, alias string) (any, bool) {
	if v, ok := payload[alias]; ok {
		return v, true
	}
	if !strings.Contains(alias, ".") {
		return nil, false
	}
	var cur any = payload
	for part := range strings.SplitSeq(alias, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Embedded is a child payload found inside a parent, ready for extraction
type Embedded struct {
	Kind    record.Kind
	Payload map[string]any

	// Path locates the child in the parent, e.g. latestPosts[3].latestComments[0]
	Path string
}

// Flatten walks the child collections declared for kind and returns every embedded
// payload, depth first. Each child is a shallow copy with the declared parent values
// injected where the child lacks them; the input payload is not modified
func Flatten(c *catalog.Catalog, kind record.Kind, payload map[string]any) []Embedded {
	var out []Embedded
	flatten(c, kind, payload, "", &out)
	return out
}

func flatten(c *catalog.Catalog, kind record.Kind, payload map[string]any, prefix string, out *[]Embedded) {
	s, err := c.SchemaFor(kind)
	if err != nil {
		return
	}
	for _, ch := range s.Children {
		items, _ := payload[ch.Alias].([]any)
		for i, it := range items {
			child, ok := it.(map[string]any)
			if !ok {
				continue
			}
			child = maps.Clone(child)
			for key, parentAlias := range ch.Inject {
				if v, ok := child[key]; ok && v != nil {
					continue
				}
				if v, ok := Lookup(payload, parentAlias); ok && v != nil {
					child[key] = v
				}
			}
			path := prefix + ch.Alias + "[" + strconv.Itoa(i) + "]"
			*out = append(*out, Embedded{Kind: ch.Kind, Payload: child, Path: path})
			flatten(c, ch.Kind, child, path+".", out)
		}
	}
}
