package catalog

import (
	"bytes"
	"slices"

	"gopkg.in/yaml.v3"

	"socialsync/internal/core/record"
	perr "socialsync/internal/platform/errors"
)

// Overlay appends source aliases to known fields, keyed kind -> field -> aliases.
//
//	post:
//	  videoViewCount: [viewCount]
//	profile:
//	  biography: [about]
type Overlay map[record.Kind]map[string][]string

// ParseOverlay decodes a YAML overlay. Unknown top-level keys are rejected
func ParseOverlay(b []byte) (Overlay, error) {
	var o Overlay
	if len(bytes.TrimSpace(b)) == 0 {
		return o, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&o); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeCatalog, "catalog overlay")
	}
	return o, nil
}

// WithOverlay returns a copy of c with the overlay aliases appended after the built-in ones.
// An overlay naming an undeclared kind or field fails; it cannot introduce fields
func (c *Catalog) WithOverlay(o Overlay) (*Catalog, error) {
	schemas := c.Schemas()
	for kind, fields := range o {
		idx := slices.IndexFunc(schemas, func(s Schema) bool { return s.Kind == kind })
		if idx < 0 {
			return nil, perr.Catalogf("catalog overlay: unknown kind %q", kind)
		}
		s := schemas[idx]
		s.Fields = slices.Clone(s.Fields)
		for name, extra := range fields {
			fi := slices.IndexFunc(s.Fields, func(f FieldSpec) bool { return f.Name == name })
			if fi < 0 {
				return nil, perr.Catalogf("catalog overlay: %s has no field %q", kind, name)
			}
			f := s.Fields[fi]
			f.Aliases = slices.Clone(f.Aliases)
			for _, a := range extra {
				if a != "" && !slices.Contains(f.Aliases, a) {
					f.Aliases = append(f.Aliases, a)
				}
			}
			s.Fields[fi] = f
		}
		schemas[idx] = s
	}
	return New(schemas...)
}
