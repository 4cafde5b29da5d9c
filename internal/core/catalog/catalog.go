// Package catalog is the declarative description of every known field per record kind.
// Adding a field to the target model means adding one FieldSpec here; extraction,
// storage columns and audits all read from the catalog
package catalog

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"socialsync/internal/core/record"
	perr "socialsync/internal/platform/errors"
)

// Type is the target type a raw value is coerced into
type Type uint8

// Supported target types
const (
	TypeString Type = iota
	TypeInteger
	TypeDecimal
	TypeBoolean
	TypeTimestamp
	TypeNested
)

var typeNames = [...]string{
	TypeString:    "string",
	TypeInteger:   "integer",
	TypeDecimal:   "decimal",
	TypeBoolean:   "boolean",
	TypeTimestamp: "timestamp",
	TypeNested:    "nested",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// MarshalText renders the type name
func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// FieldSpec declares one field of a record kind
type FieldSpec struct {
	Name     string `json:"name"`
	Type     Type   `json:"type"`
	Required bool   `json:"required"`
	Default  any    `json:"default"`

	// Aliases are raw payload keys tried in order; dotted aliases walk nested objects
	Aliases []string `json:"aliases"`
}

// Child declares a collection embedded in a parent payload that holds records of another kind
type Child struct {
	// Alias is the parent payload key holding the array
	Alias string      `json:"alias"`
	Kind  record.Kind `json:"kind"`

	// Inject copies parent payload values into each child when the child lacks them.
	// child key -> parent alias
	Inject map[string]string `json:"inject,omitempty"`
}

// Schema is the ordered field set of one record kind
type Schema struct {
	Kind     record.Kind `json:"kind"`
	KeyField string      `json:"key_field"`
	Fields   []FieldSpec `json:"fields"`
	Children []Child     `json:"children,omitempty"`
}

// Field returns the named spec
func (s Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Names returns field names in declaration order
func (s Schema) Names() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// Catalog maps each kind to its schema
type Catalog struct {
	schemas map[record.Kind]Schema
	order   []record.Kind
}

var fieldName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// New validates schemas and builds a catalog
func New(schemas ...Schema) (*Catalog, error) {
	c := &Catalog{schemas: make(map[record.Kind]Schema, len(schemas))}
	for _, s := range schemas {
		if err := Validate(s); err != nil {
			return nil, err
		}
		if _, dup := c.schemas[s.Kind]; dup {
			return nil, perr.Catalogf("catalog: kind %q declared twice", s.Kind)
		}
		c.schemas[s.Kind] = s
		c.order = append(c.order, s.Kind)
	}
	for _, s := range schemas {
		for _, ch := range s.Children {
			if _, ok := c.schemas[ch.Kind]; !ok {
				return nil, perr.Catalogf("catalog: %s child %q points at undeclared kind %q", s.Kind, ch.Alias, ch.Kind)
			}
		}
	}
	return c, nil
}

// MustBuild is New that panics. Catalog misconfiguration is a startup failure
func MustBuild(schemas ...Schema) *Catalog {
	c, err := New(schemas...)
	if err != nil {
		panic(err)
	}
	return c
}

// Validate checks a single schema: unique well-formed names, a declared key field,
// at least one alias per field, and defaults only on optional fields
func Validate(s Schema) error {
	if _, err := record.ParseKind(string(s.Kind)); err != nil {
		return perr.Wrap(err, perr.ErrorCodeCatalog, "catalog")
	}
	if len(s.Fields) == 0 {
		return perr.Catalogf("catalog: %s has no fields", s.Kind)
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if !fieldName.MatchString(f.Name) {
			return perr.Catalogf("catalog: %s field name %q is not an identifier", s.Kind, f.Name)
		}
		lower := strings.ToLower(f.Name)
		if _, dup := seen[lower]; dup {
			return perr.Catalogf("catalog: %s declares field %q twice", s.Kind, f.Name)
		}
		seen[lower] = struct{}{}
		if len(f.Aliases) == 0 {
			return perr.Catalogf("catalog: %s.%s has no source aliases", s.Kind, f.Name)
		}
		if f.Required && f.Default != nil {
			return perr.Catalogf("catalog: %s.%s is required and cannot carry a default", s.Kind, f.Name)
		}
	}
	if _, ok := seen[strings.ToLower(s.KeyField)]; !ok {
		return perr.Catalogf("catalog: %s key field %q is not declared", s.Kind, s.KeyField)
	}
	return nil
}

// SchemaFor returns the schema of kind
func (c *Catalog) SchemaFor(kind record.Kind) (Schema, error) {
	s, ok := c.schemas[kind]
	if !ok {
		return Schema{}, perr.WithField(perr.UnknownKindf("no schema for record kind %q", kind), "kind")
	}
	return s, nil
}

// Kinds lists declared kinds in declaration order
func (c *Catalog) Kinds() []record.Kind { return slices.Clone(c.order) }

// Schemas lists declared schemas in declaration order
func (c *Catalog) Schemas() []Schema {
	out := make([]Schema, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.schemas[k])
	}
	return out
}

var std = MustBuild(Profile(), Post(), Comment())

// Default returns the built-in scraper catalog
func Default() *Catalog { return std }

// SchemaFor looks kind up in the built-in catalog
func SchemaFor(kind record.Kind) (Schema, error) { return std.SchemaFor(kind) }
