package repo

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode"

	"github.com/jackc/pgx/v5"

	"socialsync/internal/core/catalog"
	"socialsync/internal/core/record"
	"socialsync/internal/modkit/repokit"
	perr "socialsync/internal/platform/errors"
)

// Table is the table holding records of kind
func Table(kind record.Kind) string { return string(kind) + "s" }

// Column is the snake_case column a catalog field is stored in
func Column(field string) string {
	var b strings.Builder
	rs := []rune(field)
	for i, r := range rs {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(rs[i-1]) || unicode.IsDigit(rs[i-1]) ||
				(i+1 < len(rs) && unicode.IsLower(rs[i+1]))) {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func sqlType(t catalog.Type) string {
	switch t {
	case catalog.TypeInteger:
		return "bigint"
	case catalog.TypeDecimal:
		return "double precision"
	case catalog.TypeBoolean:
		return "boolean"
	case catalog.TypeTimestamp:
		return "timestamptz"
	case catalog.TypeNested:
		return "jsonb"
	default:
		return "text"
	}
}

func ident(name string) string { return pgx.Identifier{name}.Sanitize() }

// DDL renders the statements that create or extend the tables for every kind in c.
// Columns added to the catalog later are added with ADD COLUMN IF NOT EXISTS
func DDL(c *catalog.Catalog) []string {
	var out []string
	for _, s := range c.Schemas() {
		tbl := ident(Table(s.Kind))
		cols := []string{"natural_key text PRIMARY KEY"}
		for _, f := range s.Fields {
			cols = append(cols, ident(Column(f.Name))+" "+sqlType(f.Type))
		}
		cols = append(cols,
			"field_meta jsonb NOT NULL",
			"raw jsonb",
			"extracted_at timestamptz NOT NULL",
			"created_at timestamptz NOT NULL DEFAULT now()",
			"updated_at timestamptz NOT NULL DEFAULT now()",
		)
		out = append(out, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", tbl, strings.Join(cols, ",\n  ")))
		for _, f := range s.Fields {
			out = append(out, fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s", tbl, ident(Column(f.Name)), sqlType(f.Type)))
		}
	}

	// children point at their parent through an injected key; index those lookups
	for _, s := range c.Schemas() {
		for _, ch := range s.Children {
			for _, childKey := range slices.Sorted(maps.Keys(ch.Inject)) {
				if ch.Inject[childKey] != s.KeyField {
					continue
				}
				name := Table(ch.Kind) + "_" + Column(childKey) + "_idx"
				out = append(out, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
					ident(name), ident(Table(ch.Kind)), ident(Column(childKey))))
			}
		}
	}
	return out
}

// EnsureSchema creates the record tables for c in one transaction
func EnsureSchema(ctx context.Context, tx repokit.TxRunner, c *catalog.Catalog) error {
	return tx.Tx(ctx, func(q repokit.Queryer) error {
		for _, stmt := range DDL(c) {
			if _, err := q.Exec(ctx, stmt); err != nil {
				return perr.FromPostgres(err, "ensure record schema")
			}
		}
		return nil
	})
}
