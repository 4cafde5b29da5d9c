package extract

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"socialsync/internal/core/catalog"
	"socialsync/internal/core/normalize"
	perr "socialsync/internal/platform/errors"
)

// timestamp layouts accepted for ISO-8601 input, tried in order
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Coerce converts a raw payload value into the Go type of spec:
// string, int64, float64, bool, time.Time (UTC), or the nested map/slice as decoded
func Coerce(spec catalog.FieldSpec, v any) (any, error) {
	var (
		out any
		ok  bool
	)
	switch spec.Type {
	case catalog.TypeString:
		out, ok = asString(v)
	case catalog.TypeInteger:
		out, ok = asInt(v)
	case catalog.TypeDecimal:
		out, ok = asFloat(v)
	case catalog.TypeBoolean:
		out, ok = v.(bool)
	case catalog.TypeTimestamp:
		out, ok = asTime(v)
	case catalog.TypeNested:
		switch v.(type) {
		case map[string]any, []any:
			out, ok = v, true
		}
	}
	if !ok {
		return nil, perr.Coercionf(spec.Name, "%s: cannot use %s as %s", spec.Name, describe(v), spec.Type)
	}
	return out, nil
}

func asString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return normalize.Text(x), true
	case json.Number:
		// ids arrive as numbers in older payloads
		if n, err := x.Int64(); err == nil {
			return strconv.FormatInt(n, 10), true
		}
	case float64:
		if n, ok := integral(x); ok {
			return strconv.FormatInt(n, 10), true
		}
	case int64:
		return strconv.FormatInt(x, 10), true
	case int:
		return strconv.Itoa(x), true
	}
	return "", false
}

func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
		if f, err := x.Float64(); err == nil {
			return integral(f)
		}
	case float64:
		return integral(x)
	case int64:
		return x, true
	case int:
		return int64(x), true
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return integral(f)
		}
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	var (
		f   float64
		err error
	)
	switch x := v.(type) {
	case json.Number:
		f, err = x.Float64()
	case float64:
		f = x
	case int64:
		f = float64(x)
	case int:
		f = float64(x)
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), true
	case string:
		s := strings.TrimSpace(x)
		for _, l := range layouts {
			if t, err := time.Parse(l, s); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

func integral(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func describe(v any) string {
	switch x := v.(type) {
	case string:
		if r := []rune(x); len(r) > 32 {
			x = string(r[:32]) + "..."
		}
		return strconv.Quote(x)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	return "value"
}
