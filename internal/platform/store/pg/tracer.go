package pg

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"socialsync/internal/platform/logger"
)

// QueryEvent describes one finished statement
type QueryEvent struct {
	SQL       string
	Args      []any
	ElapsedUS int64
	Err       error
	Slow      bool
}

// QueryTracer receives every statement run through the store adapter
type QueryTracer interface {
	OnQuery(ctx context.Context, ev QueryEvent)
}

// Tracer logs every statement regardless of the root level; slow ones at warn
func Tracer(root logger.Logger) QueryTracer {
	ll := root.Level(zerolog.DebugLevel).With().Str("component", "pg").Logger()
	return &zlTracer{log: ll}
}

type zlTracer struct{ log logger.Logger }

func (z *zlTracer) OnQuery(ctx context.Context, ev QueryEvent) {
	evt := z.log.Info()
	if ev.Slow {
		evt = z.log.Warn()
	}
	if run := logger.RunID(ctx); run != "" {
		evt = evt.Str("run_id", run)
	}
	evt.Float64("elapsed_ms", float64(ev.ElapsedUS)/1000.0).
		Bool("slow", ev.Slow).
		Str("sql", compact(ev.SQL)).
		Strs("args", argStrings(ev.Args)).
		Err(ev.Err).
		Msg("pg query")
}

// compact collapses whitespace runs so statements log on one line
func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// argStrings renders args for the log; jsonb payloads are summarized by size
func argStrings(args []any) []string {
	out := make([]string, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case []byte:
			out[i] = fmt.Sprintf("<%d bytes>", len(v))
		case string:
			if len(v) > 64 {
				v = v[:64] + "..."
			}
			out[i] = v
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}
