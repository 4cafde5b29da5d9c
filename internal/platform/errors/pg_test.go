package errors

import (
	"context"
	stderrs "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func pg(code string) *pgconn.PgError { return &pgconn.PgError{Code: code} }

func TestPostgresClasses(t *testing.T) {
	cases := []struct {
		state string
		code  ErrorCode
		retry bool
	}{
		{"23505", ErrorCodeDuplicateKey, false},
		{"23503", ErrorCodeInvalidArgument, false},
		{"23502", ErrorCodeValidation, false},
		{"22003", ErrorCodeInvalidArgument, false},
		{"40001", ErrorCodeDB, true},
		{"40P01", ErrorCodeDB, true},
		{"55P03", ErrorCodeDB, true},
		{"25006", ErrorCodeUnavailable, false},
		{"57P03", ErrorCodeUnavailable, true},
		{"57014", ErrorCodeUnavailable, true},
		{"XX000", ErrorCodeDB, false},
	}
	for _, c := range cases {
		t.Run(c.state, func(t *testing.T) {
			wrapped := FromPostgres(fmt.Errorf("upsert: %w", pg(c.state)), "upsert post")
			if got := CodeOf(wrapped); got != c.code {
				t.Fatalf("code = %v, want %v", got, c.code)
			}
			if got := IsRetryable(wrapped); got != c.retry {
				t.Fatalf("IsRetryable = %v, want %v", got, c.retry)
			}
			if got := Retryable(wrapped); got != (c.retry || c.code == ErrorCodeUnavailable) {
				t.Fatalf("Retryable = %v", got)
			}
		})
	}
}

func TestFromPostgres_NonPg(t *testing.T) {
	if FromPostgres(nil, "x") != nil {
		t.Fatal("nil should stay nil")
	}
	if _, ok := DBErrorCode(stderrs.New("socket closed")); ok {
		t.Fatal("plain error reported as PgError")
	}
	if CodeOf(FromPostgres(stderrs.New("socket closed"), "load post")) != ErrorCodeDB {
		t.Fatal("non pg errors should map to DB")
	}
}

func TestIsRetryable_Text(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"nil":          {nil, false},
		"canceled":     {context.Canceled, false},
		"deadline":     {fmt.Errorf("wrap: %w", context.DeadlineExceeded), false},
		"commit":       {stderrs.New("commit unexpectedly resulted in rollback"), true},
		"lock timeout": {Wrap(stderrs.New("ERROR: canceling statement due to lock timeout"), ErrorCodeDB, "lock"), true},
		"syntax":       {stderrs.New("syntax error at or near"), false},
	}
	for name, c := range cases {
		if got := IsRetryable(c.err); got != c.want {
			t.Errorf("%s: IsRetryable = %v, want %v", name, got, c.want)
		}
	}
}
