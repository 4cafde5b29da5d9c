package errors

import (
	"context"
	stderrs "errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// pgClass is how one SQLSTATE is surfaced: the project code and whether a keyed
// write hitting it should be retried
type pgClass struct {
	code  ErrorCode
	retry bool
}

var sqlStates = map[string]pgClass{
	"23505": {ErrorCodeDuplicateKey, false},    // unique_violation
	"23503": {ErrorCodeInvalidArgument, false}, // foreign_key_violation
	"23502": {ErrorCodeValidation, false},      // not_null_violation
	"23514": {ErrorCodeValidation, false},      // check_violation
	"22001": {ErrorCodeInvalidArgument, false}, // string_data_right_truncation
	"22P02": {ErrorCodeInvalidArgument, false}, // invalid_text_representation
	"22003": {ErrorCodeInvalidArgument, false}, // numeric_value_out_of_range

	// two writers of the same natural key
	"40001": {ErrorCodeDB, true}, // serialization_failure
	"40P01": {ErrorCodeDB, true}, // deadlock_detected
	"55P03": {ErrorCodeDB, true}, // lock_not_available

	"25006": {ErrorCodeUnavailable, false}, // read_only_sql_transaction
	"57P01": {ErrorCodeUnavailable, true},  // admin_shutdown
	"57P03": {ErrorCodeUnavailable, true},  // cannot_connect_now
	"57014": {ErrorCodeUnavailable, true},  // query_canceled, statement_timeout included
}

// driver text seen when no PgError survives, e.g. on commit
var retryText = []string{
	"commit unexpectedly resulted in rollback",
	"deadlock detected",
	"could not serialize access",
	"canceling statement due to statement timeout",
	"canceling statement due to lock timeout",
	"terminating connection due to administrator command",
}

// PgError returns the *pgconn.PgError behind err
func PgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if stderrs.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// DBErrorCode maps a Postgres error to an ErrorCode.
// ok is false when err carries no PgError
func DBErrorCode(err error) (code ErrorCode, ok bool) {
	pgErr, ok := PgError(err)
	if !ok {
		return ErrorCodeUnknown, false
	}
	if c, known := sqlStates[pgErr.Code]; known {
		return c.code, true
	}
	return ErrorCodeDB, true
}

// FromPostgres wraps err with its mapped code; non Postgres errors become ErrorCodeDB. nil stays nil
func FromPostgres(err error, msg string) error {
	if err == nil {
		return nil
	}
	code, ok := DBErrorCode(err)
	if !ok {
		code = ErrorCodeDB
	}
	return Wrap(err, code, msg)
}

// IsRetryable reports whether a database error is transient: contention on a key,
// a server that is starting or stopping, or a statement that ran out of time.
// Local cancellation is never retryable
func IsRetryable(err error) bool {
	if err == nil || stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return false
	}
	if pgErr, ok := PgError(err); ok {
		return sqlStates[pgErr.Code].retry
	}
	s := strings.ToLower(Root(err).Error())
	for _, frag := range retryText {
		if strings.Contains(s, frag) {
			return true
		}
	}
	return false
}
