package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode is the machine facing class of an error. Values go over the wire; append only
type ErrorCode uint16

const (
	ErrorCodeUnknown ErrorCode = iota
	ErrorCodePanic
	ErrorCodeUnavailable // transient, a retry may succeed
	ErrorCodeConflict
	ErrorCodeInvalidArgument
	ErrorCodeValidation
	ErrorCodeJSON
	ErrorCodeNotFound
	ErrorCodeDuplicateKey
	ErrorCodeDB

	// record pipeline
	ErrorCodeUnknownKind    // kind the catalog does not describe
	ErrorCodeUnclassifiable // payload matched no discriminator
	ErrorCodeCoercion       // one field failed type coercion
	ErrorCodeMissingKey     // natural key could not be resolved
	ErrorCodeStoreWrite     // upsert against the record store failed
	ErrorCodeCatalog        // malformed catalog or overlay
)

type codeInfo struct {
	name   string
	status int
}

var codes = [...]codeInfo{
	ErrorCodeUnknown:         {"UNKNOWN", http.StatusInternalServerError},
	ErrorCodePanic:           {"PANIC", http.StatusInternalServerError},
	ErrorCodeUnavailable:     {"UNAVAILABLE", http.StatusServiceUnavailable},
	ErrorCodeConflict:        {"CONFLICT", http.StatusConflict},
	ErrorCodeInvalidArgument: {"INVALID_ARGUMENT", http.StatusUnprocessableEntity},
	ErrorCodeValidation:      {"VALIDATION", http.StatusBadRequest},
	ErrorCodeJSON:            {"JSON", http.StatusBadRequest},
	ErrorCodeNotFound:        {"NOT_FOUND", http.StatusNotFound},
	ErrorCodeDuplicateKey:    {"DUPLICATE_KEY", http.StatusConflict},
	ErrorCodeDB:              {"DB", http.StatusInternalServerError},
	ErrorCodeUnknownKind:     {"UNKNOWN_RECORD_KIND", http.StatusUnprocessableEntity},
	ErrorCodeUnclassifiable:  {"UNCLASSIFIABLE_RECORD", http.StatusUnprocessableEntity},
	ErrorCodeCoercion:        {"FIELD_COERCION", http.StatusUnprocessableEntity},
	ErrorCodeMissingKey:      {"MISSING_NATURAL_KEY", http.StatusUnprocessableEntity},
	ErrorCodeStoreWrite:      {"STORE_WRITE", http.StatusServiceUnavailable},
	ErrorCodeCatalog:         {"CATALOG", http.StatusInternalServerError},
}

func (c ErrorCode) info() (codeInfo, bool) {
	if int(c) < len(codes) && codes[c].name != "" {
		return codes[c], true
	}
	return codeInfo{}, false
}

// String returns the stable upper snake name of the code
func (c ErrorCode) String() string {
	if ci, ok := c.info(); ok {
		return ci.name
	}
	return fmt.Sprintf("CODE_%d", uint16(c))
}

// HTTPStatusCode is the status an API answers with for c. Unknown codes are 500
func HTTPStatusCode(c ErrorCode) int {
	if ci, ok := c.info(); ok {
		return ci.status
	}
	return http.StatusInternalServerError
}
