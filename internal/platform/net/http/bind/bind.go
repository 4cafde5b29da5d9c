// Package bind decodes and validates JSON request bodies into typed DTOs
package bind

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	perr "socialsync/internal/platform/errors"
	"socialsync/internal/platform/logger"

	"github.com/go-playground/validator/v10"
)

// JSONOptions controls decoding
type JSONOptions struct {
	MaxBytes        int64 // 0 means no cap
	DisallowUnknown bool

	// UseNumber keeps numbers inside any typed fields as json.Number so large ids survive
	UseNumber bool
}

// DefaultJSONOptions is what ParseJSON uses without options: a 1MB cap and strict keys
func DefaultJSONOptions() JSONOptions {
	return JSONOptions{MaxBytes: 1 << 20, DisallowUnknown: true}
}

// bodiless methods may omit the body entirely
var bodiless = map[string]bool{
	http.MethodGet: true, http.MethodHead: true, http.MethodDelete: true, http.MethodOptions: true,
}

// ParseJSON decodes one JSON value from r's body into T and validates it.
// Decode failures are ErrorCodeJSON, rule failures ErrorCodeValidation tagged with the field
func ParseJSON[T any](r *http.Request, opts ...JSONOptions) (T, error) {
	var out, zero T
	o := DefaultJSONOptions()
	if len(opts) > 0 {
		o = opts[0]
	}

	body := r.Body
	if o.MaxBytes > 0 {
		body = http.MaxBytesReader(nil, body, o.MaxBytes)
	}
	defer func() {
		if err := body.Close(); err != nil {
			logger.Get().Error().Err(err).Msg("bind: close request body")
		}
	}()

	dec := json.NewDecoder(body)
	if o.DisallowUnknown {
		dec.DisallowUnknownFields()
	}
	if o.UseNumber {
		dec.UseNumber()
	}

	if err := dec.Decode(&out); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF) && bodiless[r.Method]:
			return zero, nil
		case errors.Is(err, io.EOF):
			return zero, perr.JSONErrf("empty body")
		case errors.As(err, &tooBig):
			return zero, perr.JSONErrf("body exceeds %d bytes", tooBig.Limit)
		default:
			return zero, perr.JSONErrf("invalid JSON: %v", err)
		}
	}
	if dec.More() {
		return zero, perr.JSONErrf("unexpected trailing data")
	}

	if err := Get().Validator.Struct(out); err != nil {
		var inv *validator.InvalidValidationError
		if errors.As(err, &inv) {
			logger.Get().Error().Err(inv).Msg("bind: validator misuse")
			return zero, perr.JSONErrf("validation error")
		}
		field, msg := ValidationFieldAndMessage(err)
		return zero, perr.WithField(perr.New(perr.ErrorCodeValidation, msg), field)
	}
	return out, nil
}
