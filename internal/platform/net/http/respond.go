// Package http is the transport layer: a router facade over chi, the server and the
// JSON envelope every endpoint answers with
package http

import (
	"encoding/json"
	stdhttp "net/http"

	perr "socialsync/internal/platform/errors"
	pnet "socialsync/internal/platform/net"
)

// Envelope wraps every response body. Error responses fill the code fields, others Data
type Envelope struct {
	StatusCode int            `json:"status_code"`
	Status     string         `json:"status"`
	Code       perr.ErrorCode `json:"code,omitempty"`
	CodeName   string         `json:"code_name,omitempty"`
	Field      string         `json:"field,omitempty"`
	Error      string         `json:"error,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Data       any            `json:"data,omitempty"`
}

func envelope(r *stdhttp.Request, status int) Envelope {
	return Envelope{
		StatusCode: status,
		Status:     stdhttp.StatusText(status),
		RequestID:  pnet.RequestID(r.Context()),
	}
}

// JSON writes v with status
func JSON(w stdhttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorEnvelope renders err the way the API reports failures
func ErrorEnvelope(r *stdhttp.Request, err error) (int, Envelope) {
	status, wire := perr.HTTP(err)
	env := envelope(r, status)
	env.Code, env.CodeName, env.Field, env.Error = wire.Code, wire.Name, wire.Field, wire.Message
	return status, env
}

// Response is what return style handlers produce. An error Body becomes an error envelope
type Response struct {
	Status int
	Body   any
	Header stdhttp.Header

	// Partial rides along an error Body as the envelope Data
	Partial any
}

// Handle turns a return style handler into a net/http one
func Handle(h func(r *stdhttp.Request) Response) stdhttp.HandlerFunc {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		resp := h(r)
		for k, vs := range resp.Header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}

		if err, ok := resp.Body.(error); ok && err != nil {
			status, env := ErrorEnvelope(r, err)
			env.Data = resp.Partial
			JSON(w, status, env)
			return
		}
		status := resp.Status
		switch status {
		case 0:
			status = stdhttp.StatusOK
		case stdhttp.StatusNoContent:
			w.WriteHeader(status)
			return
		}
		env := envelope(r, status)
		env.Data = resp.Body
		JSON(w, status, env)
	}
}

func OK(data any) Response      { return Response{Status: stdhttp.StatusOK, Body: data} }
func Created(data any) Response { return Response{Status: stdhttp.StatusCreated, Body: data} }

// Error responds with err's mapped status and envelope
func Error(err error) Response { return Response{Body: err} }

// ErrorWith responds like Error and carries partial as the envelope Data
func ErrorWith(err error, partial any) Response { return Response{Body: err, Partial: partial} }
