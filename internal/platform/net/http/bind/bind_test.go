package bind

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	perr "socialsync/internal/platform/errors"
)

type payload struct {
	Name string `json:"name" validate:"required,min=2"`
	Age  int    `json:"age" validate:"min=1"`
}

func post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestParseJSON_Success(t *testing.T) {
	got, err := ParseJSON[payload](post(`{"name":"Alice","age":3}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Alice" || got.Age != 3 {
		t.Fatalf("got %+v", got)
	}
}

func TestParseJSON_Errors(t *testing.T) {
	cases := []struct {
		name string
		req  *http.Request
		opts []JSONOptions
		code perr.ErrorCode
	}{
		{"empty body", httptest.NewRequest(http.MethodPost, "/", http.NoBody), nil, perr.ErrorCodeJSON},
		{"invalid", post(`{`), nil, perr.ErrorCodeJSON},
		{"unknown field", post(`{"name":"Al","age":3,"boom":1}`), nil, perr.ErrorCodeJSON},
		{"too large", post(`{"name":"Alice","age":3}`), []JSONOptions{{MaxBytes: 5, DisallowUnknown: true}}, perr.ErrorCodeJSON},
		{"validation", post(`{"name":"A","age":1}`), nil, perr.ErrorCodeValidation},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseJSON[payload](c.req, c.opts...)
			if perr.CodeOf(err) != c.code {
				t.Fatalf("code = %v (%v), want %v", perr.CodeOf(err), err, c.code)
			}
		})
	}
}

func TestParseJSON_ValidationCarriesField(t *testing.T) {
	_, err := ParseJSON[payload](post(`{"name":"Al","age":0}`))
	if perr.FieldOf(err) != "age" {
		t.Fatalf("field = %q (%v)", perr.FieldOf(err), err)
	}
	if !strings.Contains(err.Error(), "age must be at least 1") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestParseJSON_EmptyBodyTolerance(t *testing.T) {
	got, err := ParseJSON[payload](httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if err != nil || got != (payload{}) {
		t.Fatalf("GET with no body: %+v, %v", got, err)
	}
	got, err = ParseJSON[payload](httptest.NewRequest(http.MethodDelete, "/", http.NoBody))
	if err != nil || got != (payload{}) {
		t.Fatalf("DELETE with no body: %+v, %v", got, err)
	}
}

func TestParseJSON_UnknownAllowed(t *testing.T) {
	got, err := ParseJSON[payload](post(`{"name":"Al","age":3,"extra":"ok"}`), JSONOptions{})
	if err != nil || got.Name != "Al" {
		t.Fatalf("got %+v, %v", got, err)
	}
}

func TestParseJSON_Trailing(t *testing.T) {
	if _, err := ParseJSON[payload](post(`{"name":"Al","age":3} {"name":"Bo"}`)); perr.CodeOf(err) != perr.ErrorCodeJSON {
		t.Fatalf("expected JSON error for trailing data, got %v", err)
	}
	if _, err := ParseJSON[payload](post("{\"name\":\"Al\",\"age\":3}\n")); err != nil {
		t.Fatalf("trailing newline rejected: %v", err)
	}
}

func TestParseJSON_NonStruct(t *testing.T) {
	_, err := ParseJSON[int](post(`5`))
	if perr.CodeOf(err) != perr.ErrorCodeJSON {
		t.Fatalf("expected JSON-coded error, got %v", err)
	}
}

func TestParseJSON_UseNumber(t *testing.T) {
	type batch struct {
		Items []map[string]any `json:"items"`
	}
	body := `{"items":[{"id":17841400000000001,"likesCount":12}]}`

	got, err := ParseJSON[batch](post(body), JSONOptions{UseNumber: true})
	if err != nil {
		t.Fatal(err)
	}
	n, ok := got.Items[0]["id"].(json.Number)
	if !ok || n.String() != "17841400000000001" {
		t.Fatalf("id = %#v", got.Items[0]["id"])
	}

	got, err = ParseJSON[batch](post(body), JSONOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got.Items[0]["id"].(float64); !ok {
		t.Fatalf("without UseNumber id = %T", got.Items[0]["id"])
	}
}

func TestTagNames(t *testing.T) {
	cases := []struct {
		name string
		v    any
		want string
	}{
		{"json with options", struct {
			Val int `json:"foo,omitempty" validate:"min=1"`
		}{}, "foo"},
		{"dash", struct {
			Secret int `json:"-" validate:"min=1"`
		}{}, "Secret"},
		{"no tag", struct {
			Plain int `validate:"min=1"`
		}{}, "Plain"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			field, _ := ValidationFieldAndMessage(Get().Validator.Struct(c.v))
			if field != c.want {
				t.Fatalf("field = %q, want %q", field, c.want)
			}
		})
	}
}

func TestValidationFieldAndMessage_Generic(t *testing.T) {
	field, msg := ValidationFieldAndMessage(errors.New("boom"))
	if field != "" || msg != "boom" {
		t.Fatalf("field=%q msg=%q", field, msg)
	}
	if f, m := ValidationFieldAndMessage(nil); f != "" || m != "" {
		t.Fatalf("nil: %q %q", f, m)
	}
}

func TestRegisterValidation_Message(t *testing.T) {
	err := RegisterValidation("lower_only", "{0} must be lowercase", func(fl FieldLevel) bool {
		s := fl.Field().String()
		return s == strings.ToLower(s)
	})
	if err != nil {
		t.Fatal(err)
	}

	type s struct {
		Handle string `json:"handle" validate:"lower_only"`
		Count  int    `json:"count" validate:"max=5"`
	}
	_, msg := ValidationFieldAndMessage(Get().Validator.Struct(s{Handle: "NatGeo"}))
	if msg != "handle must be lowercase" {
		t.Fatalf("msg = %q", msg)
	}
	_, msg = ValidationFieldAndMessage(Get().Validator.Struct(s{Handle: "natgeo", Count: 6}))
	if msg != "count must be at most 5" {
		t.Fatalf("msg = %q", msg)
	}
}
