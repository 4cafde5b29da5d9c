package testkit

import (
	"encoding/json"
	"testing"
)

var addFn = func(a, b int) int { return a + b }

func TestMustPanic(t *testing.T) {
	t.Parallel()
	MustPanic(t, func() { panic("boom") })
}

func TestMustNotPanic(t *testing.T) {
	t.Parallel()
	MustNotPanic(t, func() {})
}

func TestMustContain(t *testing.T) {
	t.Parallel()
	MustContain(t, "alpha beta gamma", "beta")
}

func TestMustEqual(t *testing.T) {
	t.Parallel()
	MustEqual(t, []string{"a", "b"}, []string{"a", "b"})
	MustEqual(t, map[string]int{"x": 1}, map[string]int{"x": 1})
}

func TestPayloadKeepsNumbers(t *testing.T) {
	t.Parallel()
	m := Payload(t, `{"id":"1","pk":3141592653589793238,"likesCount":12}`)
	n, ok := m["pk"].(json.Number)
	if !ok {
		t.Fatalf("pk decoded as %T, want json.Number", m["pk"])
	}
	if n.String() != "3141592653589793238" {
		t.Fatalf("pk = %s, precision lost", n)
	}
}

func TestSwapRestores(t *testing.T) {
	t.Run("swap", func(t *testing.T) {
		Serial(t)
		Swap(t, &addFn, func(a, b int) int { return 99 })
		if got := addFn(1, 2); got != 99 {
			t.Fatalf("swap did not take effect, got %d", got)
		}
	})
	if got := addFn(1, 2); got != 3 {
		t.Fatalf("swap did not restore original, got %d", got)
	}
}
