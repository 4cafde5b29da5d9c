package classify

import (
	"testing"

	"socialsync/internal/core/record"
	perr "socialsync/internal/platform/errors"
	"socialsync/internal/platform/testkit"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want record.Kind
	}{
		{"profile", `{"id":"1","username":"natgeo","followersCount":10}`, record.KindProfile},
		{"post", `{"shortCode":"Cx1","likesCount":3}`, record.KindPost},
		{"comment", `{"id":"9","postId":"Cx1","text":"nice"}`, record.KindComment},
		{"profile wins over post", `{"followersCount":1,"shortCode":"Cx1"}`, record.KindProfile},
		{"post wins over comment", `{"shortCode":"Cx1","postId":"Cx1","text":"hi"}`, record.KindPost},
		{"zero counts still match", `{"followersCount":0}`, record.KindProfile},
		{"empty text still matches", `{"postId":"Cx1","text":""}`, record.KindComment},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Classify(testkit.Payload(t, tc.src))
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestClassify_Unclassifiable(t *testing.T) {
	tests := []string{
		`{}`,
		`{"followersCount":null}`,
		`{"postId":"Cx1"}`,
		`{"text":"orphan"}`,
		`{"shortcode":"Cx1"}`,
	}
	for _, src := range tests {
		_, err := Classify(testkit.Payload(t, src))
		if !perr.IsCode(err, perr.ErrorCodeUnclassifiable) {
			t.Errorf("%s: want unclassifiable, got %v", src, err)
		}
	}
}

func TestClassifyHint(t *testing.T) {
	p := testkit.Payload(t, `{"id":"1","username":"natgeo"}`)
	got, err := ClassifyHint(p, record.KindProfile)
	if err != nil || got != record.KindProfile {
		t.Fatalf("got %s %v", got, err)
	}

	// a hint never overrides a positive match
	p = testkit.Payload(t, `{"shortCode":"Cx1"}`)
	got, _ = ClassifyHint(p, record.KindComment)
	if got != record.KindPost {
		t.Fatalf("hint overrode rule: %s", got)
	}

	if _, err := ClassifyHint(testkit.Payload(t, `{}`), ""); !perr.IsCode(err, perr.ErrorCodeUnclassifiable) {
		t.Fatalf("empty hint: %v", err)
	}
	if _, err := ClassifyHint(testkit.Payload(t, `{}`), "story"); !perr.IsCode(err, perr.ErrorCodeUnknownKind) {
		t.Fatalf("bad hint: %v", err)
	}
}
