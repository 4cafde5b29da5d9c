// Package classify decides which record kind a raw scraper payload is
package classify

import (
	"sort"

	"socialsync/internal/core/record"
	perr "socialsync/internal/platform/errors"
)

// Rule matches a kind when every key is present with a non-null value
type Rule struct {
	Kind record.Kind
	Keys []string
}

// Rules are evaluated in order; the first match wins
var Rules = []Rule{
	{Kind: record.KindProfile, Keys: []string{"followersCount"}},
	{Kind: record.KindPost, Keys: []string{"shortCode"}},
	{Kind: record.KindComment, Keys: []string{"postId", "text"}},
}

// Classify returns the kind of payload
func Classify(payload map[string]any) (record.Kind, error) {
	for _, r := range Rules {
		if r.matches(payload) {
			return r.Kind, nil
		}
	}
	return "", perr.Newf(perr.ErrorCodeUnclassifiable, "payload matches no record kind (keys: %v)", keys(payload))
}

// ClassifyHint is Classify with a fallback kind used only when no rule matches.
// An empty hint behaves like Classify
func ClassifyHint(payload map[string]any, hint record.Kind) (record.Kind, error) {
	k, err := Classify(payload)
	if err == nil || hint == "" {
		return k, err
	}
	if _, herr := record.ParseKind(string(hint)); herr != nil {
		return "", herr
	}
	return hint, nil
}

func (r Rule) matches(payload map[string]any) bool {
	for _, k := range r.Keys {
		if v, ok := payload[k]; !ok || v == nil {
			return false
		}
	}
	return len(r.Keys) > 0
}

// keys lists at most a handful of payload keys for the error message
func keys(payload map[string]any) []string {
	out := make([]string, 0, len(payload))
	for k := range payload {
		out = append(out, k)
	}
	sort.Strings(out)
	if len(out) > 8 {
		out = append(out[:8], "...")
	}
	return out
}
