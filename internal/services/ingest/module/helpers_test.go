package module

import (
	"testing"

	"socialsync/internal/platform/testkit"
	"socialsync/internal/services/ingest/domain"
)

func runInput(t *testing.T, src ...string) domain.RunInput {
	t.Helper()
	in := domain.RunInput{}
	for _, s := range src {
		in.Items = append(in.Items, testkit.Payload(t, s))
	}
	return in
}
