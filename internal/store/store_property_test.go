package store

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/collab-code-share/backend/internal/model"
)

// For any language/code pair, a created session can be read back
// immediately with identical fields, and the registry assigns each
// session a distinct id.
func TestSessionRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	s := New(DefaultTTL)
	defer s.Close()

	seen := make(map[string]bool)

	properties.Property("create then get returns identical session", prop.ForAll(
		func(language, code string) bool {
			created, err := s.Create(model.CreateSessionRequest{Language: language, Code: code})
			if err != nil {
				return false
			}
			if seen[created.ID] {
				return false
			}
			seen[created.ID] = true

			got, err := s.Get(created.ID)
			if err != nil {
				return false
			}
			wantLanguage := language
			if wantLanguage == "" {
				wantLanguage = model.DefaultLanguage
			}
			return got.ID == created.ID && got.Language == wantLanguage && got.Code == code
		},
		gen.AlphaString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

// For any sequence of code updates to one session, the stored buffer
// always equals the most recent write (last write wins).
func TestLastWriteWinsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("stored code equals the final update", prop.ForAll(
		func(codes []string) bool {
			s := New(DefaultTTL)
			defer s.Close()

			created, err := s.Create(model.CreateSessionRequest{})
			if err != nil {
				return false
			}

			want := created.Code
			for i := range codes {
				code := codes[i]
				if _, err := s.Update(created.ID, model.SessionPatch{Code: &code}); err != nil {
					return false
				}
				want = code
			}

			got, err := s.Get(created.ID)
			return err == nil && got.Code == want
		},
		gen.SliceOf(gen.AnyString()),
	))

	properties.TestingRun(t)
}
