package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/dialtone/pkg/domain"
	"github.com/aretw0/dialtone/pkg/ports"
)

// Mask replaces the value of every masked variable.
const Mask = "***"

type piiMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks variables whose names
// match any of the patterns once a call has ended. Live calls keep their
// values because later nodes may still branch on them.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, callID string, s *domain.Session) error {
	if !s.Terminal || len(m.patterns) == 0 {
		return m.next.Save(ctx, callID, s)
	}

	// The engine still holds s; mask a copy.
	masked := s.Clone()
	for k := range masked.Variables {
		if m.sensitive(k) {
			masked.Variables[k] = Mask
		}
	}
	return m.next.Save(ctx, callID, masked)
}

func (m *piiMiddleware) sensitive(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

func (m *piiMiddleware) Load(ctx context.Context, callID string) (*domain.Session, error) {
	return m.next.Load(ctx, callID)
}

func (m *piiMiddleware) Delete(ctx context.Context, callID string) error {
	return m.next.Delete(ctx, callID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
