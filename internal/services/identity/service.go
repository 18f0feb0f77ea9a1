// Package identity issues and validates anonymous client identities. An
// identity only correlates a client with its holds; it is not a credential.
package identity

import (
	"strings"

	"github.com/google/uuid"

	"github.com/mcoot/rafflegrid/internal/dependencies/idgen"
	"github.com/mcoot/rafflegrid/internal/model"
)

// Service issues new client identities
type Service struct {
	gen idgen.Generator
}

// New creates a new identity Service
func New(gen idgen.Generator) *Service {
	return &Service{gen: gen}
}

// Issue returns a fresh identity
func (s *Service) Issue() model.Identity {
	return s.gen.NewIdentity()
}

// Parse validates a presented identity and returns it in canonical form
func Parse(raw string) (model.Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", model.ErrInvalidIdentity
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", model.ErrInvalidIdentity
	}
	return model.Identity(id.String()), nil
}
