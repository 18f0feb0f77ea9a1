package idgen

import (
	"github.com/google/uuid"

	"github.com/mcoot/rafflegrid/internal/model"
)

// Generator creates new client identities and can be mocked for testing
type Generator interface {
	NewIdentity() model.Identity
}

// UUIDGenerator issues random (version 4) UUID identities
type UUIDGenerator struct{}

// New creates a new UUIDGenerator
func New() *UUIDGenerator {
	return &UUIDGenerator{}
}

// NewIdentity returns a fresh random identity
func (g *UUIDGenerator) NewIdentity() model.Identity {
	return model.Identity(uuid.NewString())
}
