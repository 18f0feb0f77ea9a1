package mocks

import (
	"fmt"
	"sync"

	"github.com/mcoot/rafflegrid/internal/dependencies/idgen"
	"github.com/mcoot/rafflegrid/internal/model"
)

// MockIDGen is a mock implementation of idgen.Generator for testing
type MockIDGen struct {
	mu sync.Mutex

	// Results is a queue of identities to return from NewIdentity
	Results []model.Identity
	index   int
	issued  int
}

// Ensure MockIDGen implements Generator
var _ idgen.Generator = (*MockIDGen)(nil)

// NewMockIDGen creates a new MockIDGen
func NewMockIDGen() *MockIDGen {
	return &MockIDGen{}
}

// NewIdentity returns the next queued identity. Once the queue is drained it
// falls back to sequential identities so callers never get an empty one.
func (g *MockIDGen) NewIdentity() model.Identity {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.issued++
	if g.index >= len(g.Results) {
		return model.Identity(fmt.Sprintf("00000000-0000-4000-8000-%012d", g.issued))
	}
	result := g.Results[g.index]
	g.index++
	return result
}

// Queue adds identities to the result queue
func (g *MockIDGen) Queue(ids ...model.Identity) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Results = append(g.Results, ids...)
}
