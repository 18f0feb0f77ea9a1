package factory

import (
	"time"

	"github.com/mcoot/rafflegrid/internal/dependencies/mocks"
	"github.com/mcoot/rafflegrid/internal/storage"
	"github.com/mcoot/rafflegrid/internal/storage/memory"
	"github.com/mcoot/rafflegrid/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock *mocks.MockClock
	MockIDGen *mocks.MockIDGen
}

// NewTestApp creates an App on in-memory storage with mocked dependencies
func NewTestApp(cfg Config) *TestApp {
	return NewTestAppWithStorage(memory.New(testutil.NopLogger()), cfg)
}

// NewTestAppWithStorage creates an App on the given storage with mocked
// dependencies. The address lookup is disabled unless cfg sets one.
func NewTestAppWithStorage(store storage.Storage, cfg Config) *TestApp {
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockIDGen := mocks.NewMockIDGen()

	logger := cfg.Logger
	if logger == nil {
		logger = testutil.NopLogger()
	}

	app := newWithDependencies(store, mockClock, mockIDGen, cfg, logger)

	return &TestApp{
		App:       app,
		MockClock: mockClock,
		MockIDGen: mockIDGen,
	}
}
