package factory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/rafflegrid/internal/model"
	"github.com/mcoot/rafflegrid/internal/services/reservation"
	"github.com/mcoot/rafflegrid/internal/storage"
	redisstorage "github.com/mcoot/rafflegrid/internal/storage/redis"
	"github.com/mcoot/rafflegrid/internal/storage/sqlite"
	"github.com/mcoot/rafflegrid/internal/testutil"
)

type IntegrationSuite struct {
	suite.Suite
	newStorage func(t *testing.T) storage.Storage
	app        *TestApp
	ctx        context.Context
}

func TestIntegrationMemory(t *testing.T) {
	suite.Run(t, &IntegrationSuite{})
}

func TestIntegrationRedis(t *testing.T) {
	suite.Run(t, &IntegrationSuite{newStorage: func(t *testing.T) storage.Storage {
		mini := miniredis.RunT(t)
		client := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
		return redisstorage.NewWithClient(client, redisstorage.DefaultConfig(), testutil.NopLogger())
	}})
}

func TestIntegrationSQLite(t *testing.T) {
	suite.Run(t, &IntegrationSuite{newStorage: func(t *testing.T) storage.Storage {
		store, err := sqlite.Open(filepath.Join(t.TempDir(), "grid.db"), testutil.NopLogger())
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		return store
	}})
}

func (s *IntegrationSuite) SetupTest() {
	cfg := Config{HoldDuration: time.Minute}
	if s.newStorage == nil {
		s.app = NewTestApp(cfg)
	} else {
		s.app = NewTestAppWithStorage(s.newStorage(s.T()), cfg)
	}
	s.ctx = context.Background()

	inserted, err := s.app.Seed(s.ctx, 4)
	s.Require().NoError(err)
	s.Equal(4, inserted)
}

func (s *IntegrationSuite) TearDownTest() {
	s.NoError(s.app.Close())
}

func (s *IntegrationSuite) client() *reservation.Coordinator {
	c, err := s.app.Registry.Get(s.ctx, s.app.IdentityService.Issue())
	s.Require().NoError(err)
	return c
}

func (s *IntegrationSuite) eventuallyState(c *reservation.Coordinator, number model.SlotNumber, state model.SlotState) {
	s.Eventually(func() bool {
		for _, slot := range c.Snapshot().Slots {
			if slot.Number == number {
				return slot.State == state
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "slot %s never became %s", number, state)
}

// Test: two clients race for slots, one confirms, the operator settles and resets
func (s *IntegrationSuite) TestCompleteRaffleFlow() {
	alice := s.client()
	bob := s.client()
	s.NotEqual(alice.Identity(), bob.Identity())

	// Step 1: Alice holds two slots
	outcome, err := alice.Toggle(s.ctx, "01")
	s.Require().NoError(err)
	s.Equal(reservation.ToggleAcquired, outcome)
	_, err = alice.Toggle(s.ctx, "02")
	s.Require().NoError(err)

	// Step 2: Bob sees the hold pushed and cannot take it
	s.eventuallyState(bob, "02", model.SlotStateHeld)
	_, err = bob.Toggle(s.ctx, "02")
	s.Require().Error(err)
	s.True(errors.Is(err, model.ErrConflict))

	// Step 3: Alice confirms
	confirmation, err := alice.Confirm(s.ctx, " Alice ", "alice@example.com")
	s.Require().NoError(err)
	s.Equal([]model.SlotNumber{"01", "02"}, confirmation.Numbers)
	s.Equal("Alice", confirmation.BuyerName)
	s.Empty(alice.Snapshot().Selection)
	s.eventuallyState(bob, "01", model.SlotStateReserved)

	// Step 4: The operator marks one paid
	paid, err := s.app.Registry.MarkPaid(s.ctx, []model.SlotNumber{"01", "03"})
	s.Require().NoError(err)
	s.Equal([]model.SlotNumber{"01"}, paid.Paid)
	s.Equal([]model.SlotNumber{"03"}, paid.Skipped)
	s.eventuallyState(bob, "01", model.SlotStatePaid)

	system, err := s.app.Registry.System(s.ctx)
	s.Require().NoError(err)
	s.Require().NoError(system.Load(s.ctx))
	stats := system.Snapshot().Stats
	s.Equal(4, stats.Total)
	s.Equal(1, stats.Paid)
	s.Equal(1, stats.Reserved)
	s.Equal(2, stats.Free)

	// Step 5: Reset frees everything
	result, err := s.app.Registry.Reset(s.ctx, func(string) bool { return true })
	s.Require().NoError(err)
	s.True(result.ReloadRequired)
	s.ElementsMatch([]model.SlotNumber{"01", "02"}, result.Released)
	s.eventuallyState(bob, "01", model.SlotStateFree)
	s.eventuallyState(alice, "02", model.SlotStateFree)
}

// Test: a lapsed hold can be taken by another client
func (s *IntegrationSuite) TestLapsedHoldIsTakenOver() {
	alice := s.client()
	bob := s.client()

	_, err := alice.Toggle(s.ctx, "03")
	s.Require().NoError(err)

	s.app.MockClock.Advance(2 * time.Minute)

	outcome, err := bob.Toggle(s.ctx, "03")
	s.Require().NoError(err)
	s.Equal(reservation.ToggleAcquired, outcome)

	// Alice's stale selection is dropped once she reloads
	s.Require().NoError(alice.Load(s.ctx))
	s.NotContains(alice.Snapshot().Selection, model.SlotNumber("03"))

	slot, err := s.app.Storage.GetSlot(s.ctx, "03")
	s.Require().NoError(err)
	s.Equal(bob.Identity(), slot.Holder)
}

// Test: reseeding after a restart keeps reservations
func (s *IntegrationSuite) TestReseedKeepsReservations() {
	alice := s.client()
	_, err := alice.Toggle(s.ctx, "04")
	s.Require().NoError(err)
	_, err = alice.Confirm(s.ctx, "Alice", "0400 000 000")
	s.Require().NoError(err)

	inserted, err := s.app.Seed(s.ctx, 6)
	s.Require().NoError(err)
	s.Equal(2, inserted)

	slot, err := s.app.Storage.GetSlot(s.ctx, "04")
	s.Require().NoError(err)
	s.Equal(model.SlotStateReserved, slot.State)
}
