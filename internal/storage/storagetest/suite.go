// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/rafflegrid/internal/model"
	"github.com/mcoot/rafflegrid/internal/storage"
)

// Suite exercises a storage backend. Backends run it with a constructor
// that returns a fresh, empty store per test.
type Suite struct {
	suite.Suite

	NewStorage func(t *testing.T) storage.Storage

	storage storage.Storage
	ctx     context.Context
	now     time.Time
}

func (s *Suite) SetupTest() {
	s.storage = s.NewStorage(s.T())
	s.ctx = context.Background()
	s.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	inserted, err := s.storage.SeedSlots(s.ctx, []model.Slot{
		{Number: "02", State: model.SlotStateFree},
		{Number: "01", State: model.SlotStateFree},
		{Number: "03", State: model.SlotStateFree},
	})
	s.Require().NoError(err)
	s.Require().Equal(3, inserted)
}

func (s *Suite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
}

func (s *Suite) get(number model.SlotNumber) *model.Slot {
	slot, err := s.storage.GetSlot(s.ctx, number)
	s.Require().NoError(err)
	return slot
}

func (s *Suite) hold(number model.SlotNumber, id model.Identity, expiry time.Time) {
	updated, err := s.storage.UpdateSlots(s.ctx, storage.AcquireFilter(number, id, s.now), storage.HoldMutation(id, expiry, s.now))
	s.Require().NoError(err)
	s.Require().Len(updated, 1)
}

func numbersOf(slots []model.Slot) []model.SlotNumber {
	numbers := make([]model.SlotNumber, len(slots))
	for i, slot := range slots {
		numbers[i] = slot.Number
	}
	return numbers
}

// Seed and read tests

func (s *Suite) TestListSlotsOrderedByNumber() {
	slots, err := s.storage.ListSlots(s.ctx)
	s.Require().NoError(err)
	s.Equal([]model.SlotNumber{"01", "02", "03"}, numbersOf(slots))
}

func (s *Suite) TestSeedSkipsExistingSlots() {
	s.hold("01", "alice", s.now.Add(5*time.Minute))

	inserted, err := s.storage.SeedSlots(s.ctx, []model.Slot{
		{Number: "01", State: model.SlotStateFree},
		{Number: "04", State: model.SlotStateFree},
	})
	s.Require().NoError(err)
	s.Equal(1, inserted)

	// Existing row is untouched
	s.Equal(model.SlotStateHeld, s.get("01").State)
	s.Equal(model.SlotStateFree, s.get("04").State)
}

func (s *Suite) TestGetSlotNotFound() {
	_, err := s.storage.GetSlot(s.ctx, "99")
	s.ErrorIs(err, model.ErrSlotNotFound)
}

// Acquire tests

func (s *Suite) TestAcquireFreeSlot() {
	expiry := s.now.Add(5 * time.Minute)
	updated, err := s.storage.UpdateSlots(s.ctx, storage.AcquireFilter("01", "alice", s.now), storage.HoldMutation("alice", expiry, s.now))
	s.Require().NoError(err)
	s.Require().Len(updated, 1)
	s.Equal(model.SlotStateHeld, updated[0].State)

	slot := s.get("01")
	s.Equal(model.SlotStateHeld, slot.State)
	s.Equal(model.Identity("alice"), slot.Holder)
	s.Require().NotNil(slot.HoldExpiry)
	s.True(expiry.Equal(*slot.HoldExpiry))
	s.NoError(slot.CheckInvariants())
}

func (s *Suite) TestAcquireHeldByAnotherMatchesNothing() {
	s.hold("01", "alice", s.now.Add(5*time.Minute))

	updated, err := s.storage.UpdateSlots(s.ctx, storage.AcquireFilter("01", "bob", s.now), storage.HoldMutation("bob", s.now.Add(5*time.Minute), s.now))
	s.Require().NoError(err)
	s.Empty(updated)
	s.Equal(model.Identity("alice"), s.get("01").Holder)
}

func (s *Suite) TestAcquireLapsedHoldSucceeds() {
	s.hold("01", "alice", s.now.Add(-time.Minute))

	updated, err := s.storage.UpdateSlots(s.ctx, storage.AcquireFilter("01", "bob", s.now), storage.HoldMutation("bob", s.now.Add(5*time.Minute), s.now))
	s.Require().NoError(err)
	s.Len(updated, 1)
	s.Equal(model.Identity("bob"), s.get("01").Holder)
}

func (s *Suite) TestAcquireOwnHoldRefreshesExpiry() {
	s.hold("01", "alice", s.now.Add(time.Minute))
	s.hold("01", "alice", s.now.Add(5*time.Minute))

	slot := s.get("01")
	s.Require().NotNil(slot.HoldExpiry)
	s.True(s.now.Add(5 * time.Minute).Equal(*slot.HoldExpiry))
}

// Release tests

func (s *Suite) TestReleaseRequiresHolder() {
	s.hold("01", "alice", s.now.Add(5*time.Minute))

	updated, err := s.storage.UpdateSlots(s.ctx, storage.HeldByFilter([]model.SlotNumber{"01"}, "bob"), storage.FreeMutation(s.now))
	s.Require().NoError(err)
	s.Empty(updated)

	updated, err = s.storage.UpdateSlots(s.ctx, storage.HeldByFilter([]model.SlotNumber{"01"}, "alice"), storage.FreeMutation(s.now))
	s.Require().NoError(err)
	s.Require().Len(updated, 1)

	slot := s.get("01")
	s.Equal(model.SlotStateFree, slot.State)
	s.Empty(slot.Holder)
	s.Nil(slot.HoldExpiry)
}

// Confirm tests

func (s *Suite) TestConfirmOnlyPromotesOwnHeldSlots() {
	s.hold("01", "alice", s.now.Add(5*time.Minute))
	s.hold("02", "bob", s.now.Add(5*time.Minute))
	s.hold("03", "alice", s.now.Add(5*time.Minute))

	updated, err := s.storage.UpdateSlots(s.ctx,
		storage.HeldByFilter([]model.SlotNumber{"01", "02", "03"}, "alice"),
		storage.ReserveMutation("Ana", "3001234567", "203.0.113.7", s.now))
	s.Require().NoError(err)
	s.ElementsMatch([]model.SlotNumber{"01", "03"}, numbersOf(updated))

	reserved := s.get("01")
	s.Equal(model.SlotStateReserved, reserved.State)
	s.Equal("Ana", reserved.BuyerName)
	s.Equal("3001234567", reserved.BuyerContact)
	s.Equal("203.0.113.7", reserved.ReservedFrom)
	s.Empty(reserved.Holder)
	s.Nil(reserved.HoldExpiry)
	s.NoError(reserved.CheckInvariants())

	stolen := s.get("02")
	s.Equal(model.SlotStateHeld, stolen.State)
	s.Equal(model.Identity("bob"), stolen.Holder)
}

func (s *Suite) TestEmptyNumberSetMatchesNothing() {
	updated, err := s.storage.UpdateSlots(s.ctx, storage.HeldByFilter([]model.SlotNumber{}, "alice"), storage.FreeMutation(s.now))
	s.Require().NoError(err)
	s.Empty(updated)
}

// Expiry tests

func (s *Suite) TestExpiredFilterSkipsLiveHolds() {
	s.hold("01", "alice", s.now.Add(-time.Minute))
	s.hold("02", "bob", s.now.Add(time.Minute))

	updated, err := s.storage.UpdateSlots(s.ctx, storage.ExpiredFilter([]model.SlotNumber{"01", "02"}, s.now), storage.FreeMutation(s.now))
	s.Require().NoError(err)
	s.Equal([]model.SlotNumber{"01"}, numbersOf(updated))
	s.Equal(model.SlotStateHeld, s.get("02").State)
}

// Reset and paid tests

func (s *Suite) TestResetFreesEveryTakenSlot() {
	s.hold("01", "alice", s.now.Add(5*time.Minute))
	_, err := s.storage.UpdateSlots(s.ctx, storage.HeldByFilter([]model.SlotNumber{"01"}, "alice"), storage.ReserveMutation("Ana", "300", "", s.now))
	s.Require().NoError(err)
	s.hold("02", "bob", s.now.Add(5*time.Minute))

	updated, err := s.storage.UpdateSlots(s.ctx, storage.NotFreeFilter(), storage.FreeMutation(s.now))
	s.Require().NoError(err)
	s.ElementsMatch([]model.SlotNumber{"01", "02"}, numbersOf(updated))

	slots, err := s.storage.ListSlots(s.ctx)
	s.Require().NoError(err)
	for _, slot := range slots {
		s.Equal(model.SlotStateFree, slot.State, "slot %s", slot.Number)
		s.Empty(slot.BuyerName)
		s.Empty(slot.Holder)
		s.Nil(slot.HoldExpiry)
	}
}

func (s *Suite) TestMarkPaidKeepsBuyer() {
	s.hold("01", "alice", s.now.Add(5*time.Minute))
	_, err := s.storage.UpdateSlots(s.ctx, storage.HeldByFilter([]model.SlotNumber{"01"}, "alice"), storage.ReserveMutation("Ana", "300", "", s.now))
	s.Require().NoError(err)

	updated, err := s.storage.UpdateSlots(s.ctx, storage.ReservedFilter([]model.SlotNumber{"01", "02"}), storage.PaidMutation(s.now))
	s.Require().NoError(err)
	s.Equal([]model.SlotNumber{"01"}, numbersOf(updated))

	slot := s.get("01")
	s.Equal(model.SlotStatePaid, slot.State)
	s.Equal("Ana", slot.BuyerName)
	s.Equal("300", slot.BuyerContact)
}

// Subscription tests

func (s *Suite) TestSubscribeReceivesUpdates() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	events, err := s.storage.Subscribe(ctx)
	s.Require().NoError(err)

	s.hold("02", "alice", s.now.Add(5*time.Minute))

	select {
	case evt, ok := <-events:
		s.Require().True(ok)
		s.Equal(model.ChangeUpdate, evt.Op)
		s.Equal(model.SlotNumber("02"), evt.Slot.Number)
		s.Equal(model.SlotStateHeld, evt.Slot.State)
		s.Equal(model.Identity("alice"), evt.Slot.Holder)
	case <-time.After(2 * time.Second):
		s.Fail("timed out waiting for change event")
	}
}

func (s *Suite) TestSubscriptionClosesWithContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	events, err := s.storage.Subscribe(ctx)
	s.Require().NoError(err)

	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			s.Fail("subscription channel was not closed")
			return
		}
	}
}
