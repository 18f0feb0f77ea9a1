package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mcoot/rafflegrid/internal/model"
)

const (
	alice model.Identity = "00000000-0000-4000-8000-00000000000a"
	bob   model.Identity = "00000000-0000-4000-8000-00000000000b"
)

var now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func held(number model.SlotNumber, by model.Identity, expiry time.Time) model.Slot {
	return model.Slot{Number: number, State: model.SlotStateHeld, Holder: by, HoldExpiry: &expiry}
}

func TestAcquireFilter(t *testing.T) {
	filter := AcquireFilter("07", alice, now)

	tests := []struct {
		name     string
		slot     model.Slot
		expected bool
	}{
		{"free", model.Slot{Number: "07", State: model.SlotStateFree}, true},
		{"own hold", held("07", alice, now.Add(time.Minute)), true},
		{"other live hold", held("07", bob, now.Add(time.Minute)), false},
		{"other hold lapsing now", held("07", bob, now), true},
		{"other lapsed hold", held("07", bob, now.Add(-time.Second)), true},
		{"reserved", model.Slot{Number: "07", State: model.SlotStateReserved}, false},
		{"paid", model.Slot{Number: "07", State: model.SlotStatePaid}, false},
		{"different number", model.Slot{Number: "08", State: model.SlotStateFree}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, filter.Matches(&tt.slot))
		})
	}
}

func TestHeldByFilter(t *testing.T) {
	filter := HeldByFilter([]model.SlotNumber{"01", "02"}, alice)

	own := held("01", alice, now)
	assert.True(t, filter.Matches(&own), "expiry does not matter for the holder")

	other := held("02", bob, now.Add(time.Minute))
	assert.False(t, filter.Matches(&other))

	outside := held("03", alice, now.Add(time.Minute))
	assert.False(t, filter.Matches(&outside))

	reserved := model.Slot{Number: "01", State: model.SlotStateReserved}
	assert.False(t, filter.Matches(&reserved))
}

func TestExpiredFilter(t *testing.T) {
	filter := ExpiredFilter([]model.SlotNumber{"01"}, now)

	lapsed := held("01", bob, now.Add(-time.Minute))
	assert.True(t, filter.Matches(&lapsed))

	live := held("01", bob, now.Add(time.Minute))
	assert.False(t, filter.Matches(&live))

	free := model.Slot{Number: "01", State: model.SlotStateFree}
	assert.False(t, filter.Matches(&free))
}

func TestNotFreeAndReservedFilters(t *testing.T) {
	free := model.Slot{Number: "01", State: model.SlotStateFree}
	heldSlot := held("02", alice, now)
	reserved := model.Slot{Number: "03", State: model.SlotStateReserved}
	paid := model.Slot{Number: "04", State: model.SlotStatePaid}

	notFree := NotFreeFilter()
	assert.False(t, notFree.Matches(&free))
	assert.True(t, notFree.Matches(&heldSlot))
	assert.True(t, notFree.Matches(&reserved))
	assert.True(t, notFree.Matches(&paid))

	onlyReserved := ReservedFilter([]model.SlotNumber{"03", "04"})
	assert.True(t, onlyReserved.Matches(&reserved))
	assert.False(t, onlyReserved.Matches(&paid))
}

func TestFilterIsEmpty(t *testing.T) {
	assert.True(t, HeldByFilter([]model.SlotNumber{}, alice).IsEmpty())
	assert.False(t, HeldByFilter(nil, alice).IsEmpty())
	assert.False(t, NotFreeFilter().IsEmpty())
}

func TestMutationsKeepInvariants(t *testing.T) {
	expiry := now.Add(5 * time.Minute)
	slot := model.Slot{Number: "05", State: model.SlotStateFree}

	slot = HoldMutation(alice, expiry, now).Apply(slot)
	assert.NoError(t, slot.CheckInvariants())
	assert.True(t, slot.IsHeldBy(alice))
	assert.Equal(t, expiry, *slot.HoldExpiry)

	slot = ReserveMutation("Ana", "3001234567", "203.0.113.9", now).Apply(slot)
	assert.NoError(t, slot.CheckInvariants())
	assert.Equal(t, model.SlotStateReserved, slot.State)
	assert.Empty(t, slot.Holder)
	assert.Nil(t, slot.HoldExpiry)
	assert.Equal(t, "Ana", slot.BuyerName)

	slot = PaidMutation(now.Add(time.Hour)).Apply(slot)
	assert.NoError(t, slot.CheckInvariants())
	assert.Equal(t, model.SlotStatePaid, slot.State)
	assert.Equal(t, "Ana", slot.BuyerName, "paid keeps the buyer")
	assert.Equal(t, "203.0.113.9", slot.ReservedFrom)
	assert.Equal(t, now.Add(time.Hour), slot.UpdatedAt)

	slot = FreeMutation(now).Apply(slot)
	assert.NoError(t, slot.CheckInvariants())
	assert.Equal(t, model.SlotStateFree, slot.State)
	assert.Empty(t, slot.BuyerName)
	assert.Empty(t, slot.BuyerContact)
	assert.Empty(t, slot.ReservedFrom)
}

func TestApplyCopiesHoldExpiry(t *testing.T) {
	expiry := now.Add(time.Minute)
	mutation := HoldMutation(alice, expiry, now)

	slot := mutation.Apply(model.Slot{Number: "01"})
	*mutation.HoldExpiry = now.Add(time.Hour)

	assert.Equal(t, expiry, *slot.HoldExpiry)
}
