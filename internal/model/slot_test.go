package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckInvariants(t *testing.T) {
	expiry := time.Date(2024, 1, 1, 12, 5, 0, 0, time.UTC)

	tests := []struct {
		name  string
		slot  Slot
		valid bool
	}{
		{"free", Slot{Number: "01", State: SlotStateFree}, true},
		{"held", Slot{Number: "01", State: SlotStateHeld, Holder: "a", HoldExpiry: &expiry}, true},
		{"held without holder", Slot{Number: "01", State: SlotStateHeld, HoldExpiry: &expiry}, false},
		{"held without expiry", Slot{Number: "01", State: SlotStateHeld, Holder: "a"}, false},
		{"free with holder", Slot{Number: "01", State: SlotStateFree, Holder: "a"}, false},
		{"reserved with expiry", Slot{Number: "01", State: SlotStateReserved, HoldExpiry: &expiry}, false},
		{"unknown state", Slot{Number: "01", State: "lost"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.slot.CheckInvariants()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvariantViolation)
			}
		})
	}
}

func TestIsHoldExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	expiry := now

	slot := Slot{State: SlotStateHeld, Holder: "a", HoldExpiry: &expiry}
	assert.True(t, slot.IsHoldExpired(now), "a hold lapses at its expiry")
	assert.False(t, slot.IsHoldExpired(now.Add(-time.Nanosecond)))

	reserved := Slot{State: SlotStateReserved}
	assert.False(t, reserved.IsHoldExpired(now))
}

func TestSortSlots(t *testing.T) {
	slots := []Slot{{Number: "10"}, {Number: "02"}, {Number: "00"}}
	SortSlots(slots)
	assert.Equal(t, []SlotNumber{"00", "02", "10"}, []SlotNumber{slots[0].Number, slots[1].Number, slots[2].Number})
}

func TestErrorsMatchSentinels(t *testing.T) {
	assert.ErrorIs(t, &ConflictError{Number: "01"}, ErrConflict)
	assert.ErrorIs(t, &ValidationError{Field: "name"}, ErrValidation)
	assert.ErrorIs(t, &PartialConfirmError{}, ErrPartialConfirm)

	wrapped := Unavailable(assert.AnError)
	assert.ErrorIs(t, wrapped, ErrStoreUnavailable)
	assert.ErrorIs(t, wrapped, assert.AnError)
	assert.Same(t, wrapped, Unavailable(wrapped))
	assert.NoError(t, Unavailable(nil))
}

func TestConflictErrorMessage(t *testing.T) {
	assert.Equal(t, "slot 07 is already reserved", (&ConflictError{Number: "07", State: SlotStateReserved}).Error())
	assert.Equal(t, "slot 07 is being held by another client", (&ConflictError{Number: "07", State: SlotStateHeld}).Error())
}
