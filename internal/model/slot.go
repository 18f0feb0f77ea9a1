package model

import (
	"sort"
	"time"
)

// SlotNumber identifies a raffle slot (e.g. "07"). Numbers are immutable
// and unique across the grid.
type SlotNumber string

// SlotState represents where a slot is in its lifecycle
type SlotState string

const (
	SlotStateFree     SlotState = "free"     // Available to anyone
	SlotStateHeld     SlotState = "held"     // Temporarily claimed by one identity
	SlotStateReserved SlotState = "reserved" // Confirmed with buyer details
	SlotStatePaid     SlotState = "paid"     // Reservation settled
)

// Valid returns true if the state is one of the known slot states
func (s SlotState) Valid() bool {
	switch s {
	case SlotStateFree, SlotStateHeld, SlotStateReserved, SlotStatePaid:
		return true
	default:
		return false
	}
}

// IsTaken returns true for states that belong to a buyer
func (s SlotState) IsTaken() bool {
	return s == SlotStateReserved || s == SlotStatePaid
}

// Slot is one numbered raffle entry
type Slot struct {
	Number SlotNumber
	State  SlotState

	// Hold data, set only while State is held
	Holder     Identity
	HoldExpiry *time.Time

	// Buyer data, set only once reserved or paid
	BuyerName    string
	BuyerContact string
	ReservedFrom string // best-effort public address of the confirming client

	UpdatedAt time.Time
}

// IsHeldBy returns true if the slot is currently held by the given identity
func (s *Slot) IsHeldBy(id Identity) bool {
	return s.State == SlotStateHeld && s.Holder == id
}

// IsHoldExpired returns true if the slot is held and its hold lapsed at or before now
func (s *Slot) IsHoldExpired(now time.Time) bool {
	if s.State != SlotStateHeld || s.HoldExpiry == nil {
		return false
	}
	return !s.HoldExpiry.After(now)
}

// Freed returns a copy of the slot reverted to free with its hold cleared.
// Buyer data is left untouched since only held slots are freed this way.
func (s Slot) Freed() Slot {
	s.State = SlotStateFree
	s.Holder = ""
	s.HoldExpiry = nil
	return s
}

// CheckInvariants reports the first broken slot invariant, or nil
func (s *Slot) CheckInvariants() error {
	if !s.State.Valid() {
		return &InvariantError{Number: s.Number, Reason: "unknown state " + string(s.State)}
	}
	held := s.State == SlotStateHeld
	if held != (s.Holder != "") {
		return &InvariantError{Number: s.Number, Reason: "holder must be set exactly when held"}
	}
	if held != (s.HoldExpiry != nil) {
		return &InvariantError{Number: s.Number, Reason: "hold expiry must be set exactly when held"}
	}
	return nil
}

// SortSlots orders slots by number. Numbers are zero-padded to a common
// width so lexical order matches numeric order.
func SortSlots(slots []Slot) {
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Number < slots[j].Number
	})
}
