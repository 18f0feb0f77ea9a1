package storage

import (
	"time"

	"github.com/mcoot/rafflegrid/internal/model"
)

// Filter is a conjunction of row predicates. Zero-valued fields do not
// constrain the match.
type Filter struct {
	// Numbers restricts the update to these slots (nil means every slot)
	Numbers []model.SlotNumber

	// States requires the current state to be one of these
	States []model.SlotState

	// ExcludeState requires the current state to differ from this one
	ExcludeState model.SlotState

	// Holder requires the current holder to equal this identity
	Holder model.Identity

	// ExpiredAt requires the slot to be held with a hold expiry at or before this time
	ExpiredAt time.Time

	// AcquirableBy requires the slot to be free, or held by this identity,
	// or held with a hold that lapsed at or before AcquirableAt
	AcquirableBy model.Identity
	AcquirableAt time.Time
}

// Mutation holds the values written to every matched row. Every field is
// written, so a mutation describes the complete post-transition record,
// except that KeepBuyer leaves each row's buyer data as it is.
type Mutation struct {
	State        model.SlotState
	Holder       model.Identity
	HoldExpiry   *time.Time
	BuyerName    string
	BuyerContact string
	ReservedFrom string
	KeepBuyer    bool
	UpdatedAt    time.Time
}

// IsEmpty returns true if the filter names an explicit, empty number set
// and so can never match a row
func (f Filter) IsEmpty() bool {
	return f.Numbers != nil && len(f.Numbers) == 0
}

// Matches evaluates the filter against a slot row
func (f Filter) Matches(slot *model.Slot) bool {
	if f.Numbers != nil && !containsNumber(f.Numbers, slot.Number) {
		return false
	}
	if len(f.States) > 0 && !containsState(f.States, slot.State) {
		return false
	}
	if f.ExcludeState != "" && slot.State == f.ExcludeState {
		return false
	}
	if f.Holder != "" && slot.Holder != f.Holder {
		return false
	}
	if !f.ExpiredAt.IsZero() && !slot.IsHoldExpired(f.ExpiredAt) {
		return false
	}
	if f.AcquirableBy != "" {
		switch {
		case slot.State == model.SlotStateFree:
		case slot.State == model.SlotStateHeld && slot.Holder == f.AcquirableBy:
		case slot.IsHoldExpired(f.AcquirableAt):
		default:
			return false
		}
	}
	return true
}

// Apply returns the slot with the mutation written over its mutable fields
func (m Mutation) Apply(slot model.Slot) model.Slot {
	slot.State = m.State
	slot.Holder = m.Holder
	slot.HoldExpiry = copyTime(m.HoldExpiry)
	if !m.KeepBuyer {
		slot.BuyerName = m.BuyerName
		slot.BuyerContact = m.BuyerContact
		slot.ReservedFrom = m.ReservedFrom
	}
	slot.UpdatedAt = m.UpdatedAt
	return slot
}

// Filters for each transition in the slot state machine

// AcquireFilter matches a slot the identity may hold: free, already its own,
// or held by someone whose hold has lapsed
func AcquireFilter(number model.SlotNumber, id model.Identity, now time.Time) Filter {
	return Filter{
		Numbers:      []model.SlotNumber{number},
		AcquirableBy: id,
		AcquirableAt: now,
	}
}

// HeldByFilter matches the given slots only while they are held by the identity
func HeldByFilter(numbers []model.SlotNumber, id model.Identity) Filter {
	return Filter{
		Numbers: numbers,
		States:  []model.SlotState{model.SlotStateHeld},
		Holder:  id,
	}
}

// ExpiredFilter matches the given slots only while their hold has lapsed
func ExpiredFilter(numbers []model.SlotNumber, now time.Time) Filter {
	return Filter{
		Numbers:   numbers,
		States:    []model.SlotState{model.SlotStateHeld},
		ExpiredAt: now,
	}
}

// NotFreeFilter matches every slot that is not already free
func NotFreeFilter() Filter {
	return Filter{ExcludeState: model.SlotStateFree}
}

// ReservedFilter matches the given slots only while they are reserved
func ReservedFilter(numbers []model.SlotNumber) Filter {
	return Filter{
		Numbers: numbers,
		States:  []model.SlotState{model.SlotStateReserved},
	}
}

// Mutations for each transition

// HoldMutation marks a slot held by the identity until expiry
func HoldMutation(id model.Identity, expiry, now time.Time) Mutation {
	return Mutation{
		State:      model.SlotStateHeld,
		Holder:     id,
		HoldExpiry: &expiry,
		UpdatedAt:  now,
	}
}

// FreeMutation returns a slot to free and clears hold and buyer data
func FreeMutation(now time.Time) Mutation {
	return Mutation{
		State:     model.SlotStateFree,
		UpdatedAt: now,
	}
}

// ReserveMutation promotes a held slot to reserved for the buyer
func ReserveMutation(name, contact, address string, now time.Time) Mutation {
	return Mutation{
		State:        model.SlotStateReserved,
		BuyerName:    name,
		BuyerContact: contact,
		ReservedFrom: address,
		UpdatedAt:    now,
	}
}

// PaidMutation marks a reserved slot paid, keeping its buyer data
func PaidMutation(now time.Time) Mutation {
	return Mutation{
		State:     model.SlotStatePaid,
		KeepBuyer: true,
		UpdatedAt: now,
	}
}

func containsNumber(numbers []model.SlotNumber, n model.SlotNumber) bool {
	for _, candidate := range numbers {
		if candidate == n {
			return true
		}
	}
	return false
}

func containsState(states []model.SlotState, s model.SlotState) bool {
	for _, candidate := range states {
		if candidate == s {
			return true
		}
	}
	return false
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
