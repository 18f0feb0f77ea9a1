package redis

import (
	"time"

	"github.com/mcoot/rafflegrid/internal/model"
)

// slotRecord is the JSON form of a slot stored under its key
type slotRecord struct {
	Number       string     `json:"number"`
	State        string     `json:"state"`
	Holder       string     `json:"holder,omitempty"`
	HoldExpiry   *time.Time `json:"hold_expiry,omitempty"`
	BuyerName    string     `json:"buyer_name,omitempty"`
	BuyerContact string     `json:"buyer_contact,omitempty"`
	ReservedFrom string     `json:"reserved_from,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// changeMessage is the JSON payload published on the change channel
type changeMessage struct {
	Op   string     `json:"op"`
	Slot slotRecord `json:"slot"`
}

func recordFromSlot(slot model.Slot) slotRecord {
	return slotRecord{
		Number:       string(slot.Number),
		State:        string(slot.State),
		Holder:       string(slot.Holder),
		HoldExpiry:   slot.HoldExpiry,
		BuyerName:    slot.BuyerName,
		BuyerContact: slot.BuyerContact,
		ReservedFrom: slot.ReservedFrom,
		UpdatedAt:    slot.UpdatedAt,
	}
}

func (r slotRecord) toSlot() model.Slot {
	return model.Slot{
		Number:       model.SlotNumber(r.Number),
		State:        model.SlotState(r.State),
		Holder:       model.Identity(r.Holder),
		HoldExpiry:   r.HoldExpiry,
		BuyerName:    r.BuyerName,
		BuyerContact: r.BuyerContact,
		ReservedFrom: r.ReservedFrom,
		UpdatedAt:    r.UpdatedAt,
	}
}
