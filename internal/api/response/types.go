package response

import (
	"time"

	"github.com/mcoot/rafflegrid/internal/model"
	"github.com/mcoot/rafflegrid/internal/services/reservation"
)

// Slot represents a slot in API responses
type Slot struct {
	Number       string     `json:"number"`
	State        string     `json:"state"`
	Holder       string     `json:"holder,omitempty"`
	HoldExpiry   *time.Time `json:"hold_expiry,omitempty"`
	BuyerName    string     `json:"buyer_name,omitempty"`
	BuyerContact string     `json:"buyer_contact,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SlotFromModel converts a model.Slot. The audit address is never exposed.
func SlotFromModel(s model.Slot) Slot {
	return Slot{
		Number:       string(s.Number),
		State:        string(s.State),
		Holder:       string(s.Holder),
		HoldExpiry:   s.HoldExpiry,
		BuyerName:    s.BuyerName,
		BuyerContact: s.BuyerContact,
		UpdatedAt:    s.UpdatedAt,
	}
}

// Stats represents the grid progress summary
type Stats struct {
	Total           int     `json:"total"`
	Free            int     `json:"free"`
	Held            int     `json:"held"`
	Reserved        int     `json:"reserved"`
	Paid            int     `json:"paid"`
	FreePercent     float64 `json:"free_percent"`
	ReservedPercent float64 `json:"reserved_percent"`
	PaidPercent     float64 `json:"paid_percent"`
}

// StatsFromModel converts reservation.Stats
func StatsFromModel(s reservation.Stats) Stats {
	return Stats{
		Total:           s.Total,
		Free:            s.Free,
		Held:            s.Held,
		Reserved:        s.Reserved,
		Paid:            s.Paid,
		FreePercent:     s.FreePercent,
		ReservedPercent: s.ReservedPercent,
		PaidPercent:     s.PaidPercent,
	}
}

// Confirmation is the receipt of a confirmed reservation
type Confirmation struct {
	Numbers      []string  `json:"numbers"`
	BuyerName    string    `json:"buyer_name"`
	BuyerContact string    `json:"buyer_contact"`
	ConfirmedAt  time.Time `json:"confirmed_at"`
}

// ConfirmationFromModel converts a reservation.Confirmation
func ConfirmationFromModel(c *reservation.Confirmation) *Confirmation {
	if c == nil {
		return nil
	}
	return &Confirmation{
		Numbers:      Numbers(c.Numbers),
		BuyerName:    c.BuyerName,
		BuyerContact: c.BuyerContact,
		ConfirmedAt:  c.ConfirmedAt,
	}
}

// View is a client's view of the grid
type View struct {
	Identity         string        `json:"identity"`
	Slots            []Slot        `json:"slots"`
	Selection        []string      `json:"selection"`
	Confirmed        bool          `json:"confirmed"`
	LastConfirmation *Confirmation `json:"last_confirmation,omitempty"`
	Stats            Stats         `json:"stats"`
}

// ViewFromModel converts a reservation.View
func ViewFromModel(v reservation.View) View {
	slots := make([]Slot, len(v.Slots))
	for i, s := range v.Slots {
		slots[i] = SlotFromModel(s)
	}
	return View{
		Identity:         string(v.Identity),
		Slots:            slots,
		Selection:        Numbers(v.Selection),
		Confirmed:        v.Confirmed,
		LastConfirmation: ConfirmationFromModel(v.LastConfirmation),
		Stats:            StatsFromModel(v.Stats),
	}
}

// IdentityResponse is the response for issuing an identity
type IdentityResponse struct {
	Identity string `json:"identity"`
}

// ToggleResponse is the response for toggling a slot
type ToggleResponse struct {
	Number  string `json:"number"`
	Outcome string `json:"outcome"`
	View    View   `json:"view"`
}

// ConfirmResponse is the response for confirming a reservation
type ConfirmResponse struct {
	Confirmation *Confirmation `json:"confirmation"`
	View         View          `json:"view"`
}

// ResetResponse is the response for a bulk reset
type ResetResponse struct {
	Released       []string `json:"released"`
	ReloadRequired bool     `json:"reload_required"`
}

// ResetResponseFromModel converts a reservation.ResetResult
func ResetResponseFromModel(r *reservation.ResetResult) ResetResponse {
	return ResetResponse{
		Released:       Numbers(r.Released),
		ReloadRequired: r.ReloadRequired,
	}
}

// PaidResponse is the response for marking slots paid
type PaidResponse struct {
	Paid    []string `json:"paid"`
	Skipped []string `json:"skipped"`
}

// PaidResponseFromModel converts a reservation.PaidResult
func PaidResponseFromModel(r *reservation.PaidResult) PaidResponse {
	return PaidResponse{
		Paid:    Numbers(r.Paid),
		Skipped: Numbers(r.Skipped),
	}
}

// HealthResponse is the response for the health check
type HealthResponse struct {
	Status        string `json:"status"`
	Slots         int    `json:"slots"`
	Coordinators  int    `json:"coordinators"`
	StreamClients int    `json:"stream_clients"`
}

// Numbers converts slot numbers to strings, never returning nil
func Numbers(numbers []model.SlotNumber) []string {
	out := make([]string, len(numbers))
	for i, n := range numbers {
		out[i] = string(n)
	}
	return out
}
