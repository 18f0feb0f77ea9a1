package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Number of slots per printed grid row
const gridColumns = 10

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format, w: os.Stdout}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case View:
		o.printView(v)
	case MineResult:
		o.printMine(v)
	case ToggleResult:
		o.printToggleResult(v)
	case ConfirmResult:
		o.printConfirmResult(v)
	case Stats:
		o.printStats(v)
	case ResetResult:
		o.printResetResult(v)
	case PaidResult:
		o.printPaidResult(v)
	case IdentityResult:
		fmt.Fprintf(o.w, "Identity: %s\n", v.Identity)
	case HealthResult:
		fmt.Fprintf(o.w, "Status: %s\n", v.Status)
		fmt.Fprintf(o.w, "Slots: %d\n", v.Slots)
		fmt.Fprintf(o.w, "Active clients: %d (%d streaming)\n", v.Coordinators, v.StreamClients)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Slot response type (matches API)
type Slot struct {
	Number       string     `json:"number"`
	State        string     `json:"state"`
	Holder       string     `json:"holder,omitempty"`
	HoldExpiry   *time.Time `json:"hold_expiry,omitempty"`
	BuyerName    string     `json:"buyer_name,omitempty"`
	BuyerContact string     `json:"buyer_contact,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Stats response type
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

// Confirmation response type
type Confirmation struct {
	Numbers      []string  `json:"numbers"`
	BuyerName    string    `json:"buyer_name"`
	BuyerContact string    `json:"buyer_contact"`
	ConfirmedAt  time.Time `json:"confirmed_at"`
}

// View response type
type View struct {
	Identity         string        `json:"identity"`
	Slots            []Slot        `json:"slots"`
	Selection        []string      `json:"selection"`
	Confirmed        bool          `json:"confirmed"`
	LastConfirmation *Confirmation `json:"last_confirmation,omitempty"`
	Stats            Stats         `json:"stats"`
}

// MineResult is the client's own held slots
type MineResult struct {
	Identity string `json:"identity"`
	Slots    []Slot `json:"slots"`
}

// ToggleResult response type
type ToggleResult struct {
	Number  string `json:"number"`
	Outcome string `json:"outcome"`
	View    View   `json:"view"`
}

// ConfirmResult response type
type ConfirmResult struct {
	Confirmation *Confirmation `json:"confirmation"`
	View         View          `json:"view"`
}

// ResetResult response type
type ResetResult struct {
	Released       []string `json:"released"`
	ReloadRequired bool     `json:"reload_required"`
}

// PaidResult response type
type PaidResult struct {
	Paid    []string `json:"paid"`
	Skipped []string `json:"skipped"`
}

// IdentityResult response type
type IdentityResult struct {
	Identity string `json:"identity"`
}

// HealthResult response type
type HealthResult struct {
	Status        string `json:"status"`
	Slots         int    `json:"slots"`
	Coordinators  int    `json:"coordinators"`
	StreamClients int    `json:"stream_clients"`
}

// slotSymbol is how a slot is drawn in the grid, from this client's view
func slotSymbol(s Slot, identity string) string {
	switch s.State {
	case "held":
		if s.Holder == identity {
			return "*"
		}
		return "~"
	case "reserved":
		return "R"
	case "paid":
		return "$"
	default:
		return " "
	}
}

func (o *Output) printView(v View) {
	o.printGrid(v.Slots, v.Identity)
	fmt.Fprintln(o.w, "Legend: * yours  ~ held  R reserved  $ paid")
	fmt.Fprintln(o.w)
	o.printStats(v.Stats)

	if len(v.Selection) > 0 {
		fmt.Fprintf(o.w, "Selected: %s\n", strings.Join(v.Selection, ", "))
	}
	if v.LastConfirmation != nil {
		fmt.Fprintf(o.w, "Last confirmed: %s (%s)\n",
			strings.Join(v.LastConfirmation.Numbers, ", "), v.LastConfirmation.BuyerName)
	}
}

func (o *Output) printGrid(slots []Slot, identity string) {
	for i, s := range slots {
		fmt.Fprintf(o.w, "[%s%s]", s.Number, slotSymbol(s, identity))
		if (i+1)%gridColumns == 0 || i == len(slots)-1 {
			fmt.Fprintln(o.w)
		} else {
			fmt.Fprint(o.w, " ")
		}
	}
}

func (o *Output) printMine(m MineResult) {
	if len(m.Slots) == 0 {
		fmt.Fprintln(o.w, "You hold no numbers")
		return
	}
	fmt.Fprintf(o.w, "Held by you (%d):\n", len(m.Slots))
	for _, s := range m.Slots {
		if s.HoldExpiry != nil {
			fmt.Fprintf(o.w, "  %s until %s\n", s.Number, s.HoldExpiry.Local().Format("15:04:05"))
		} else {
			fmt.Fprintf(o.w, "  %s\n", s.Number)
		}
	}
}

func (o *Output) printToggleResult(t ToggleResult) {
	switch t.Outcome {
	case "acquired":
		fmt.Fprintf(o.w, "Holding %s\n", t.Number)
	case "released":
		fmt.Fprintf(o.w, "Released %s\n", t.Number)
	default:
		fmt.Fprintf(o.w, "%s: %s\n", t.Number, t.Outcome)
	}
	if len(t.View.Selection) > 0 {
		fmt.Fprintf(o.w, "Selected: %s\n", strings.Join(t.View.Selection, ", "))
	}
}

func (o *Output) printConfirmResult(c ConfirmResult) {
	if c.Confirmation == nil {
		return
	}
	fmt.Fprintf(o.w, "Reserved: %s\n", strings.Join(c.Confirmation.Numbers, ", "))
	fmt.Fprintf(o.w, "Buyer: %s (%s)\n", c.Confirmation.BuyerName, c.Confirmation.BuyerContact)
}

func (o *Output) printStats(s Stats) {
	fmt.Fprintf(o.w, "Total: %d\n", s.Total)
	fmt.Fprintf(o.w, "Free: %d (%.0f%%)\n", s.Free, s.FreePercent)
	fmt.Fprintf(o.w, "Held: %d\n", s.Held)
	fmt.Fprintf(o.w, "Reserved: %d (%.0f%%)\n", s.Reserved, s.ReservedPercent)
	fmt.Fprintf(o.w, "Paid: %d (%.0f%%)\n", s.Paid, s.PaidPercent)
}

func (o *Output) printResetResult(r ResetResult) {
	fmt.Fprintf(o.w, "Freed %d slots\n", len(r.Released))
	if r.ReloadRequired {
		fmt.Fprintln(o.w, "Connected clients were told to reload")
	}
}

func (o *Output) printPaidResult(p PaidResult) {
	if len(p.Paid) > 0 {
		fmt.Fprintf(o.w, "Paid: %s\n", strings.Join(p.Paid, ", "))
	}
	if len(p.Skipped) > 0 {
		fmt.Fprintf(o.w, "Skipped (not reserved): %s\n", strings.Join(p.Skipped, ", "))
	}
}
