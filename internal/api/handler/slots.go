package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/rafflegrid/internal/api/middleware"
	"github.com/mcoot/rafflegrid/internal/api/response"
	"github.com/mcoot/rafflegrid/internal/model"
	"github.com/mcoot/rafflegrid/internal/services/reservation"
)

// SlotHandler handles slot grid endpoints
type SlotHandler struct {
	registry *reservation.Registry
}

// NewSlotHandler creates a new slot handler
func NewSlotHandler(registry *reservation.Registry) *SlotHandler {
	return &SlotHandler{
		registry: registry,
	}
}

// List handles GET /api/v1/slots
func (h *SlotHandler) List(w http.ResponseWriter, r *http.Request) {
	c, err := h.coordinator(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	// Reload so lapsed holds are swept before the client sees them
	if err := c.Load(r.Context()); err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ViewFromModel(c.Snapshot()))
}

// Toggle handles POST /api/v1/slots/{number}/toggle
func (h *SlotHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	number := model.SlotNumber(mux.Vars(r)["number"])

	c, err := h.coordinator(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	outcome, err := c.Toggle(r.Context(), number)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ToggleResponse{
		Number:  string(number),
		Outcome: string(outcome),
		View:    response.ViewFromModel(c.Snapshot()),
	})
}

// Stats handles GET /api/v1/stats
func (h *SlotHandler) Stats(w http.ResponseWriter, r *http.Request) {
	system, err := h.registry.System(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := system.Load(r.Context()); err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.StatsFromModel(system.Snapshot().Stats))
}

func (h *SlotHandler) coordinator(r *http.Request) (*reservation.Coordinator, error) {
	id := middleware.MustGetIdentity(r.Context())
	return h.registry.Get(r.Context(), id)
}
