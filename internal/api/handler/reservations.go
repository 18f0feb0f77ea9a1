package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mcoot/rafflegrid/internal/api/middleware"
	"github.com/mcoot/rafflegrid/internal/api/request"
	"github.com/mcoot/rafflegrid/internal/api/response"
	"github.com/mcoot/rafflegrid/internal/services/reservation"
)

// ReservationHandler handles confirming a client's selection
type ReservationHandler struct {
	registry *reservation.Registry
}

// NewReservationHandler creates a new reservation handler
func NewReservationHandler(registry *reservation.Registry) *ReservationHandler {
	return &ReservationHandler{
		registry: registry,
	}
}

// Confirm handles POST /api/v1/reservations
func (h *ReservationHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req request.ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	id := middleware.MustGetIdentity(r.Context())
	c, err := h.registry.Get(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	// Blank name or contact is rejected by the coordinator before any write
	confirmation, err := c.Confirm(r.Context(), req.Name, req.Contact)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.ConfirmResponse{
		Confirmation: response.ConfirmationFromModel(confirmation),
		View:         response.ViewFromModel(c.Snapshot()),
	})
}
