package handler

import (
	"net/http"

	"github.com/mcoot/rafflegrid/internal/api/response"
	"github.com/mcoot/rafflegrid/internal/services/reservation"
	"github.com/mcoot/rafflegrid/internal/sse"
)

// HealthHandler reports whether the slot store is reachable
type HealthHandler struct {
	registry *reservation.Registry
	hub      *sse.Hub
}

// NewHealthHandler creates a new health handler. hub may be nil.
func NewHealthHandler(registry *reservation.Registry, hub *sse.Hub) *HealthHandler {
	return &HealthHandler{registry: registry, hub: hub}
}

// Check handles GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	slots, err := h.registry.CheckStore(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	resp := response.HealthResponse{
		Status:       "ok",
		Slots:        slots,
		Coordinators: h.registry.Len(),
	}
	if h.hub != nil {
		resp.StreamClients = h.hub.ClientCount()
	}

	response.JSON(w, http.StatusOK, resp)
}
