package handler

import (
	"net/http"

	"github.com/mcoot/rafflegrid/internal/api/middleware"
	"github.com/mcoot/rafflegrid/internal/sse"
)

// EventsHandler streams slot changes over server-sent events
type EventsHandler struct {
	hub *sse.Hub
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(hub *sse.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Stream handles GET /api/v1/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := middleware.MustGetIdentity(r.Context())
	sse.ServeSSE(w, r, h.hub, id)
}
