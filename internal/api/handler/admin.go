package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mcoot/rafflegrid/internal/api/request"
	"github.com/mcoot/rafflegrid/internal/api/response"
	"github.com/mcoot/rafflegrid/internal/model"
	"github.com/mcoot/rafflegrid/internal/services/reservation"
	"github.com/mcoot/rafflegrid/internal/sse"
)

// AdminHandler handles operator endpoints
type AdminHandler struct {
	registry    *reservation.Registry
	broadcaster *sse.Broadcaster
	logger      *slog.Logger
}

// NewAdminHandler creates a new admin handler. broadcaster may be nil.
func NewAdminHandler(registry *reservation.Registry, broadcaster *sse.Broadcaster, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		registry:    registry,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Reset handles POST /api/v1/admin/reset
func (h *AdminHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req request.ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	result, err := h.registry.Reset(r.Context(), func(string) bool { return req.Confirm })
	if err != nil {
		WriteError(w, err)
		return
	}

	h.logger.Warn("grid reset",
		slog.Int("released", len(result.Released)))

	if h.broadcaster != nil {
		h.broadcaster.BroadcastReload("reset")
	}

	response.JSON(w, http.StatusOK, response.ResetResponseFromModel(result))
}

// MarkPaid handles POST /api/v1/admin/paid
func (h *AdminHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	var req request.MarkPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if len(req.Numbers) == 0 {
		WriteError(w, NewInvalidRequestError("numbers is required"))
		return
	}

	numbers := make([]model.SlotNumber, len(req.Numbers))
	for i, n := range req.Numbers {
		numbers[i] = model.SlotNumber(n)
	}

	result, err := h.registry.MarkPaid(r.Context(), numbers)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.PaidResponseFromModel(result))
}
