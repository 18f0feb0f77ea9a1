package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/rafflegrid/internal/api/apierr"
	"github.com/mcoot/rafflegrid/internal/api/handler"
	"github.com/mcoot/rafflegrid/internal/api/middleware"
	basemiddleware "github.com/mcoot/rafflegrid/internal/middleware"
	"github.com/mcoot/rafflegrid/internal/services/admin"
	"github.com/mcoot/rafflegrid/internal/services/identity"
	"github.com/mcoot/rafflegrid/internal/services/reservation"
	"github.com/mcoot/rafflegrid/internal/sse"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger          *slog.Logger
	Registry        *reservation.Registry
	IdentityService *identity.Service
	AdminService    *admin.Service
	Hub             *sse.Hub         // optional, disables /events when nil
	Broadcaster     *sse.Broadcaster // optional
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	identityHandler := handler.NewIdentityHandler(cfg.IdentityService)
	slotHandler := handler.NewSlotHandler(cfg.Registry)
	reservationHandler := handler.NewReservationHandler(cfg.Registry)
	adminHandler := handler.NewAdminHandler(cfg.Registry, cfg.Broadcaster, cfg.Logger)
	healthHandler := handler.NewHealthHandler(cfg.Registry, cfg.Hub)

	// Create middleware
	identityMiddleware := middleware.RequireIdentity()
	adminMiddleware := middleware.RequireAdmin(cfg.AdminService)
	clientAddressMiddleware := basemiddleware.ClientAddress()
	loggingMiddleware := basemiddleware.Logging(cfg.Logger)
	recoveryMiddleware := basemiddleware.Recovery(cfg.Logger, func(w http.ResponseWriter, _ *http.Request, _ any) {
		apierr.WriteError(w, apierr.NewInternalError())
	})

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(clientAddressMiddleware)
	api.Use(loggingMiddleware)

	// Health check endpoint (no identity)
	api.HandleFunc("/health", healthHandler.Check).Methods(http.MethodGet)

	// Identity issuing needs no identity
	api.HandleFunc("/identity", identityHandler.Issue).Methods(http.MethodPost)

	// Grid-wide stats are public
	api.HandleFunc("/stats", slotHandler.Stats).Methods(http.MethodGet)

	// Client routes (all require an identity)
	client := api.NewRoute().Subrouter()
	client.Use(identityMiddleware)
	client.HandleFunc("/identity/me", identityHandler.Get).Methods(http.MethodGet)
	client.HandleFunc("/slots", slotHandler.List).Methods(http.MethodGet)
	client.HandleFunc("/slots/{number}/toggle", slotHandler.Toggle).Methods(http.MethodPost)
	client.HandleFunc("/reservations", reservationHandler.Confirm).Methods(http.MethodPost)
	if cfg.Hub != nil {
		eventsHandler := handler.NewEventsHandler(cfg.Hub)
		client.HandleFunc("/events", eventsHandler.Stream).Methods(http.MethodGet)
	}

	// Operator routes (all require the admin password)
	adminRoutes := api.PathPrefix("/admin").Subrouter()
	adminRoutes.Use(adminMiddleware)
	adminRoutes.HandleFunc("/reset", adminHandler.Reset).Methods(http.MethodPost)
	adminRoutes.HandleFunc("/paid", adminHandler.MarkPaid).Methods(http.MethodPost)

	return r
}
