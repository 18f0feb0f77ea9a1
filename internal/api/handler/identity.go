package handler

import (
	"net/http"
	"time"

	"github.com/mcoot/rafflegrid/internal/api/middleware"
	"github.com/mcoot/rafflegrid/internal/api/response"
	"github.com/mcoot/rafflegrid/internal/services/identity"
)

// identityCookieMaxAge keeps the device token around for a year
const identityCookieMaxAge = 365 * 24 * time.Hour

// IdentityHandler handles client identity endpoints
type IdentityHandler struct {
	identityService *identity.Service
}

// NewIdentityHandler creates a new identity handler
func NewIdentityHandler(identityService *identity.Service) *IdentityHandler {
	return &IdentityHandler{
		identityService: identityService,
	}
}

// Issue handles POST /api/v1/identity
func (h *IdentityHandler) Issue(w http.ResponseWriter, r *http.Request) {
	id := h.identityService.Issue()

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.IdentityCookie,
		Value:    id.String(),
		Path:     "/",
		MaxAge:   int(identityCookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	response.JSON(w, http.StatusCreated, response.IdentityResponse{Identity: id.String()})
}

// Get handles GET /api/v1/identity/me
func (h *IdentityHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := middleware.MustGetIdentity(r.Context())
	response.JSON(w, http.StatusOK, response.IdentityResponse{Identity: id.String()})
}
