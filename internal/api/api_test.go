package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/rafflegrid/internal/api"
	"github.com/mcoot/rafflegrid/internal/api/apierr"
	"github.com/mcoot/rafflegrid/internal/api/middleware"
	"github.com/mcoot/rafflegrid/internal/api/response"
	"github.com/mcoot/rafflegrid/internal/factory"
	"github.com/mcoot/rafflegrid/internal/model"
	"github.com/mcoot/rafflegrid/internal/services/admin"
	"github.com/mcoot/rafflegrid/internal/testutil"
)

const adminPassword = "correct horse"

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	hash, err := admin.HashPassword(adminPassword)
	require.NoError(t, err)

	return newTestServerWithConfig(t, factory.Config{
		HoldDuration:      time.Minute,
		AdminPasswordHash: hash,
	})
}

func newTestServerWithConfig(t *testing.T, cfg factory.Config) *testServer {
	t.Helper()

	app := factory.NewTestApp(cfg)
	t.Cleanup(func() { _ = app.Close() })

	_, err := app.Seed(t.Context(), 4)
	require.NoError(t, err)

	router := api.NewRouter(api.RouterConfig{
		Logger:          testutil.NopLogger(),
		Registry:        app.Registry,
		IdentityService: app.IdentityService,
		AdminService:    app.AdminService,
		Hub:             app.Hub,
		Broadcaster:     app.Broadcaster,
	})

	return &testServer{
		handler: router,
		app:     app,
	}
}

func (ts *testServer) request(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

// newIdentity issues an identity through the API and returns client headers
func (ts *testServer) newIdentity(t *testing.T) map[string]string {
	t.Helper()

	rr := ts.request(http.MethodPost, "/api/v1/identity", nil, nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp response.IdentityResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return map[string]string{middleware.IdentityHeader: resp.Identity}
}

func adminHeaders(password string) map[string]string {
	return map[string]string{middleware.AdminPasswordHeader: password}
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func slotState(view response.View, number string) string {
	for _, s := range view.Slots {
		if s.Number == number {
			return s.State
		}
	}
	return ""
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	resp := decode[response.HealthResponse](t, rr)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 4, resp.Slots)
}

func TestIssueIdentity(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/identity", nil, nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	resp := decode[response.IdentityResponse](t, rr)
	assert.Equal(t, "00000000-0000-4000-8000-000000000001", resp.Identity)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.IdentityCookie, cookies[0].Name)
	assert.Equal(t, resp.Identity, cookies[0].Value)
}

func TestIdentityFromCookie(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/identity/me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.IdentityCookie, Value: "0F8E6D2C-1B2A-4C3D-9E8F-000000000042"})
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[response.IdentityResponse](t, rr)
	assert.Equal(t, "0f8e6d2c-1b2a-4c3d-9e8f-000000000042", resp.Identity)
}

func TestSlotsRequireIdentity(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/slots", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, apierr.CodeInvalidIdentity, decode[apierr.ErrorResponse](t, rr).Error.Code)

	rr = ts.request(http.MethodGet, "/api/v1/slots", nil, map[string]string{middleware.IdentityHeader: "not-a-uuid"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestListSlots(t *testing.T) {
	ts := newTestServer(t)
	client := ts.newIdentity(t)

	rr := ts.request(http.MethodGet, "/api/v1/slots", nil, client)
	require.Equal(t, http.StatusOK, rr.Code)

	view := decode[response.View](t, rr)
	assert.Equal(t, client[middleware.IdentityHeader], view.Identity)
	require.Len(t, view.Slots, 4)
	assert.Equal(t, "01", view.Slots[0].Number)
	assert.Equal(t, "free", view.Slots[0].State)
	assert.Empty(t, view.Selection)
	assert.Equal(t, 4, view.Stats.Free)
}

func TestToggleAndConfirm(t *testing.T) {
	ts := newTestServer(t)
	client := ts.newIdentity(t)

	rr := ts.request(http.MethodPost, "/api/v1/slots/01/toggle", nil, client)
	require.Equal(t, http.StatusOK, rr.Code)
	toggle := decode[response.ToggleResponse](t, rr)
	assert.Equal(t, "acquired", toggle.Outcome)
	assert.Equal(t, []string{"01"}, toggle.View.Selection)
	assert.Equal(t, "held", slotState(toggle.View, "01"))

	rr = ts.request(http.MethodPost, "/api/v1/slots/02/toggle", nil, client)
	require.Equal(t, http.StatusOK, rr.Code)

	body := map[string]string{"name": "Ana", "contact": "3001234567"}
	rr = ts.request(http.MethodPost, "/api/v1/reservations", body, client)
	require.Equal(t, http.StatusCreated, rr.Code)

	confirmed := decode[response.ConfirmResponse](t, rr)
	require.NotNil(t, confirmed.Confirmation)
	assert.Equal(t, []string{"01", "02"}, confirmed.Confirmation.Numbers)
	assert.Equal(t, "Ana", confirmed.Confirmation.BuyerName)
	assert.True(t, confirmed.View.Confirmed)
	assert.Empty(t, confirmed.View.Selection)
	assert.Equal(t, "reserved", slotState(confirmed.View, "01"))
	assert.Equal(t, "reserved", slotState(confirmed.View, "02"))
}

func TestToggleTwiceReleases(t *testing.T) {
	ts := newTestServer(t)
	client := ts.newIdentity(t)

	rr := ts.request(http.MethodPost, "/api/v1/slots/03/toggle", nil, client)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = ts.request(http.MethodPost, "/api/v1/slots/03/toggle", nil, client)
	require.Equal(t, http.StatusOK, rr.Code)

	toggle := decode[response.ToggleResponse](t, rr)
	assert.Equal(t, "released", toggle.Outcome)
	assert.Equal(t, "free", slotState(toggle.View, "03"))
}

func TestToggleHeldByAnotherConflicts(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.newIdentity(t)
	bob := ts.newIdentity(t)

	rr := ts.request(http.MethodPost, "/api/v1/slots/01/toggle", nil, alice)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/slots/01/toggle", nil, bob)
	assert.Equal(t, http.StatusConflict, rr.Code)
	apiErr := decode[apierr.ErrorResponse](t, rr).Error
	assert.Equal(t, apierr.CodeSlotConflict, apiErr.Code)
	assert.Equal(t, "01", apiErr.Number)
}

func TestToggleUnknownSlot(t *testing.T) {
	ts := newTestServer(t)
	client := ts.newIdentity(t)

	rr := ts.request(http.MethodPost, "/api/v1/slots/99/toggle", nil, client)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestConfirmValidation(t *testing.T) {
	ts := newTestServer(t)
	client := ts.newIdentity(t)

	// Nothing selected
	rr := ts.request(http.MethodPost, "/api/v1/reservations", map[string]string{"name": "Ana", "contact": "x"}, client)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeValidationFailed, decode[apierr.ErrorResponse](t, rr).Error.Code)

	rr = ts.request(http.MethodPost, "/api/v1/slots/01/toggle", nil, client)
	require.Equal(t, http.StatusOK, rr.Code)

	// Blank contact leaves the hold untouched
	rr = ts.request(http.MethodPost, "/api/v1/reservations", map[string]string{"name": "Ana", "contact": "  "}, client)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	slot, err := ts.app.Storage.GetSlot(t.Context(), "01")
	require.NoError(t, err)
	assert.Equal(t, model.SlotStateHeld, slot.State)
}

func TestConfirmInvalidBody(t *testing.T) {
	ts := newTestServer(t)
	client := ts.newIdentity(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", bytes.NewBufferString("{"))
	req.Header.Set(middleware.IdentityHeader, client[middleware.IdentityHeader])
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidRequest, decode[apierr.ErrorResponse](t, rr).Error.Code)
}

func TestStats(t *testing.T) {
	ts := newTestServer(t)
	client := ts.newIdentity(t)

	rr := ts.request(http.MethodPost, "/api/v1/slots/01/toggle", nil, client)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/stats", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	stats := decode[response.Stats](t, rr)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.Held)
	assert.Equal(t, 3, stats.Free)
	assert.InDelta(t, 75.0, stats.FreePercent, 0.001)
}

func TestAdminRequiresPassword(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/admin/reset", map[string]bool{"confirm": true}, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/admin/reset", map[string]bool{"confirm": true}, adminHeaders("wrong"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, apierr.CodeInvalidAdminPassword, decode[apierr.ErrorResponse](t, rr).Error.Code)
}

func TestAdminDisabledWithoutPasswordHash(t *testing.T) {
	ts := newTestServerWithConfig(t, factory.Config{})

	rr := ts.request(http.MethodPost, "/api/v1/admin/reset", map[string]bool{"confirm": true}, adminHeaders(adminPassword))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestResetRequiresConfirmation(t *testing.T) {
	ts := newTestServer(t)
	client := ts.newIdentity(t)

	rr := ts.request(http.MethodPost, "/api/v1/slots/01/toggle", nil, client)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/admin/reset", map[string]bool{"confirm": false}, adminHeaders(adminPassword))
	assert.Equal(t, http.StatusPreconditionFailed, rr.Code)

	slot, err := ts.app.Storage.GetSlot(t.Context(), "01")
	require.NoError(t, err)
	assert.Equal(t, model.SlotStateHeld, slot.State)
}

func TestResetFreesEverySlot(t *testing.T) {
	ts := newTestServer(t)
	client := ts.newIdentity(t)

	for _, n := range []string{"01", "02"} {
		rr := ts.request(http.MethodPost, "/api/v1/slots/"+n+"/toggle", nil, client)
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := ts.request(http.MethodPost, "/api/v1/reservations", map[string]string{"name": "Ana", "contact": "x"}, client)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/admin/reset", map[string]bool{"confirm": true}, adminHeaders(adminPassword))
	require.Equal(t, http.StatusOK, rr.Code)

	reset := decode[response.ResetResponse](t, rr)
	assert.True(t, reset.ReloadRequired)
	assert.ElementsMatch(t, []string{"01", "02"}, reset.Released)

	rr = ts.request(http.MethodGet, "/api/v1/slots", nil, client)
	require.Equal(t, http.StatusOK, rr.Code)
	view := decode[response.View](t, rr)
	assert.Equal(t, 4, view.Stats.Free)
}

func TestMarkPaid(t *testing.T) {
	ts := newTestServer(t)
	client := ts.newIdentity(t)

	rr := ts.request(http.MethodPost, "/api/v1/slots/01/toggle", nil, client)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = ts.request(http.MethodPost, "/api/v1/reservations", map[string]string{"name": "Ana", "contact": "x"}, client)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/admin/paid", map[string][]string{"numbers": {"01", "02"}}, adminHeaders(adminPassword))
	require.Equal(t, http.StatusOK, rr.Code)

	paid := decode[response.PaidResponse](t, rr)
	assert.Equal(t, []string{"01"}, paid.Paid)
	assert.Equal(t, []string{"02"}, paid.Skipped)

	rr = ts.request(http.MethodPost, "/api/v1/admin/paid", map[string][]string{"numbers": {}}, adminHeaders(adminPassword))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
