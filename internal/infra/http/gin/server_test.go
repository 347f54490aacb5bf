package ginserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookingengine/internal/app/reservation"
	domainbooking "bookingengine/internal/domain/booking"
	domainproperty "bookingengine/internal/domain/property"
	"bookingengine/internal/domain/shared/fault"
	"bookingengine/internal/infra/obs"
	"bookingengine/internal/infra/storage/memory"
)

var (
	testTraveler = domainbooking.Actor{ID: "trav-1", Role: domainbooking.RoleTraveler}
	testRival    = domainbooking.Actor{ID: "trav-2", Role: domainbooking.RoleTraveler}
	testOwner    = domainbooking.Actor{ID: "owner-1", Role: domainbooking.RoleOwner}
	testSystem   = domainbooking.SystemActor()
)

type testServer struct {
	router http.Handler
	tokens Tokens
}

func newTestServer(t *testing.T, checks map[string]obs.Check) *testServer {
	t.Helper()
	now := time.Date(2024, 2, 20, 10, 0, 0, 0, time.UTC)
	store := memory.NewStore(200 * time.Millisecond)
	prop, err := domainproperty.New(domainproperty.Params{ID: "prop-1", OwnerID: testOwner.ID, NightlyRate: 100, MaxGuests: 4, Active: true, Now: now})
	require.NoError(t, err)
	store.SeedProperties(prop)

	logger := obs.Discard()
	svc := reservation.New(reservation.Options{
		UoWFactory:  store,
		Idempotency: memory.NewIdempotencyStore(time.Hour),
		Properties:  store,
		Timeline:    memory.NewTimeline(),
		Policy:      domainbooking.DefaultCancellationPolicy(),
		Now:         func() time.Time { return now },
		Logger:      logger,
	})
	tokens := Tokens{Secret: []byte("test-secret")}
	router := NewRouter("test", obs.Middleware{Logger: logger}, obs.HealthHandlers{Checks: checks}, Handlers{
		Booking:        BookingHandler{Service: svc, Logger: logger},
		Property:       PropertyHandler{Service: svc, Logger: logger},
		AuthMiddleware: AuthMiddleware{Tokens: tokens, Logger: logger}.Handle,
	})
	return &testServer{router: router, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path string, actor *domainbooking.Actor, body any, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		token, err := s.tokens.Issue(*actor, time.Now())
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func stay(in, out string) map[string]any {
	return map[string]any{"property_id": "prop-1", "check_in": in, "check_out": out, "guests": 2}
}

func TestCreateRequiresATravelerToken(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := s.do(t, http.MethodPost, "/api/v1/bookings", nil, stay("2024-03-01", "2024-03-04"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", body["code"])

	rec, body = s.do(t, http.MethodPost, "/api/v1/bookings", &testOwner, stay("2024-03-01", "2024-03-04"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", body["code"])
}

func TestForgedTokenIsAnonymous(t *testing.T) {
	s := newTestServer(t, nil)
	forged, err := Tokens{Secret: []byte("other")}.Issue(testTraveler, time.Now())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)

	rec, created := s.do(t, http.MethodPost, "/api/v1/bookings", &testTraveler, stay("2024-03-01", "2024-03-04"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "pending", created["status"])
	assert.EqualValues(t, 300, created["total_price"])
	id := created["booking_id"].(string)

	rec, body := s.do(t, http.MethodPost, "/api/v1/bookings", &testRival, stay("2024-03-03", "2024-03-05"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", body["code"])

	rec, body = s.do(t, http.MethodPost, "/api/v1/bookings/"+id+"/accept", &testRival, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", body["code"])

	rec, body = s.do(t, http.MethodPost, "/api/v1/bookings/"+id+"/accept", &testOwner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "accepted", body["status"])

	rec, body = s.do(t, http.MethodPost, "/api/v1/bookings/"+id+"/reject", &testOwner, map[string]string{"reason": "changed my mind"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", body["code"])

	rec, body = s.do(t, http.MethodGet, "/api/v1/bookings/"+id, &testTraveler, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "accepted", body["status"])

	rec, _ = s.do(t, http.MethodGet, "/api/v1/bookings/"+id, &testRival, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body = s.do(t, http.MethodGet, "/api/v1/host/bookings?status=accepted", &testOwner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["total"])

	rec, _ = s.do(t, http.MethodGet, "/api/v1/me/bookings?page=abc", &testTraveler, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateReplaysIdempotencyKey(t *testing.T) {
	s := newTestServer(t, nil)

	rec, first := s.do(t, http.MethodPost, "/api/v1/bookings", &testTraveler, stay("2024-03-01", "2024-03-04"), "Idempotency-Key", "req-1")
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, second := s.do(t, http.MethodPost, "/api/v1/bookings", &testTraveler, stay("2024-03-01", "2024-03-04"), "Idempotency-Key", "req-1")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, first["booking_id"], second["booking_id"])
}

func TestAvailabilityPreview(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := s.do(t, http.MethodGet, "/api/v1/properties/prop-1/availability?check_in=2024-03-01&check_out=2024-03-03&guests=2", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["available"])
	assert.EqualValues(t, 200, body["total_price"])

	rec, body = s.do(t, http.MethodGet, "/api/v1/properties/missing/availability?check_in=2024-03-01&check_out=2024-03-03", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["code"])

	rec, _ = s.do(t, http.MethodGet, "/api/v1/properties/prop-1/availability?check_in=2024-03-03&check_out=2024-03-01", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompleteIsReservedForTheSystem(t *testing.T) {
	s := newTestServer(t, nil)
	rec, created := s.do(t, http.MethodPost, "/api/v1/bookings", &testTraveler, stay("2024-03-01", "2024-03-04"))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := created["booking_id"].(string)

	rec, _ = s.do(t, http.MethodPost, "/internal/bookings/"+id+"/complete", &testOwner, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// pending bookings cannot complete
	rec, body := s.do(t, http.MethodPost, "/internal/bookings/"+id+"/complete", &testSystem, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", body["code"])
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, map[string]obs.Check{
		"store":  func(context.Context) error { return nil },
		"broker": func(context.Context) error { return errors.New("no brokers") },
	})

	rec, _ := s.do(t, http.MethodGet, "/livez", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(obs.HeaderRequestID))

	rec, body := s.do(t, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, body["failed"], "broker")
}

func TestStatusMapping(t *testing.T) {
	cases := map[fault.Kind]int{
		fault.KindInvalidInput: http.StatusBadRequest,
		fault.KindNotFound:     http.StatusNotFound,
		fault.KindForbidden:    http.StatusForbidden,
		fault.KindConflict:     http.StatusConflict,
		fault.KindInvalidState: http.StatusConflict,
		fault.KindBusy:         http.StatusConflict,
		fault.KindUnavailable:  http.StatusServiceUnavailable,
		fault.KindInternal:     http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, statusFor(kind), kind)
	}
}
