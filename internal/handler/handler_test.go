package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/train-reservation/internal/model"
	"github.com/Shivanand-hulikatti/train-reservation/internal/repository"
	"github.com/Shivanand-hulikatti/train-reservation/internal/service"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

const day = 24 * time.Hour

type testAPI struct {
	handler http.Handler
	trains  *repository.MemoryTrainRepository
}

// newTestAPI serves the full router over in-memory storage. wrap, when set,
// replaces the ticket store the engines see.
func newTestAPI(t *testing.T, wrap func(*repository.MemoryTicketRepository) service.TicketStore) *testAPI {
	t.Helper()
	ticketRepo := repository.NewMemoryTicketRepository()
	trains := repository.NewMemoryTrainRepository(ticketRepo)

	var tickets service.TicketStore = ticketRepo
	if wrap != nil {
		tickets = wrap(ticketRepo)
	}

	opts := service.Options{Timeout: time.Second, RetryAttempts: 2, RetryBackoff: time.Millisecond}
	guard := service.NewInventoryGuard(trains, opts)
	svc := service.NewTrainService(trains, tickets, opts)

	return &testAPI{
		handler: NewRouter(
			NewTrainHandler(svc),
			NewTicketHandler(svc,
				service.NewReservationEngine(trains, tickets, guard, opts),
				service.NewCancellationEngine(trains, tickets, guard, opts)),
			testSecret,
		),
		trains: trains,
	}
}

func signToken(t *testing.T, userID, role string, ttl time.Duration) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	})
	s, err := tok.SignedString(testSecret)
	require.NoError(t, err)
	return s
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *testAPI) createTrain(t *testing.T, seats int, departsIn time.Duration) model.Train {
	t.Helper()
	start := time.Now().Add(departsIn).UTC().Truncate(time.Second)
	rec := a.do(t, http.MethodPost, "/trains", signToken(t, "ops", RoleAdmin, time.Hour), model.CreateTrainRequest{
		Name:       "Intercity Express",
		StartPoint: "Colombo Fort",
		EndPoint:   "Kandy",
		StartTime:  start,
		EndTime:    start.Add(3 * time.Hour),
		Price:      1500,
		Seats:      seats,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.Train](t, rec)
}

func TestHealthCheck(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestAuthentication(t *testing.T) {
	api := newTestAPI(t, nil)
	train := api.createTrain(t, 5, 10*day)
	path := "/trains/" + train.ID + "/reservations"

	wrongKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           "mallory",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "bob"}).SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"missing", "", "missing bearer token"},
		{"garbage", "not.a.jwt", "invalid token"},
		{"wrong key", wrongKey, "invalid token"},
		{"no expiry", noExpiry, "invalid token"},
		{"expired", signToken(t, "bob", "", -time.Minute), "token expired"},
		{"no user", signToken(t, "", "", time.Hour), "token has no user id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, path, tt.token, model.ReserveRequest{Seats: 1})
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.want, decode[model.ErrorResponse](t, rec).Error)
		})
	}

	got, err := api.trains.GetByID(context.Background(), train.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.SeatsAvailable)
}

func TestAdminRoutes(t *testing.T) {
	api := newTestAPI(t, nil)
	train := api.createTrain(t, 5, 10*day)
	user := signToken(t, "alice", "", time.Hour)

	rec := api.do(t, http.MethodPost, "/trains", user, model.CreateTrainRequest{Name: "x", Seats: 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodDelete, "/trains/"+train.ID, user, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodGet, "/trains/"+train.ID+"/tickets", user, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodGet, "/users/bob/tickets", user, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodGet, "/tickets", user, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodGet, "/tickets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPost, "/trains", "", model.CreateTrainRequest{Name: "x", Seats: 1})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Catalog reads stay public.
	rec = api.do(t, http.MethodGet, "/trains", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Train](t, rec), 1)

	rec = api.do(t, http.MethodGet, "/trains/"+train.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, train.ID, decode[model.Train](t, rec).ID)
}

func TestTrainCatalogMaintenance(t *testing.T) {
	api := newTestAPI(t, nil)
	admin := signToken(t, "ops", RoleAdmin, time.Hour)

	rec := api.do(t, http.MethodPost, "/trains", admin, model.CreateTrainRequest{Name: "No seats"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decode[model.ErrorResponse](t, rec).Kind)

	rec = api.do(t, http.MethodPost, "/trains", admin, map[string]any{"name": "x", "bogus": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	train := api.createTrain(t, 8, 10*day)
	start := train.StartTime.Add(day)
	rec = api.do(t, http.MethodPut, "/trains/"+train.ID, admin, model.UpdateTrainRequest{
		Name: "Renamed", StartTime: start, EndTime: start.Add(time.Hour), Price: 10,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[model.Train](t, rec)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, 8, updated.SeatsAvailable)

	rec = api.do(t, http.MethodDelete, "/trains/"+train.ID, admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodGet, "/trains/"+train.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReserve(t *testing.T) {
	api := newTestAPI(t, nil)
	train := api.createTrain(t, 5, 10*day)
	alice := signToken(t, "alice", "", time.Hour)
	path := "/trains/" + train.ID + "/reservations"

	rec := api.do(t, http.MethodPost, path, alice, model.ReserveRequest{Seats: 3})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[model.Reservation](t, rec)
	assert.Equal(t, "alice", res.UserID)
	require.Len(t, res.Tickets, 3)
	assert.Equal(t, 5, res.Tickets[0].SeatNumber)

	tests := []struct {
		name   string
		path   string
		seats  int
		status int
		kind   string
	}{
		{"too few left", path, 3, http.StatusConflict, "conflict"},
		{"too many per request", path, 5, http.StatusBadRequest, "validation"},
		{"zero seats", path, 0, http.StatusBadRequest, "validation"},
		{"unknown train", "/trains/no-such-train/reservations", 1, http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, tt.path, alice, model.ReserveRequest{Seats: tt.seats})
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.kind, decode[model.ErrorResponse](t, rec).Kind)
		})
	}

	rec = api.do(t, http.MethodGet, "/trains/"+train.ID, "", nil)
	assert.Equal(t, 2, decode[model.Train](t, rec).SeatsAvailable)
}

func TestReserve_OutsideBookingWindow(t *testing.T) {
	api := newTestAPI(t, nil)
	train := api.createTrain(t, 5, 45*day)

	rec := api.do(t, http.MethodPost, "/trains/"+train.ID+"/reservations",
		signToken(t, "alice", "", time.Hour), model.ReserveRequest{Seats: 1})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[model.ErrorResponse](t, rec)
	assert.Equal(t, "policy", body.Kind)
	assert.Equal(t, "too early to make a reservation", body.Error)
}

func TestListAllTickets(t *testing.T) {
	api := newTestAPI(t, nil)
	admin := signToken(t, "ops", RoleAdmin, time.Hour)

	rec := api.do(t, http.MethodGet, "/tickets", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	first := api.createTrain(t, 4, 10*day)
	second := api.createTrain(t, 4, 12*day)
	for _, booking := range []struct {
		user, train string
		seats       int
	}{
		{"alice", first.ID, 2},
		{"bob", second.ID, 1},
	} {
		rec = api.do(t, http.MethodPost, "/trains/"+booking.train+"/reservations",
			signToken(t, booking.user, "", time.Hour), model.ReserveRequest{Seats: booking.seats})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = api.do(t, http.MethodGet, "/tickets", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]model.Ticket](t, rec)
	require.Len(t, all, 3)

	users := map[string]int{}
	for _, tk := range all {
		users[tk.UserID]++
	}
	assert.Equal(t, map[string]int{"alice": 2, "bob": 1}, users)
}

func TestCancelFlow(t *testing.T) {
	api := newTestAPI(t, nil)
	train := api.createTrain(t, 4, 10*day)
	alice := signToken(t, "alice", "", time.Hour)
	bob := signToken(t, "bob", "", time.Hour)
	admin := signToken(t, "ops", RoleAdmin, time.Hour)

	rec := api.do(t, http.MethodPost, "/trains/"+train.ID+"/reservations", alice, model.ReserveRequest{Seats: 2})
	require.Equal(t, http.StatusCreated, rec.Code)
	res := decode[model.Reservation](t, rec)
	ticketPath := "/tickets/" + res.Tickets[0].ID

	rec = api.do(t, http.MethodGet, ticketPath, bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "other users cannot see the ticket")

	rec = api.do(t, http.MethodDelete, ticketPath, bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, ticketPath, admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	for i := 0; i < 2; i++ {
		rec = api.do(t, http.MethodDelete, ticketPath, alice, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, model.TicketCancelled, decode[model.Ticket](t, rec).Status)
	}

	rec = api.do(t, http.MethodGet, "/trains/"+train.ID, "", nil)
	assert.Equal(t, 3, decode[model.Train](t, rec).SeatsAvailable)

	rec = api.do(t, http.MethodGet, "/me/tickets", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Ticket](t, rec), 2)

	rec = api.do(t, http.MethodGet, "/me/tickets", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = api.do(t, http.MethodGet, "/users/alice/tickets", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Ticket](t, rec), 2)

	rec = api.do(t, http.MethodGet, "/trains/"+train.ID+"/tickets", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Ticket](t, rec), 2)

	rec = api.do(t, http.MethodDelete, "/trains/"+train.ID, admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

type brokenTicketStore struct {
	*repository.MemoryTicketRepository
}

func (brokenTicketStore) Insert(context.Context, *model.Ticket) (string, error) {
	return "", errors.New("connection reset by peer")
}

func TestReserve_StorageFailureIsRetryable(t *testing.T) {
	api := newTestAPI(t, func(r *repository.MemoryTicketRepository) service.TicketStore {
		return brokenTicketStore{r}
	})
	train := api.createTrain(t, 5, 10*day)

	rec := api.do(t, http.MethodPost, "/trains/"+train.ID+"/reservations",
		signToken(t, "alice", "", time.Hour), model.ReserveRequest{Seats: 2})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	body := decode[model.ErrorResponse](t, rec)
	assert.Equal(t, "storage", body.Kind)
	assert.NotContains(t, body.Error, "connection reset", "driver errors stay out of responses")

	got, err := api.trains.GetByID(context.Background(), train.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.SeatsAvailable)
}
