package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridepool/ridepool/internal/api"
	"github.com/ridepool/ridepool/internal/api/models"
	"github.com/ridepool/ridepool/internal/auth"
	"github.com/ridepool/ridepool/internal/dispatch"
	"github.com/ridepool/ridepool/internal/driver"
	"github.com/ridepool/ridepool/internal/notify"
	"github.com/ridepool/ridepool/internal/offer"
	"github.com/ridepool/ridepool/internal/trip"
	"github.com/ridepool/ridepool/internal/verification"
	"github.com/ridepool/ridepool/pkg/polyline"
)

// acceptAllNegotiator accepts every offer without the timed protocol.
type acceptAllNegotiator struct{}

func (acceptAllNegotiator) Offer(_ context.Context, _ *trip.Trip, _ *driver.Candidate) (offer.Outcome, error) {
	return offer.OutcomeAccepted, nil
}

type countingNotifier struct {
	sent  atomic.Int32
	title atomic.Value
}

func (c *countingNotifier) Send(_ context.Context, _ string, n notify.Notification) error {
	c.sent.Add(1)
	c.title.Store(n.Title)
	return nil
}

type routerFixture struct {
	router       http.Handler
	jwt          *auth.JWTService
	trips        *trip.InMemoryRepository
	drivers      *driver.InMemoryRepository
	index        *driver.InMemoryGeoIndex
	tokens       *notify.InMemoryTokenStore
	notifier     *countingNotifier
	verification *verification.Service
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	f := &routerFixture{
		jwt: auth.NewJWTService(auth.JWTConfig{
			SigningKey: "test-secret-key-for-testing-only",
			Issuer:     "https://api.ridepool.app",
			Audience:   "ridepool-api",
		}),
		trips:        trip.NewInMemoryRepository(),
		drivers:      driver.NewInMemoryRepository(),
		index:        driver.NewInMemoryGeoIndex(),
		tokens:       notify.NewInMemoryTokenStore(),
		notifier:     &countingNotifier{},
		verification: verification.NewService("verification-secret"),
	}

	dispatcher := dispatch.NewOrchestrator(dispatch.OrchestratorConfig{
		Trips:      f.trips,
		Drivers:    f.drivers,
		Index:      f.index,
		Negotiator: acceptAllNegotiator{},
		Logger:     zerolog.Nop(),
	})

	f.router = api.NewRouter(api.RouterConfig{
		Version:      "test",
		BuildTime:    "now",
		Logger:       zerolog.Nop(),
		JWTService:   f.jwt,
		Dispatcher:   dispatcher,
		Trips:        f.trips,
		Tokens:       f.tokens,
		Notifier:     f.notifier,
		Verification: f.verification,
	})
	return f
}

func (f *routerFixture) bearer(t *testing.T, userID, role string) string {
	t.Helper()
	token, _, err := f.jwt.GenerateAccessToken(userID, role)
	require.NoError(t, err)
	return "Bearer " + token
}

func (f *routerFixture) do(t *testing.T, method, path, authorization string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func createTripBody(riderPath []polyline.Coordinate, dropLat, dropLng float64) models.CreateTripRequest {
	return models.CreateTripRequest{
		Type:          "SHARED",
		VehicleType:   "TAXI",
		PaymentMethod: "CASH",
		Passengers:    1,
		Pickup: models.Place{
			Point:    models.Point{Lat: riderPath[0].Lat, Lng: riderPath[0].Lng},
			Address:  "Pickup Rd",
			Polyline: polyline.Encode(riderPath),
		},
		DropOff: models.Place{
			Point:   models.Point{Lat: dropLat, Lng: dropLng},
			Address: "Dropoff Rd",
		},
	}
}

func TestRouter_Health(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.do(t, http.MethodGet, "/v1/ops/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_CreateTripRequiresAuth(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/trips", "", createTripBody([]polyline.Coordinate{{Lng: 0}, {Lng: 0.001}}, 0, 0.001))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_TripLifecycle(t *testing.T) {
	f := newRouterFixture(t)

	f.drivers.Add(
		driver.Driver{ID: "drv_1", DisplayName: "Asha", Capacity: 4, NotificationToken: "tok_drv"},
		driver.Vehicle{ID: "veh_1", Plate: "KA-01-1234", Description: "White sedan"},
	)
	require.NoError(t, f.index.SetLocation(context.Background(), "drv_1", polyline.Coordinate{Lng: 0.0005}, trip.VehicleTaxi))
	require.NoError(t, f.tokens.SetToken(context.Background(), "usr_1", "tok_rider"))

	riderPath := []polyline.Coordinate{{Lng: 0}, {Lng: 0.001}, {Lng: 0.002}, {Lng: 0.003}}
	riderAuth := f.bearer(t, "usr_1", auth.RoleRider)
	driverAuth := f.bearer(t, "drv_1", auth.RoleDriver)

	// Rider dispatches a trip; the only driver accepts.
	rec := f.do(t, http.MethodPost, "/v1/trips", riderAuth, createTripBody(riderPath, 0, 0.003))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.Trip
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "MATCHED", created.Status)
	require.NotNil(t, created.Driver)
	assert.Equal(t, "drv_1", created.Driver.ID)
	require.NotNil(t, created.Vehicle)
	assert.Equal(t, "KA-01-1234", created.Vehicle.Plate)
	assert.Equal(t, "/v1/trips/"+created.ID, rec.Header().Get("Location"))

	// Rider and driver can read it; a stranger cannot.
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/v1/trips/"+created.ID, riderAuth, nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/v1/trips/"+created.ID, driverAuth, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/v1/trips/"+created.ID, f.bearer(t, "usr_2", auth.RoleRider), nil).Code)

	// Driver requests the verification code; the rider's device gets it.
	rec = f.do(t, http.MethodPost, "/v1/trips/"+created.ID+"/verification-code", driverAuth, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, int32(1), f.notifier.sent.Load())
	assert.Contains(t, f.notifier.title.Load().(string), "OTP for trip is ")

	// The rider may not request it.
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/v1/trips/"+created.ID+"/verification-code", riderAuth, nil).Code)

	// Wrong code does not start the trip.
	rec = f.do(t, http.MethodPost, "/v1/trips/"+created.ID+"/start", driverAuth, models.StartTripRequest{VerificationCode: "xxxxxx"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The right code does.
	code := f.verification.Code(created.ID)
	rec = f.do(t, http.MethodPost, "/v1/trips/"+created.ID+"/start", driverAuth, models.StartTripRequest{VerificationCode: code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var started models.Trip
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	assert.Equal(t, "ACTIVE", started.Status)

	// Starting twice conflicts.
	rec = f.do(t, http.MethodPost, "/v1/trips/"+created.ID+"/start", driverAuth, models.StartTripRequest{VerificationCode: code})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouter_CreateTripNoDriver(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/trips", f.bearer(t, "usr_1", auth.RoleRider),
		createTripBody([]polyline.Coordinate{{Lng: 0}, {Lng: 0.001}}, 0, 0.001))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouter_CreateTripValidation(t *testing.T) {
	f := newRouterFixture(t)

	body := createTripBody([]polyline.Coordinate{{Lng: 0}, {Lng: 0.001}}, 0, 0.001)
	body.VehicleType = "HOVERCRAFT"

	rec := f.do(t, http.MethodPost, "/v1/trips", f.bearer(t, "usr_1", auth.RoleRider), body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_RegisterDeviceToken(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPut, "/v1/me/device-token", f.bearer(t, "usr_1", auth.RoleRider),
		map[string]string{"token": "tok_abc"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	token, err := f.tokens.Token(context.Background(), "usr_1")
	require.NoError(t, err)
	assert.Equal(t, "tok_abc", token)
}
