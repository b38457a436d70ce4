package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ridepool/ridepool/internal/driver"
	"github.com/ridepool/ridepool/internal/offer"
	"github.com/ridepool/ridepool/internal/trip"
	"github.com/ridepool/ridepool/pkg/polyline"
)

// scriptedNegotiator resolves offers from a fixed script instead of running
// the timed protocol. Unscripted drivers accept.
type scriptedNegotiator struct {
	mu       sync.Mutex
	outcomes map[string]offer.Outcome
	calls    []string
}

func (n *scriptedNegotiator) Offer(_ context.Context, _ *trip.Trip, c *driver.Candidate) (offer.Outcome, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.calls = append(n.calls, c.ID)
	if out, ok := n.outcomes[c.ID]; ok {
		return out, nil
	}
	return offer.OutcomeAccepted, nil
}

func (n *scriptedNegotiator) offered() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

// recordingIndex captures the radius of every geospatial query.
type recordingIndex struct {
	driver.GeoIndex
	mu    sync.Mutex
	radii []float64
}

func (r *recordingIndex) QueryNear(ctx context.Context, center polyline.Coordinate, radiusKm float64, vt trip.VehicleType) ([]driver.Nearby, error) {
	r.mu.Lock()
	r.radii = append(r.radii, radiusKm)
	r.mu.Unlock()
	return r.GeoIndex.QueryNear(ctx, center, radiusKm, vt)
}

type dispatchFixture struct {
	trips      *trip.InMemoryRepository
	drivers    *driver.InMemoryRepository
	index      *recordingIndex
	negotiator *scriptedNegotiator
	orch       *Orchestrator
}

func newDispatchFixture(outcomes map[string]offer.Outcome) *dispatchFixture {
	f := &dispatchFixture{
		trips:      trip.NewInMemoryRepository(),
		drivers:    driver.NewInMemoryRepository(),
		index:      &recordingIndex{GeoIndex: driver.NewInMemoryGeoIndex()},
		negotiator: &scriptedNegotiator{outcomes: outcomes},
	}
	f.orch = NewOrchestrator(OrchestratorConfig{
		Trips:      f.trips,
		Drivers:    f.drivers,
		Index:      f.index,
		Negotiator: f.negotiator,
		Logger:     zerolog.Nop(),
	})
	return f
}

// addIdleDriver registers a taxi driver with no current path at the given
// longitude on the equator.
func (f *dispatchFixture) addIdleDriver(t *testing.T, id string, lng float64) {
	t.Helper()
	f.drivers.Add(
		driver.Driver{ID: id, DisplayName: "Driver " + id, Capacity: 4, NotificationToken: "tok_" + id},
		driver.Vehicle{ID: "veh_" + id, Plate: "KA-05-" + id, Description: "White sedan"},
	)
	require.NoError(t, f.index.SetLocation(context.Background(), id, coord(lng), trip.VehicleTaxi))
}

func newCreateRequest(riderPath []polyline.Coordinate, dropLng float64) *trip.CreateRequest {
	return &trip.CreateRequest{
		RiderID:       "usr_1",
		Type:          trip.TypeShared,
		VehicleType:   trip.VehicleTaxi,
		PaymentMethod: trip.PaymentCash,
		Passengers:    1,
		Pickup: trip.Location{
			Coordinates: riderPath[0],
			Address:     "Pickup Rd",
			Polyline:    polyline.Encode(riderPath),
		},
		DropOff: trip.Location{
			Coordinates: coord(dropLng),
			Address:     "Dropoff Rd",
		},
	}
}

func TestDispatch_MatchesIdleDriver(t *testing.T) {
	f := newDispatchFixture(nil)
	f.addIdleDriver(t, "drv_1", 0.0005)

	riderPath := equatorPath(0, 0.001, 0.002, 0.003)
	got, err := f.orch.Dispatch(context.Background(), newCreateRequest(riderPath, 0.003))
	require.NoError(t, err)

	require.Equal(t, trip.StatusMatched, got.Status)
	require.Equal(t, polyline.Encode(riderPath), got.TripPolyline)
	require.Nil(t, got.PickupWalk)
	require.Nil(t, got.DropoffWalk)
	require.NotNil(t, got.Driver)
	require.Equal(t, "drv_1", got.Driver.ID)
	require.NotNil(t, got.Vehicle)
	require.Equal(t, "veh_drv_1", got.Vehicle.ID)

	// The match is persisted, and the driver's stored path now carries the
	// rider's route.
	stored, err := f.trips.Get(context.Background(), got.ID)
	require.NoError(t, err)
	require.Equal(t, trip.StatusMatched, stored.Status)
	require.Equal(t, polyline.Encode(riderPath), f.drivers.CurrentPath("drv_1"))
}

func TestDispatch_RejectsInvalidRequest(t *testing.T) {
	f := newDispatchFixture(nil)

	req := newCreateRequest(equatorPath(0, 0.001), 0.001)
	req.Passengers = 0

	_, err := f.orch.Dispatch(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidRequest)
	require.Empty(t, f.negotiator.offered())
	require.Empty(t, f.index.radii, "no search should run for an invalid request")
}

func TestDispatch_NoDriverInRange(t *testing.T) {
	f := newDispatchFixture(nil)
	// 8.9 km out: beyond the 2 km ceiling at every radius.
	f.addIdleDriver(t, "drv_1", 0.08)

	// A long trip so the radius ceiling stays at the 2 km cap.
	_, err := f.orch.Dispatch(context.Background(), newCreateRequest(equatorPath(0, 0.001, 0.002), 0.08))
	require.ErrorIs(t, err, ErrNoDriverAvailable)

	require.Equal(t, []float64{0.5, 1.0, 2.0}, f.index.radii)
	require.Empty(t, f.negotiator.offered())
}

func TestDispatch_ShortTripCapsRadiusAtStart(t *testing.T) {
	f := newDispatchFixture(nil)

	// Pickup and dropoff are ~333 m apart, so half the trip length is well
	// under the starting radius and the search runs exactly once.
	_, err := f.orch.Dispatch(context.Background(), newCreateRequest(equatorPath(0, 0.001, 0.002, 0.003), 0.003))
	require.ErrorIs(t, err, ErrNoDriverAvailable)
	require.Equal(t, []float64{0.5}, f.index.radii)
}

func TestDispatch_DeletesPendingTripOnFailure(t *testing.T) {
	f := newDispatchFixture(nil)

	_, err := f.orch.Dispatch(context.Background(), newCreateRequest(equatorPath(0, 0.001), 0.001))
	require.ErrorIs(t, err, ErrNoDriverAvailable)
	require.Empty(t, f.trips.All(), "the pending trip must not outlive a failed dispatch")
}

// failingFinalizeRepository fails every Finalize call, simulating a trip
// store fault after a driver has already accepted.
type failingFinalizeRepository struct {
	*trip.InMemoryRepository
}

func (r *failingFinalizeRepository) Finalize(context.Context, string, trip.Match) error {
	return errors.New("finalize trip: connection reset")
}

// reservingNegotiator reserves the driver's seats before accepting, the way
// the real negotiation does.
type reservingNegotiator struct {
	drivers driver.Repository
}

func (n *reservingNegotiator) Offer(ctx context.Context, t *trip.Trip, c *driver.Candidate) (offer.Outcome, error) {
	reserved, err := n.drivers.ReserveCapacity(ctx, c.ID, t.Passengers)
	if err != nil {
		return offer.OutcomeIneligible, err
	}
	if !reserved {
		return offer.OutcomeIneligible, nil
	}
	return offer.OutcomeAccepted, nil
}

func TestDispatch_FinalizeFailureReleasesCapacity(t *testing.T) {
	trips := &failingFinalizeRepository{InMemoryRepository: trip.NewInMemoryRepository()}
	drivers := driver.NewInMemoryRepository()
	index := driver.NewInMemoryGeoIndex()

	drivers.Add(
		driver.Driver{ID: "drv_1", DisplayName: "Driver drv_1", Capacity: 4, NotificationToken: "tok_drv_1"},
		driver.Vehicle{ID: "veh_drv_1", Plate: "KA-05-drv_1", Description: "White sedan"},
	)
	require.NoError(t, index.SetLocation(context.Background(), "drv_1", coord(0.0005), trip.VehicleTaxi))

	orch := NewOrchestrator(OrchestratorConfig{
		Trips:      trips,
		Drivers:    drivers,
		Index:      index,
		Negotiator: &reservingNegotiator{drivers: drivers},
		Logger:     zerolog.Nop(),
	})

	riderPath := equatorPath(0, 0.001, 0.002, 0.003)
	_, err := orch.Dispatch(context.Background(), newCreateRequest(riderPath, 0.003))
	require.Error(t, err)

	require.Equal(t, 4, drivers.Capacity("drv_1"), "reserved seats must be returned when finalization fails")
	require.Empty(t, trips.All(), "the pending trip must not outlive a failed dispatch")
}

func TestDispatch_SkipsDisjointDriverPath(t *testing.T) {
	f := newDispatchFixture(nil)
	f.addIdleDriver(t, "drv_1", 0.0005)
	offRoute := polyline.Encode([]polyline.Coordinate{{Lat: 0.05, Lng: 0}, {Lat: 0.05, Lng: 0.001}})
	require.NoError(t, f.index.SetCurrentPath(context.Background(), "drv_1", offRoute))

	_, err := f.orch.Dispatch(context.Background(), newCreateRequest(equatorPath(0, 0.001, 0.002), 0.002))
	require.ErrorIs(t, err, ErrNoDriverAvailable)
	require.Empty(t, f.negotiator.offered())
}

func TestDispatch_MovesToNextDriverAfterRejection(t *testing.T) {
	f := newDispatchFixture(map[string]offer.Outcome{"drv_near": offer.OutcomeRejected})
	f.addIdleDriver(t, "drv_near", 0.0002)
	f.addIdleDriver(t, "drv_far", 0.0008)

	got, err := f.orch.Dispatch(context.Background(), newCreateRequest(equatorPath(0, 0.001, 0.002), 0.002))
	require.NoError(t, err)

	require.Equal(t, "drv_far", got.Driver.ID)
	// Better-scoring driver goes first; once rejected it is never re-offered.
	require.Equal(t, []string{"drv_near", "drv_far"}, f.negotiator.offered())
}

func TestDispatch_TimedOutDriverIsSkipped(t *testing.T) {
	f := newDispatchFixture(map[string]offer.Outcome{"drv_1": offer.OutcomeTimedOut})
	f.addIdleDriver(t, "drv_1", 0.0002)
	f.addIdleDriver(t, "drv_2", 0.0008)

	got, err := f.orch.Dispatch(context.Background(), newCreateRequest(equatorPath(0, 0.001, 0.002), 0.002))
	require.NoError(t, err)
	require.Equal(t, "drv_2", got.Driver.ID)
	require.Equal(t, []string{"drv_1", "drv_2"}, f.negotiator.offered())
}

func TestDispatch_HonorsIgnoreList(t *testing.T) {
	f := newDispatchFixture(nil)
	f.addIdleDriver(t, "drv_near", 0.0002)
	f.addIdleDriver(t, "drv_far", 0.0008)

	req := newCreateRequest(equatorPath(0, 0.001, 0.002), 0.002)
	req.IgnoreDrivers = []string{"drv_near"}

	got, err := f.orch.Dispatch(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "drv_far", got.Driver.ID)
	require.Equal(t, []string{"drv_far"}, f.negotiator.offered())
}

func TestDispatch_AllDriversDecline(t *testing.T) {
	f := newDispatchFixture(map[string]offer.Outcome{
		"drv_1": offer.OutcomeRejected,
		"drv_2": offer.OutcomeTimedOut,
	})
	f.addIdleDriver(t, "drv_1", 0.0002)
	f.addIdleDriver(t, "drv_2", 0.0008)

	_, err := f.orch.Dispatch(context.Background(), newCreateRequest(equatorPath(0, 0.001, 0.002), 0.002))
	require.ErrorIs(t, err, ErrNoDriverAvailable)
	require.Equal(t, []string{"drv_1", "drv_2"}, f.negotiator.offered())
	require.Empty(t, f.trips.All())
}

func TestDispatch_CanceledContext(t *testing.T) {
	f := newDispatchFixture(nil)
	f.addIdleDriver(t, "drv_1", 0.0005)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.orch.Dispatch(ctx, newCreateRequest(equatorPath(0, 0.001), 0.001))
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled))
	require.Empty(t, f.trips.All(), "cleanup must run even when the caller is gone")
}
