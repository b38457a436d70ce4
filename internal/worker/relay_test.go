package worker

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridepool/ridepool/internal/driver"
	"github.com/ridepool/ridepool/internal/offer"
	"github.com/ridepool/ridepool/internal/trip"
	"github.com/ridepool/ridepool/pkg/polyline"
)

func newTestRelay() (*Relay, *offer.InMemoryStore, *driver.InMemoryGeoIndex) {
	offers := offer.NewInMemoryStore()
	index := driver.NewInMemoryGeoIndex()
	relay := NewRelay(RelayConfig{
		Offers: offers,
		Index:  index,
		Logger: zerolog.Nop(),
	})
	return relay, offers, index
}

func createOffer(t *testing.T, offers *offer.InMemoryStore, tripID, driverID string) {
	t.Helper()
	require.NoError(t, offers.Create(context.Background(), offer.Offer{
		TripID:     tripID,
		DriverID:   driverID,
		Passengers: 1,
		ExpiresAt:  time.Now().Add(30 * time.Second),
	}, 30*time.Second))
}

func TestRelay_AcceptResolvesOffer(t *testing.T) {
	relay, offers, _ := newTestRelay()
	createOffer(t, offers, "trp_1", "drv_1")

	events, cancel, err := offers.Subscribe(context.Background(), "trp_1", "drv_1")
	require.NoError(t, err)
	defer cancel()

	err = relay.Apply(context.Background(), []byte(`{"type":"offer_response","trip_id":"trp_1","driver_id":"drv_1","action":"ACCEPT"}`))
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.True(t, ev.Accepted)
	case <-time.After(time.Second):
		t.Fatal("no offer event received")
	}
}

func TestRelay_DeclineDeletesOffer(t *testing.T) {
	relay, offers, _ := newTestRelay()
	createOffer(t, offers, "trp_1", "drv_1")

	events, cancel, err := offers.Subscribe(context.Background(), "trp_1", "drv_1")
	require.NoError(t, err)
	defer cancel()

	err = relay.Apply(context.Background(), []byte(`{"type":"offer_response","trip_id":"trp_1","driver_id":"drv_1","action":"DECLINE"}`))
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.True(t, ev.Deleted)
	case <-time.After(time.Second):
		t.Fatal("no offer event received")
	}
	_, ok := offers.Get("trp_1", "drv_1")
	assert.False(t, ok)
}

func TestRelay_AcceptForExpiredOfferIsIgnored(t *testing.T) {
	relay, _, _ := newTestRelay()

	err := relay.Apply(context.Background(), []byte(`{"type":"offer_response","trip_id":"trp_gone","driver_id":"drv_1","action":"ACCEPT"}`))
	require.NoError(t, err)
}

func TestRelay_DriverLocationUpdatesIndex(t *testing.T) {
	relay, _, index := newTestRelay()

	err := relay.Apply(context.Background(), []byte(`{"type":"driver_location","driver_id":"drv_1","lat":12.9716,"lng":77.5946,"vehicle_type":"TAXI"}`))
	require.NoError(t, err)

	nearby, err := index.QueryNear(context.Background(), polyline.Coordinate{Lat: 12.9716, Lng: 77.5946}, 1, trip.VehicleTaxi)
	require.NoError(t, err)
	require.Len(t, nearby, 1)
	assert.Equal(t, "drv_1", nearby[0].ID)
}

func TestRelay_DriverOfflineRemovesFromIndex(t *testing.T) {
	relay, _, index := newTestRelay()

	require.NoError(t, relay.Apply(context.Background(), []byte(`{"type":"driver_location","driver_id":"drv_1","lat":12.9716,"lng":77.5946,"vehicle_type":"TAXI"}`)))
	require.NoError(t, relay.Apply(context.Background(), []byte(`{"type":"driver_offline","driver_id":"drv_1","vehicle_type":"TAXI"}`)))

	nearby, err := index.QueryNear(context.Background(), polyline.Coordinate{Lat: 12.9716, Lng: 77.5946}, 1, trip.VehicleTaxi)
	require.NoError(t, err)
	assert.Empty(t, nearby)
}

func TestRelay_BadPayloads(t *testing.T) {
	relay, _, _ := newTestRelay()

	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `{{`},
		{"unknown type", `{"type":"driver_selfie"}`},
		{"unknown action", `{"type":"offer_response","trip_id":"trp_1","driver_id":"drv_1","action":"MAYBE"}`},
		{"bad vehicle type", `{"type":"driver_location","driver_id":"drv_1","vehicle_type":"HOVERCRAFT"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, relay.Apply(context.Background(), []byte(tt.payload)))
		})
	}
}
