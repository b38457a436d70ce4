package models

import (
	"github.com/ridepool/ridepool/internal/trip"
	"github.com/ridepool/ridepool/pkg/polyline"
)

// CreateTripRequest is the body of POST /v1/trips.
type CreateTripRequest struct {
	Type          string   `json:"type"`
	VehicleType   string   `json:"vehicleType"`
	PaymentMethod string   `json:"paymentMethod"`
	Passengers    int      `json:"passengers"`
	Pickup        Place    `json:"pickup"`
	DropOff       Place    `json:"dropOff"`
	IgnoreDrivers []string `json:"ignoreDrivers,omitempty"`
}

// Place is a named location in a trip request or response. Polyline carries
// the caller's planned path from this point, encoded.
type Place struct {
	Point    Point  `json:"point"`
	Address  string `json:"address"`
	Polyline string `json:"polyline,omitempty"`
}

// WalkSegment is an on-foot portion of a matched trip.
type WalkSegment struct {
	Polyline     string  `json:"polyline"`
	LengthMeters float64 `json:"lengthMeters"`
}

// TripDriver is the matched driver's public identity.
type TripDriver struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// TripVehicle is the matched vehicle.
type TripVehicle struct {
	ID          string `json:"id"`
	Plate       string `json:"plate"`
	Description string `json:"description,omitempty"`
	VehicleType string `json:"vehicleType"`
}

// Trip is the API representation of a trip.
type Trip struct {
	ID            string       `json:"id"`
	RiderID       string       `json:"riderId"`
	Type          string       `json:"type"`
	VehicleType   string       `json:"vehicleType"`
	PaymentMethod string       `json:"paymentMethod"`
	Passengers    int          `json:"passengers"`
	Status        string       `json:"status"`
	Pickup        Place        `json:"pickup"`
	DropOff       Place        `json:"dropOff"`
	TripPolyline  string       `json:"tripPolyline,omitempty"`
	PickupWalk    *WalkSegment `json:"pickupWalk,omitempty"`
	DropoffWalk   *WalkSegment `json:"dropoffWalk,omitempty"`
	Driver        *TripDriver  `json:"driver,omitempty"`
	Vehicle       *TripVehicle `json:"vehicle,omitempty"`
	CreatedAt     Timestamp    `json:"createdAt"`
	UpdatedAt     Timestamp    `json:"updatedAt"`
}

// StartTripRequest is the body of POST /v1/trips/{tripId}:start.
type StartTripRequest struct {
	VerificationCode string `json:"verificationCode"`
}

// ToCreateRequest converts the API request into the domain request for the
// given authenticated rider.
func (r *CreateTripRequest) ToCreateRequest(riderID string) *trip.CreateRequest {
	return &trip.CreateRequest{
		RiderID:       riderID,
		Type:          trip.Type(r.Type),
		VehicleType:   trip.VehicleType(r.VehicleType),
		PaymentMethod: trip.PaymentMethod(r.PaymentMethod),
		Passengers:    r.Passengers,
		Pickup:        toLocation(r.Pickup),
		DropOff:       toLocation(r.DropOff),
		IgnoreDrivers: r.IgnoreDrivers,
	}
}

func toLocation(p Place) trip.Location {
	return trip.Location{
		Coordinates: polyline.Coordinate{Lat: p.Point.Lat, Lng: p.Point.Lng},
		Address:     p.Address,
		Polyline:    p.Polyline,
	}
}

// TripFromDomain converts a domain trip into its API representation.
func TripFromDomain(t *trip.Trip) *Trip {
	out := &Trip{
		ID:            t.ID,
		RiderID:       t.RiderID,
		Type:          string(t.Type),
		VehicleType:   string(t.VehicleType),
		PaymentMethod: string(t.PaymentMethod),
		Passengers:    t.Passengers,
		Status:        string(t.Status),
		Pickup:        placeFromLocation(t.Pickup),
		DropOff:       placeFromLocation(t.DropOff),
		TripPolyline:  t.TripPolyline,
		CreatedAt:     Timestamp(t.CreatedAt),
		UpdatedAt:     Timestamp(t.UpdatedAt),
	}
	if t.PickupWalk != nil {
		out.PickupWalk = &WalkSegment{Polyline: t.PickupWalk.Polyline, LengthMeters: t.PickupWalk.LengthMeters}
	}
	if t.DropoffWalk != nil {
		out.DropoffWalk = &WalkSegment{Polyline: t.DropoffWalk.Polyline, LengthMeters: t.DropoffWalk.LengthMeters}
	}
	if t.Driver != nil {
		out.Driver = &TripDriver{ID: t.Driver.ID, DisplayName: t.Driver.DisplayName}
	}
	if t.Vehicle != nil {
		out.Vehicle = &TripVehicle{
			ID:          t.Vehicle.ID,
			Plate:       t.Vehicle.Plate,
			Description: t.Vehicle.Description,
			VehicleType: string(t.Vehicle.VehicleType),
		}
	}
	return out
}

func placeFromLocation(l trip.Location) Place {
	return Place{
		Point:    Point{Lat: l.Coordinates.Lat, Lng: l.Coordinates.Lng},
		Address:  l.Address,
		Polyline: l.Polyline,
	}
}
