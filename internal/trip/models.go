// Package trip provides the trip domain model and persistence.
package trip

import (
	"errors"
	"fmt"
	"time"

	"github.com/ridepool/ridepool/pkg/polyline"
)

// Repository errors.
var (
	ErrTripNotFound = errors.New("trip not found")
)

// Type is the kind of trip requested.
type Type string

// Trip types.
const (
	TypePrivate  Type = "PRIVATE"
	TypeShared   Type = "SHARED"
	TypeDoorstep Type = "DOORSTEP"
)

// ParseType validates a trip type string.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypePrivate, TypeShared, TypeDoorstep:
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown trip type %q", s)
}

// VehicleType is the class of vehicle requested for a trip.
type VehicleType string

// Vehicle types.
const (
	VehicleTaxi     VehicleType = "TAXI"
	VehicleRickshaw VehicleType = "RICKSHAW"
	VehicleBike     VehicleType = "BIKE"
)

// ParseVehicleType validates a vehicle type string.
func ParseVehicleType(s string) (VehicleType, error) {
	switch VehicleType(s) {
	case VehicleTaxi, VehicleRickshaw, VehicleBike:
		return VehicleType(s), nil
	}
	return "", fmt.Errorf("unknown vehicle type %q", s)
}

// PaymentMethod is how the rider intends to pay.
type PaymentMethod string

// Payment methods.
const (
	PaymentCash   PaymentMethod = "CASH"
	PaymentCard   PaymentMethod = "CARD"
	PaymentWallet PaymentMethod = "WALLET"
)

// ParsePaymentMethod validates a payment method string.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case PaymentCash, PaymentCard, PaymentWallet:
		return PaymentMethod(s), nil
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

// Status is the lifecycle state of a trip.
type Status string

// Trip statuses. Dispatch drives PENDING to MATCHED; trip start drives
// MATCHED to ACTIVE.
const (
	StatusPending  Status = "PENDING"
	StatusMatched  Status = "MATCHED"
	StatusActive   Status = "ACTIVE"
	StatusComplete Status = "COMPLETE"
	StatusCanceled Status = "CANCELED"
)

// Location is a named point on a trip route. Polyline, when set, is the
// encoded rider path attached to the location.
type Location struct {
	Coordinates polyline.Coordinate
	Address     string
	Polyline    string
}

// DriverInfo is the driver identity recorded on a matched trip.
type DriverInfo struct {
	ID          string
	DisplayName string
}

// VehicleInfo is the vehicle recorded on a matched trip.
type VehicleInfo struct {
	ID          string
	Plate       string
	Description string
	VehicleType VehicleType
}

// Walk is a persisted on-foot segment of a matched trip.
type Walk struct {
	Polyline     string
	LengthMeters float64
}

// Trip is the trip aggregate.
type Trip struct {
	ID            string
	RiderID       string
	Type          Type
	VehicleType   VehicleType
	PaymentMethod PaymentMethod
	Passengers    int
	Status        Status

	Pickup  Location
	DropOff Location

	// Set when the trip is matched.
	TripPolyline string
	PickupWalk   *Walk
	DropoffWalk  *Walk
	Driver       *DriverInfo
	Vehicle      *VehicleInfo

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AllowsWalking reports whether walking segments may be part of the route.
// Only shared trips tolerate a walk to the boarding point.
func (t *Trip) AllowsWalking() bool {
	return t.Type == TypeShared
}

// CreateRequest is the immutable input to one dispatch call.
type CreateRequest struct {
	RiderID       string
	Type          Type
	VehicleType   VehicleType
	PaymentMethod PaymentMethod
	Passengers    int
	Pickup        Location
	DropOff       Location

	// IgnoreDrivers seeds the dispatch skip-list.
	IgnoreDrivers []string
}

// Validate rejects malformed requests before any search begins.
func (r *CreateRequest) Validate() error {
	if _, err := ParseType(string(r.Type)); err != nil {
		return err
	}
	if _, err := ParseVehicleType(string(r.VehicleType)); err != nil {
		return err
	}
	if _, err := ParsePaymentMethod(string(r.PaymentMethod)); err != nil {
		return err
	}
	if r.Passengers < 1 {
		return errors.New("passengers must be at least 1")
	}
	if r.Pickup.Address == "" {
		return errors.New("pickup address is required")
	}
	if r.Pickup.Polyline == "" {
		return errors.New("pickup polyline is required")
	}
	if len(polyline.Decode(r.Pickup.Polyline)) == 0 {
		return errors.New("pickup polyline does not decode to a path")
	}
	if r.DropOff.Address == "" {
		return errors.New("dropoff address is required")
	}
	return nil
}
