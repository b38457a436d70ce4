// Package driver provides driver records, the geospatial driver index and
// transactional capacity control.
package driver

import (
	"errors"

	"github.com/ridepool/ridepool/internal/route"
	"github.com/ridepool/ridepool/pkg/polyline"
)

// Repository errors.
var (
	ErrDriverNotFound = errors.New("driver not found")
)

// Driver is an active driver's record.
type Driver struct {
	ID                string
	DisplayName       string
	Capacity          int
	NotificationToken string
	VehicleID         string
}

// Vehicle is the vehicle registered to a driver.
type Vehicle struct {
	ID          string
	Plate       string
	Description string
}

// Nearby is one geospatial query result: a driver within the search radius
// together with its last reported location and encoded current path.
type Nearby struct {
	ID          string
	Location    polyline.Coordinate
	EncodedPath string
}

// Candidate is a scored dispatch candidate. It lives for the duration of one
// dispatch attempt and is never persisted.
type Candidate struct {
	ID             string
	Location       polyline.Coordinate
	EncodedPath    string
	DistanceMeters float64
	Route          *route.Route
}

// WalkLengthMeters is the candidate's combined pickup and dropoff walk
// length, 0 when the route needs no walking.
func (c *Candidate) WalkLengthMeters() float64 {
	if c.Route == nil {
		return 0
	}
	var total float64
	if c.Route.PickupWalk != nil {
		total += c.Route.PickupWalk.LengthMeters
	}
	if c.Route.DropoffWalk != nil {
		total += c.Route.DropoffWalk.LengthMeters
	}
	return total
}
