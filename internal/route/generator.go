// Package route computes the optimal combined route for absorbing a rider's
// trip into a driver's current path, including bounded pickup and dropoff
// walking segments.
package route

import (
	"errors"

	"github.com/ridepool/ridepool/internal/geo"
	"github.com/ridepool/ridepool/pkg/polyline"
)

// MaxWalkDistanceMeters bounds how far a rider may walk to board or after
// alighting. Routes requiring a longer walk are infeasible.
const MaxWalkDistanceMeters = 150

// ErrEmptyRiderPath reports a generator constructed without rider geometry.
var ErrEmptyRiderPath = errors.New("rider path must not be empty")

// Walk is an on-foot segment of the rider's journey.
type Walk struct {
	Path         []polyline.Coordinate
	Polyline     string
	LengthMeters float64
}

// Route is the combined result of splicing a rider's trip into a driver's
// path. TripPath is never empty; a nil *Route means no feasible route exists,
// which is an expected outcome during search rather than an error.
type Route struct {
	PickupWalk     *Walk
	DropoffWalk    *Walk
	TripPath       []polyline.Coordinate
	TripPolyline   string
	DriverPolyline string
}

// Generator computes optimal routes for one rider path against candidate
// drivers.
type Generator struct {
	riderPath []polyline.Coordinate
}

// NewGenerator creates a generator for the given rider path.
func NewGenerator(riderPath []polyline.Coordinate) (*Generator, error) {
	if len(riderPath) == 0 {
		return nil, ErrEmptyRiderPath
	}
	return &Generator{riderPath: riderPath}, nil
}

// OptimalRoute returns the best way for a driver at driverLocation with the
// given current path to serve the rider's trip, or nil when no feasible route
// exists. allowWalk permits walking segments and is set only for shared trips.
func (g *Generator) OptimalRoute(driverLocation polyline.Coordinate, driverPath []polyline.Coordinate, allowWalk bool) *Route {
	// An idle driver simply drives the rider's path.
	if len(driverPath) == 0 {
		encoded := polyline.Encode(g.riderPath)
		return &Route{
			TripPath:       g.riderPath,
			TripPolyline:   encoded,
			DriverPolyline: encoded,
		}
	}

	intersection := geo.FindIntersection(driverPath, g.riderPath)
	if intersection == nil {
		return nil
	}

	var pickupWalk *Walk
	if intersection.First > 0 {
		boardingPoint := g.riderPath[intersection.First]

		if !allowWalk ||
			geo.Haversine(g.riderPath[0], boardingPoint) > MaxWalkDistanceMeters ||
			vehicleCrossedPoint(driverLocation, boardingPoint, driverPath) {
			return nil
		}

		walkPath := g.riderPath[:intersection.First+1]
		length := geo.PathLength(walkPath)
		if length > MaxWalkDistanceMeters {
			return nil
		}

		pickupWalk = &Walk{
			Path:         walkPath,
			Polyline:     polyline.Encode(walkPath),
			LengthMeters: length,
		}
	}

	tripPath := intersection.Points
	newDriverPath := driverPath

	var dropoffWalk *Walk
	switch {
	case g.riderPath[intersection.Last] == driverPath[len(driverPath)-1]:
		// The overlap ends exactly where the driver's path ends, so the
		// driver continues straight onto the rider's remaining tail.
		tail := g.riderPath[intersection.Last+1:]
		newDriverPath = append(append([]polyline.Coordinate{}, driverPath...), tail...)
		tripPath = append(append([]polyline.Coordinate{}, tripPath...), tail...)

	case len(g.riderPath) > intersection.Last+1:
		alightingPoint := g.riderPath[intersection.Last]

		if !allowWalk ||
			geo.Haversine(alightingPoint, g.riderPath[len(g.riderPath)-1]) > MaxWalkDistanceMeters {
			return nil
		}

		walkPath := g.riderPath[intersection.Last:]
		length := geo.PathLength(walkPath)
		if length > MaxWalkDistanceMeters {
			return nil
		}

		dropoffWalk = &Walk{
			Path:         walkPath,
			Polyline:     polyline.Encode(walkPath),
			LengthMeters: length,
		}
	}

	return &Route{
		PickupWalk:     pickupWalk,
		DropoffWalk:    dropoffWalk,
		TripPath:       tripPath,
		TripPolyline:   polyline.Encode(tripPath),
		DriverPolyline: polyline.Encode(newDriverPath),
	}
}

// vehicleCrossedPoint reports whether the driver has already driven past
// point on its path, by checking whether the path segment closest to the
// driver's location lies after the point. Best-effort: self-intersecting
// paths can trip it.
func vehicleCrossedPoint(location, point polyline.Coordinate, path []polyline.Coordinate) bool {
	indexOfPoint := geo.IndexOnPath(point, path)
	shortest := 0.0
	found := false

	for i := 0; i < len(path)-1; i++ {
		d, _ := geo.DistanceToSegment(location, path[i], path[i+1])
		if !found || d < shortest {
			if i > indexOfPoint {
				return true
			}
			shortest = d
			found = true
		}
	}

	return false
}
