// Package geo provides the geometric primitives used by trip dispatch:
// great-circle distances, path lengths, point-to-segment projection and
// path intersection.
package geo

import (
	"math"

	"github.com/ridepool/ridepool/pkg/polyline"
)

const earthRadiusMeters = 6371000

// Haversine returns the great-circle distance between two points in meters.
func Haversine(a, b polyline.Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	sinDLat := math.Sin(dLat / 2)
	sinDLng := math.Sin(dLng / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLng*sinDLng
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// PathLength returns the cumulative haversine length of a path in meters.
// Paths with fewer than two points have length 0.
func PathLength(path []polyline.Coordinate) float64 {
	if len(path) < 2 {
		return 0
	}

	var total float64
	for i := 1; i < len(path); i++ {
		total += Haversine(path[i-1], path[i])
	}
	return total
}

// DistanceToSegment returns the shortest distance from p to the segment
// [a, b], clamped to the segment endpoints, together with the projected
// point. The projection runs in plain lat/lng space rather than on the
// sphere; the error is negligible at city-block scale.
func DistanceToSegment(p, a, b polyline.Coordinate) (float64, polyline.Coordinate) {
	dx := p.Lat - a.Lat
	dy := p.Lng - a.Lng
	sx := b.Lat - a.Lat
	sy := b.Lng - a.Lng

	dot := dx*sx + dy*sy
	lenSq := sx*sx + sy*sy

	t := -1.0
	if lenSq != 0 { // zero-length segment degenerates to a point
		t = dot / lenSq
	}

	var proj polyline.Coordinate
	switch {
	case t < 0:
		proj = a
	case t > 1:
		proj = b
	default:
		proj = polyline.Coordinate{Lat: a.Lat + t*sx, Lng: a.Lng + t*sy}
	}

	ddx := p.Lat - proj.Lat
	ddy := p.Lng - proj.Lng
	return math.Sqrt(ddx*ddx + ddy*ddy), proj
}

// IndexOnPath returns the index of the first path point exactly equal to p,
// or -1 if p does not appear on the path.
func IndexOnPath(p polyline.Coordinate, path []polyline.Coordinate) int {
	for i, pt := range path {
		if pt == p {
			return i
		}
	}
	return -1
}

// Intersection describes a contiguous run of overlay-path points that also
// appear on a base path. First and Last index into the overlay path.
type Intersection struct {
	First  int
	Last   int
	Points []polyline.Coordinate
}

// FindIntersection finds the maximal contiguous run of overlay points that
// also appear in base, scanning overlay in order and ending the run at the
// first non-matching point once any match has been made. It returns nil when
// the paths share no points.
func FindIntersection(base, overlay []polyline.Coordinate) *Intersection {
	if len(base) == 0 || len(overlay) == 0 {
		return nil
	}

	onBase := make(map[polyline.Coordinate]struct{}, len(base))
	for _, p := range base {
		onBase[p] = struct{}{}
	}

	var points []polyline.Coordinate
	first := -1
	last := -1

	for i, p := range overlay {
		if _, ok := onBase[p]; ok {
			points = append(points, p)
			if first < 0 {
				first = i
			}
			last = i
		} else if len(points) > 0 {
			break
		}
	}

	if len(points) == 0 {
		return nil
	}
	return &Intersection{First: first, Last: last, Points: points}
}
