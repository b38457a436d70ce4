// Package dispatch orchestrates trip matching: expanding-radius driver
// search, multi-criterion scoring and the timed offer loop.
package dispatch

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ridepool/ridepool/internal/driver"
	"github.com/ridepool/ridepool/internal/geo"
	"github.com/ridepool/ridepool/internal/route"
	"github.com/ridepool/ridepool/internal/trip"
	"github.com/ridepool/ridepool/pkg/minheap"
	"github.com/ridepool/ridepool/pkg/polyline"
)

// cachedCandidate memoises one driver's route computation. Recomputed only
// when the driver's reported location or current path changes between
// iterations.
type cachedCandidate struct {
	location       polyline.Coordinate
	encodedPath    string
	distanceMeters float64
	route          *route.Route
}

// SearchConfig carries the dependencies and the trip under dispatch for one
// driver search.
type SearchConfig struct {
	Trip *trip.Trip

	// Ignore seeds the skip list with drivers the rider excluded up front.
	Ignore []string

	Index         driver.GeoIndex
	Logger        zerolog.Logger
	StartRadiusKm float64
}

// Search finds the best-scoring eligible driver for one trip. State lives
// for a single dispatch attempt: the current radius, per-driver route cache
// and the skip list of drivers already tried.
type Search struct {
	trip     *trip.Trip
	gen      *route.Generator
	index    driver.GeoIndex
	logger   zerolog.Logger
	radiusKm float64
	cache    map[string]*cachedCandidate
	skip     map[string]struct{}
}

// NewSearch builds a search over the trip's rider path. The pickup polyline
// must decode to a non-empty path.
func NewSearch(cfg SearchConfig) (*Search, error) {
	riderPath := polyline.Decode(cfg.Trip.Pickup.Polyline)
	gen, err := route.NewGenerator(riderPath)
	if err != nil {
		return nil, err
	}
	skip := make(map[string]struct{}, len(cfg.Ignore))
	for _, id := range cfg.Ignore {
		skip[id] = struct{}{}
	}
	return &Search{
		trip:     cfg.Trip,
		gen:      gen,
		index:    cfg.Index,
		logger:   cfg.Logger,
		radiusKm: cfg.StartRadiusKm,
		cache:    make(map[string]*cachedCandidate),
		skip:     skip,
	}, nil
}

// RadiusKm returns the current search radius.
func (s *Search) RadiusKm() float64 {
	return s.radiusKm
}

// ExpandRadius doubles the search radius for the next iteration.
func (s *Search) ExpandRadius() {
	s.radiusKm *= 2
}

// Skip excludes a driver from every subsequent iteration of this search.
func (s *Search) Skip(id string) {
	s.skip[id] = struct{}{}
}

// FindBestCandidate queries the geo index at the current radius, scores every
// eligible driver and returns the best one. A nil candidate with a nil error
// means no eligible driver exists at this radius.
func (s *Search) FindBestCandidate(ctx context.Context) (*driver.Candidate, error) {
	pickup := s.trip.Pickup.Coordinates
	nearby, err := s.index.QueryNear(ctx, pickup, s.radiusKm, s.trip.VehicleType)
	if err != nil {
		return nil, err
	}

	heap := minheap.New[scoredCandidate](lessScored)
	for _, n := range nearby {
		if _, skipped := s.skip[n.ID]; skipped {
			continue
		}
		// The index over-returns at the bounding-box level; re-check
		// the exact great-circle distance.
		distance := geo.Haversine(n.Location, pickup)
		if distance > s.radiusKm*1000 {
			continue
		}
		cached := s.candidate(n, distance)
		if cached.route == nil {
			continue
		}
		score := ScoreVector{cached.distanceMeters, walkLength(cached.route)}
		heap.Push(scoredCandidate{driverID: n.ID, score: score.Norm()})
	}

	s.logger.Debug().
		Float64("radius_km", s.radiusKm).
		Int("nearby", len(nearby)).
		Int("eligible", heap.Len()).
		Msg("scored search iteration")

	best, ok := heap.Pop()
	if !ok {
		return nil, nil
	}
	cached := s.cache[best.driverID]
	return &driver.Candidate{
		ID:             best.driverID,
		Location:       cached.location,
		EncodedPath:    cached.encodedPath,
		DistanceMeters: cached.distanceMeters,
		Route:          cached.route,
	}, nil
}

// candidate returns the cached route for a driver, recomputing it when the
// driver's location or path changed since the last iteration.
func (s *Search) candidate(n driver.Nearby, distance float64) *cachedCandidate {
	if cached, ok := s.cache[n.ID]; ok && cached.location == n.Location && cached.encodedPath == n.EncodedPath {
		cached.distanceMeters = distance
		return cached
	}
	var driverPath []polyline.Coordinate
	if n.EncodedPath != "" {
		driverPath = polyline.Decode(n.EncodedPath)
	}
	cached := &cachedCandidate{
		location:       n.Location,
		encodedPath:    n.EncodedPath,
		distanceMeters: distance,
		route:          s.gen.OptimalRoute(n.Location, driverPath, s.trip.AllowsWalking()),
	}
	s.cache[n.ID] = cached
	return cached
}

func walkLength(r *route.Route) float64 {
	var total float64
	if r.PickupWalk != nil {
		total += r.PickupWalk.LengthMeters
	}
	if r.DropoffWalk != nil {
		total += r.DropoffWalk.LengthMeters
	}
	return total
}
