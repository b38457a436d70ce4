package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/ridepool/ridepool/internal/trip"
	"github.com/ridepool/ridepool/pkg/polyline"
)

const (
	geoKeyPrefix  = "drivers:geo:%s"
	pathKeyPrefix = "drivers:path:%s"
)

// RedisGeoIndex is a GeoIndex backed by Redis GEO sets, one set per vehicle
// type, with current paths stored alongside as plain keys.
type RedisGeoIndex struct {
	client *redis.Client
}

// NewRedisGeoIndex creates a Redis-backed driver geo index.
func NewRedisGeoIndex(client *redis.Client) *RedisGeoIndex {
	return &RedisGeoIndex{client: client}
}

// QueryNear returns drivers of the given vehicle type within radiusKm of
// center. Redis GEOSEARCH is exact enough for dispatch but callers still
// re-filter by haversine distance against their own radius.
func (g *RedisGeoIndex) QueryNear(ctx context.Context, center polyline.Coordinate, radiusKm float64, vehicleType trip.VehicleType) ([]Nearby, error) {
	locations, err := g.client.GeoSearchLocation(ctx, geoKey(vehicleType), &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  center.Lng,
			Latitude:   center.Lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
		},
		WithCoord: true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geo search: %w", err)
	}
	if len(locations) == 0 {
		return nil, nil
	}

	pathKeys := make([]string, len(locations))
	for i, loc := range locations {
		pathKeys[i] = pathKey(loc.Name)
	}
	paths, err := g.client.MGet(ctx, pathKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch current paths: %w", err)
	}

	results := make([]Nearby, len(locations))
	for i, loc := range locations {
		encodedPath := ""
		if s, ok := paths[i].(string); ok {
			encodedPath = s
		}
		results[i] = Nearby{
			ID:          loc.Name,
			Location:    polyline.Coordinate{Lat: loc.Latitude, Lng: loc.Longitude},
			EncodedPath: encodedPath,
		}
	}
	return results, nil
}

// SetLocation records a driver's current location in the index.
func (g *RedisGeoIndex) SetLocation(ctx context.Context, id string, loc polyline.Coordinate, vehicleType trip.VehicleType) error {
	return g.client.GeoAdd(ctx, geoKey(vehicleType), &redis.GeoLocation{
		Name:      id,
		Latitude:  loc.Lat,
		Longitude: loc.Lng,
	}).Err()
}

// SetCurrentPath records a driver's current encoded path.
func (g *RedisGeoIndex) SetCurrentPath(ctx context.Context, id string, encodedPath string) error {
	if encodedPath == "" {
		return g.client.Del(ctx, pathKey(id)).Err()
	}
	return g.client.Set(ctx, pathKey(id), encodedPath, 0).Err()
}

// Remove takes a driver out of the index.
func (g *RedisGeoIndex) Remove(ctx context.Context, id string, vehicleType trip.VehicleType) error {
	pipe := g.client.Pipeline()
	pipe.ZRem(ctx, geoKey(vehicleType), id)
	pipe.Del(ctx, pathKey(id))
	_, err := pipe.Exec(ctx)
	return err
}

func geoKey(vehicleType trip.VehicleType) string {
	return fmt.Sprintf(geoKeyPrefix, strings.ToLower(string(vehicleType)))
}

func pathKey(id string) string {
	return fmt.Sprintf(pathKeyPrefix, id)
}
