// README: Driver location index backed by Redis GEO.
package matching

import (
	"context"

	"github.com/redis/go-redis/v9"

	"tripsim/internal/types"
)

const driverGeoKey = "dispatch:drivers"

// Store tracks driver connections by their last reported position so an
// offer can be unicast to the closest one. It satisfies DriverIndex.
type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

// UpdateDriver upserts the driver connection's position.
func (s *Store) UpdateDriver(ctx context.Context, conn types.ID, p types.Point) error {
	return s.redis.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      string(conn),
		Longitude: p.Lon,
		Latitude:  p.Lat,
	}).Err()
}

// RemoveDriver drops the driver connection from the index, typically on
// disconnect.
func (s *Store) RemoveDriver(ctx context.Context, conn types.ID) error {
	return s.redis.ZRem(ctx, driverGeoKey, string(conn)).Err()
}

// Nearest returns the closest indexed driver connection within radiusKm.
func (s *Store) Nearest(ctx context.Context, p types.Point, radiusKm float64) (types.ID, bool, error) {
	results, err := s.redis.GeoSearch(ctx, driverGeoKey, &redis.GeoSearchQuery{
		Longitude:  p.Lon,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
		Count:      1,
	}).Result()
	if err != nil {
		return "", false, err
	}
	if len(results) == 0 {
		return "", false, nil
	}
	return types.ID(results[0]), true, nil
}
