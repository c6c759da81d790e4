package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/location"

	"github.com/redis/go-redis/v9"
)

var (
	liveKey     = buildKey("loc", "live")
	pendingKey  = buildKey("loc", "pending")
	flushingKey = buildKey("loc", "flushing")
	geoKey      = buildKey("loc", "geo")
	stampKey    = buildKey("loc", "stamp")
)

// recordScript applies a sample only when it is not older than the last one
// applied for the driver; ties keep the incoming sample. Stamps are unix
// microseconds so they stay exact as Lua numbers.
var recordScript = redis.NewScript(`
local last = redis.call("HGET", KEYS[4], ARGV[1])
if last and tonumber(last) > tonumber(ARGV[3]) then
	return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
redis.call("HSET", KEYS[2], ARGV[1], ARGV[2])
redis.call("GEOADD", KEYS[3], ARGV[4], ARGV[5], ARGV[1])
redis.call("HSET", KEYS[4], ARGV[1], ARGV[3])
return 1
`)

// positionRecord is the hash field value; the driver id is the field name.
type positionRecord struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Heading    float64   `json:"heading"`
	RecordedAt time.Time `json:"recordedAt"`
}

// LocationBuffer keeps one field per driver in three structures: the live hash
// (read by Latest), the pending hash (drained by the flush) and the geo set
// (searched by Nearby). A driver reporting 50 times between two flushes leaves
// one pending field, hence one history row. Samples arriving out of order never
// replace a newer one.
type LocationBuffer struct {
	client *redis.Client
}

func NewLocationBuffer(client *redis.Client) *LocationBuffer {
	return &LocationBuffer{client: client}
}

func (b *LocationBuffer) Record(ctx context.Context, p location.Position) error {
	raw, err := json.Marshal(positionRecord{
		Lat:        p.Point.Lat(),
		Lng:        p.Point.Lng(),
		Heading:    p.Heading,
		RecordedAt: p.RecordedAt,
	})
	if err != nil {
		return err
	}
	field := p.DriverID.String()

	err = recordScript.Run(ctx, b.client,
		[]string{liveKey, pendingKey, geoKey, stampKey},
		field, raw, p.RecordedAt.UnixMicro(), p.Point.Lng(), p.Point.Lat(),
	).Err()
	if err != nil {
		return fmt.Errorf("record position of driver %s: %w", field, err)
	}
	return nil
}

func (b *LocationBuffer) Latest(ctx context.Context, driverID kernel.UUID) (*location.Position, error) {
	raw, err := b.client.HGet(ctx, liveKey, driverID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p, err := decodePosition(driverID.String(), raw)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (b *LocationBuffer) Nearby(
	ctx context.Context, center kernel.GeoPoint, radiusKm float64, limit int,
) ([]location.Nearby, error) {
	found, err := b.client.GeoRadius(ctx, geoKey, center.Lng(), center.Lat(), &redis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithCoord: true,
		WithDist:  true,
		Count:     limit,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("search live positions: %w", err)
	}

	out := make([]location.Nearby, 0, len(found))
	for _, g := range found {
		driverID, err := kernel.UUIDFromString(g.Name)
		if err != nil {
			return nil, err
		}
		point, err := kernel.NewGeoPoint(g.Latitude, g.Longitude)
		if err != nil {
			return nil, err
		}
		out = append(out, location.Nearby{DriverID: driverID, Point: point, DistanceKm: g.Dist})
	}
	return out, nil
}

// BeginFlush returns the leftovers of a failed flush when there are any, and
// otherwise renames the pending hash aside. Callers hold the flush lock.
func (b *LocationBuffer) BeginFlush(ctx context.Context) ([]location.Position, error) {
	leftover, err := b.client.HGetAll(ctx, flushingKey).Result()
	if err != nil {
		return nil, err
	}
	if len(leftover) > 0 {
		return decodePositions(leftover)
	}

	exists, err := b.client.Exists(ctx, pendingKey).Result()
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, nil
	}
	if err = b.client.Rename(ctx, pendingKey, flushingKey).Err(); err != nil {
		return nil, fmt.Errorf("rotate pending positions: %w", err)
	}

	drained, err := b.client.HGetAll(ctx, flushingKey).Result()
	if err != nil {
		return nil, err
	}
	return decodePositions(drained)
}

func (b *LocationBuffer) CompleteFlush(ctx context.Context) error {
	return b.client.Del(ctx, flushingKey).Err()
}

func decodePositions(fields map[string]string) ([]location.Position, error) {
	out := make([]location.Position, 0, len(fields))
	for field, raw := range fields {
		p, err := decodePosition(field, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func decodePosition(field, raw string) (location.Position, error) {
	driverID, err := kernel.UUIDFromString(field)
	if err != nil {
		return location.Position{}, err
	}
	var rec positionRecord
	if err = json.Unmarshal([]byte(raw), &rec); err != nil {
		return location.Position{}, fmt.Errorf("decode position of driver %s: %w", field, err)
	}
	return location.NewPosition(driverID, rec.Lat, rec.Lng, rec.Heading, rec.RecordedAt)
}
