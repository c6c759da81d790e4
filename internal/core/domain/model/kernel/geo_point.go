package kernel

import (
	"errors"
	"fmt"

	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

const (
	LatitudeMin  = -90.0
	LatitudeMax  = 90.0
	LongitudeMin = -180.0
	LongitudeMax = 180.0
)

// ErrGeoPointIsNotConstructed is returned when a zero-value GeoPoint is used.
var ErrGeoPointIsNotConstructed = errs.NewValueIsRequiredError(
	"geo point must be created via NewGeoPoint")

// GeoPoint is an immutable WGS84 coordinate. Stops, driver positions, zone centers
// and mission destinations are all expressed with it.
type GeoPoint struct { //nolint:recvcheck // setters use pointer receivers during construction
	lat   float64
	lng   float64
	guard guard.ConstructorGuard
}

// NewGeoPoint validates latitude and longitude ranges and builds a GeoPoint.
func NewGeoPoint(lat, lng float64) (GeoPoint, error) {
	p := GeoPoint{guard: guard.NewConstructorGuard()}
	if err := errors.Join(p.setLat(lat), p.setLng(lng)); err != nil {
		return GeoPoint{}, err
	}
	return p, nil
}

// GeoPointFromOrb converts an orb point (lng, lat order) into a GeoPoint.
func GeoPointFromOrb(p orb.Point) (GeoPoint, error) {
	return NewGeoPoint(p.Lat(), p.Lon())
}

func (p GeoPoint) Validate() error {
	return p.guard.Validate(ErrGeoPointIsNotConstructed)
}

func (p GeoPoint) Lat() float64 {
	return p.lat
}

func (p GeoPoint) Lng() float64 {
	return p.lng
}

// Orb returns the point in orb's (lng, lat) order for geometry operations.
func (p GeoPoint) Orb() orb.Point {
	return orb.Point{p.lng, p.lat}
}

func (p GeoPoint) String() string {
	return fmt.Sprintf("GeoPoint(%.6f,%.6f)", p.lat, p.lng)
}

func (p GeoPoint) IsEqual(other GeoPoint) bool {
	return p.lat == other.lat && p.lng == other.lng
}

// DistanceKm is the great-circle (haversine) distance between two points.
func (p GeoPoint) DistanceKm(other GeoPoint) (float64, error) {
	if err := errors.Join(p.Validate(), other.Validate()); err != nil {
		return 0, err
	}
	return geo.DistanceHaversine(p.Orb(), other.Orb()) / 1000, nil
}

func (p *GeoPoint) setLat(lat float64) error {
	if lat < LatitudeMin || lat > LatitudeMax {
		return errs.NewValueIsOutOfRangeError("lat", lat, LatitudeMin, LatitudeMax)
	}
	p.lat = lat
	return nil
}

func (p *GeoPoint) setLng(lng float64) error {
	if lng < LongitudeMin || lng > LongitudeMax {
		return errs.NewValueIsOutOfRangeError("lng", lng, LongitudeMin, LongitudeMax)
	}
	p.lng = lng
	return nil
}
