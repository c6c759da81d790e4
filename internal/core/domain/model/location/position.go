// Package location holds driver position samples streamed by the driver app.
package location

import (
	"errors"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
)

// Position is one GPS sample. Only the latest sample per driver is kept live; the
// history keeps whatever was latest at each flush.
type Position struct {
	DriverID   kernel.UUID
	Point      kernel.GeoPoint
	Heading    float64
	RecordedAt time.Time
}

func NewPosition(driverID kernel.UUID, lat, lng, heading float64, recordedAt time.Time) (Position, error) {
	point, err := kernel.NewGeoPoint(lat, lng)
	joined := errors.Join(driverID.Validate(), err)
	if heading < 0 || heading >= 360 {
		joined = errors.Join(joined, errs.NewValueIsOutOfRangeError("heading", heading, 0, 360))
	}
	if recordedAt.IsZero() {
		joined = errors.Join(joined, errs.NewValueIsRequiredError("recordedAt"))
	}
	if joined != nil {
		return Position{}, joined
	}
	return Position{DriverID: driverID, Point: point, Heading: heading, RecordedAt: recordedAt.UTC()}, nil
}

// Nearby is a driver found by a radius search on the live positions.
type Nearby struct {
	DriverID   kernel.UUID
	Point      kernel.GeoPoint
	DistanceKm float64
}
