package zone

import (
	"fmt"
	"math"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// ShapeKind is CIRCLE, POLYGON or RECTANGLE.
type ShapeKind int

const (
	UnknownShape ShapeKind = iota
	Circle
	Polygon
	Rectangle
)

func (k ShapeKind) String() string {
	switch k {
	case Circle:
		return "CIRCLE"
	case Polygon:
		return "POLYGON"
	case Rectangle:
		return "RECTANGLE"
	default:
		return "UNKNOWN"
	}
}

func ParseShapeKind(s string) (ShapeKind, error) {
	for _, k := range []ShapeKind{Circle, Polygon, Rectangle} {
		if k.String() == s {
			return k, nil
		}
	}
	return UnknownShape, errs.NewValueIsInvalidErrorWithCause("shape", fmt.Errorf("%q is not a valid shape", s))
}

// Shape is the geometry of a zone. Coordinates are orb (lng, lat) points.
type Shape struct {
	kind     ShapeKind
	center   kernel.GeoPoint
	radiusKm float64
	polygon  orb.Polygon
	bound    orb.Bound
}

func NewCircle(center kernel.GeoPoint, radiusKm float64) (Shape, error) {
	if err := center.Validate(); err != nil {
		return Shape{}, err
	}
	if radiusKm <= 0 {
		return Shape{}, errs.NewValueIsOutOfRangeError("radiusKm", radiusKm, 0, "unbounded")
	}
	return Shape{
		kind:     Circle,
		center:   center,
		radiusKm: radiusKm,
		bound:    geo.NewBoundAroundPoint(center.Orb(), radiusKm*1000),
	}, nil
}

// NewPolygon accepts a ring of at least three distinct points; it is closed if needed.
func NewPolygon(ring orb.Ring) (Shape, error) {
	if len(ring) < 3 {
		return Shape{}, errs.NewValueIsInvalidErrorWithCause("ring", fmt.Errorf("%d points, need at least 3", len(ring)))
	}
	for _, p := range ring {
		if _, err := kernel.GeoPointFromOrb(p); err != nil {
			return Shape{}, err
		}
	}
	closed := append(orb.Ring(nil), ring...)
	if !closed.Closed() {
		closed = append(closed, closed[0])
	}
	poly := orb.Polygon{closed}
	return Shape{kind: Polygon, polygon: poly, bound: poly.Bound()}, nil
}

func NewRectangle(bound orb.Bound) (Shape, error) {
	if _, err := kernel.GeoPointFromOrb(bound.Min); err != nil {
		return Shape{}, err
	}
	if _, err := kernel.GeoPointFromOrb(bound.Max); err != nil {
		return Shape{}, err
	}
	if bound.Min.X() >= bound.Max.X() || bound.Min.Y() >= bound.Max.Y() {
		return Shape{}, errs.NewValueIsInvalidErrorWithCause("bound", fmt.Errorf("min %v is not below max %v", bound.Min, bound.Max))
	}
	return Shape{kind: Rectangle, bound: bound}, nil
}

func (s Shape) Kind() ShapeKind { return s.kind }

func (s Shape) Center() kernel.GeoPoint { return s.center }

func (s Shape) RadiusKm() float64 { return s.radiusKm }

func (s Shape) Bound() orb.Bound { return s.bound }

// Geometry is the orb geometry persisted as GeoJSON: a point for circles.
func (s Shape) Geometry() orb.Geometry {
	switch s.kind {
	case Circle:
		return s.center.Orb()
	case Polygon:
		return s.polygon
	case Rectangle:
		return s.bound
	case UnknownShape:
	}
	return nil
}

// Contains reports whether p lies inside the shape.
func (s Shape) Contains(p kernel.GeoPoint) bool {
	if p.Validate() != nil {
		return false
	}
	switch s.kind {
	case Circle:
		return geo.DistanceHaversine(s.center.Orb(), p.Orb()) <= s.radiusKm*1000
	case Polygon:
		return s.bound.Contains(p.Orb()) && planar.PolygonContains(s.polygon, p.Orb())
	case Rectangle:
		return s.bound.Contains(p.Orb())
	case UnknownShape:
	}
	return false
}

// AreaKm2 is the approximate area, used to prefer the most specific zone.
func (s Shape) AreaKm2() float64 {
	switch s.kind {
	case Circle:
		return math.Pi * s.radiusKm * s.radiusKm
	case Polygon:
		return math.Abs(geo.Area(s.polygon)) / 1e6
	case Rectangle:
		return math.Abs(geo.Area(s.bound.ToPolygon())) / 1e6
	case UnknownShape:
	}
	return math.Inf(1)
}

// SearchRadiusKm is the radius around BoundCenter that covers the whole shape.
func (s Shape) SearchRadiusKm() float64 {
	if s.kind == Circle {
		return s.radiusKm
	}
	return geo.DistanceHaversine(s.bound.Center(), s.bound.Max) / 1000
}

// BoundCenter is the center of the bounding box.
func (s Shape) BoundCenter() kernel.GeoPoint {
	if s.kind == Circle {
		return s.center
	}
	p, _ := kernel.GeoPointFromOrb(s.bound.Center())
	return p
}
