package http

import (
	"fmt"
	"net/http"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/application/usecases/queries"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/zone"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ShapeRequest describes a zone. CIRCLE reads center and radiusKm, RECTANGLE
// reads bbox as [minLng, minLat, maxLng, maxLat], POLYGON reads a GeoJSON
// Polygon geometry whose outer ring is used.
type ShapeRequest struct {
	Kind     string            `json:"kind" validate:"required,oneof=CIRCLE POLYGON RECTANGLE"`
	Center   *PointRequest     `json:"center" validate:"required_if=Kind CIRCLE"`
	RadiusKm float64           `json:"radiusKm" validate:"min=0"`
	BBox     []float64         `json:"bbox" validate:"omitempty,len=4"`
	Geometry *geojson.Geometry `json:"geometry" validate:"required_if=Kind POLYGON"`
}

type PointRequest struct {
	Lat *float64 `json:"lat" validate:"required"`
	Lng *float64 `json:"lng" validate:"required"`
}

type CreateZoneRequest struct {
	ZoneID    *string      `json:"zoneId" validate:"omitempty,uuid"`
	Name      string       `json:"name" validate:"required"`
	OwnerType string       `json:"ownerType" validate:"required,oneof=PLATFORM COMPANY DRIVER"`
	OwnerID   *string      `json:"ownerId" validate:"omitempty,uuid"`
	Shape     ShapeRequest `json:"shape"`
}

type CreateZoneResponse struct {
	ID string `json:"id"`
}

func (r ShapeRequest) toDomain() (zone.Shape, error) {
	kind, err := zone.ParseShapeKind(r.Kind)
	if err != nil {
		return zone.Shape{}, err
	}
	switch kind {
	case zone.Circle:
		if r.Center == nil {
			return zone.Shape{}, echo.NewHTTPError(http.StatusBadRequest, "center is required")
		}
		center, err := kernel.NewGeoPoint(*r.Center.Lat, *r.Center.Lng)
		if err != nil {
			return zone.Shape{}, err
		}
		return zone.NewCircle(center, r.RadiusKm)
	case zone.Rectangle:
		if len(r.BBox) != 4 {
			return zone.Shape{}, echo.NewHTTPError(http.StatusBadRequest, "bbox must have 4 values")
		}
		return zone.NewRectangle(orb.Bound{
			Min: orb.Point{r.BBox[0], r.BBox[1]},
			Max: orb.Point{r.BBox[2], r.BBox[3]},
		})
	default:
		if r.Geometry == nil {
			return zone.Shape{}, echo.NewHTTPError(http.StatusBadRequest, "geometry is required")
		}
		polygon, ok := r.Geometry.Geometry().(orb.Polygon)
		if !ok || len(polygon) == 0 {
			return zone.Shape{}, echo.NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("geometry must be a Polygon, got %s", r.Geometry.Type))
		}
		return zone.NewPolygon(polygon[0])
	}
}

// CreateZone handles POST /api/v1/zones.
func (s *Server) CreateZone(c echo.Context) error {
	var req CreateZoneRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	zoneID := kernel.NewUUID()
	if id, err := optionalID(req.ZoneID); err != nil {
		return err
	} else if id != nil {
		zoneID = *id
	}
	ownerID, err := optionalID(req.OwnerID)
	if err != nil {
		return err
	}
	ownerType, err := zone.ParseOwnerType(req.OwnerType)
	if err != nil {
		return err
	}
	shape, err := req.Shape.toDomain()
	if err != nil {
		return err
	}

	cmd, err := commands.NewCreateZoneCommand(zoneID, req.Name, ownerType, ownerID, shape)
	if err != nil {
		return err
	}
	if err := s.h.Zones.Create(c.Request().Context(), cmd); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, CreateZoneResponse{ID: zoneID.String()})
}

type ZoneResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	OwnerType string  `json:"ownerType"`
	OwnerID   *string `json:"ownerId,omitempty"`
	Shape     string  `json:"shape"`
}

// FindZone handles GET /api/v1/zones/lookup?lat=..&lng=..
func (s *Server) FindZone(c echo.Context) error {
	var lat, lng float64
	if err := runtime.BindQueryParameter("form", true, true, "lat", c.QueryParams(), &lat); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "lat must be a number").SetInternal(err)
	}
	if err := runtime.BindQueryParameter("form", true, true, "lng", c.QueryParams(), &lng); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "lng must be a number").SetInternal(err)
	}

	query, err := queries.NewFindZoneQuery(lat, lng)
	if err != nil {
		return err
	}
	z, err := s.h.FindZone.Handle(c.Request().Context(), query)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ZoneResponse{
		ID:        z.ZoneID.String(),
		Name:      z.Name,
		OwnerType: z.OwnerType,
		OwnerID:   idString(z.OwnerID),
		Shape:     z.Shape,
	})
}

type ZoneDriverResponse struct {
	DriverID string `json:"driverId"`
	Name     string `json:"name"`
	WorkMode string `json:"workMode"`
	Online   bool   `json:"online"`
}

// GetZoneDrivers handles GET /api/v1/zones/:zoneId/drivers.
func (s *Server) GetZoneDrivers(c echo.Context) error {
	zoneID, err := pathID(c, "zoneId")
	if err != nil {
		return err
	}
	query, err := queries.NewGetZoneDriversQuery(zoneID)
	if err != nil {
		return err
	}
	rows, err := s.h.GetZoneDrivers.Handle(c.Request().Context(), query)
	if err != nil {
		return err
	}

	response := make([]ZoneDriverResponse, len(rows))
	for i, d := range rows {
		response[i] = ZoneDriverResponse{
			DriverID: d.DriverID.String(),
			Name:     d.Name,
			WorkMode: d.WorkMode,
			Online:   d.Online,
		}
	}
	return c.JSON(http.StatusOK, response)
}

type AssignZoneDriverRequest struct {
	DriverID string `json:"driverId" validate:"required,uuid"`
}

// AssignZoneDriver handles POST /api/v1/zones/:zoneId/drivers.
func (s *Server) AssignZoneDriver(c echo.Context) error {
	var req AssignZoneDriverRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	zoneID, err := pathID(c, "zoneId")
	if err != nil {
		return err
	}
	driverID, err := kernel.UUIDFromString(req.DriverID)
	if err != nil {
		return err
	}

	cmd, err := commands.NewAssignZoneDriverCommand(zoneID, driverID)
	if err != nil {
		return err
	}
	if err := s.h.Zones.AssignDriver(c.Request().Context(), cmd); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
