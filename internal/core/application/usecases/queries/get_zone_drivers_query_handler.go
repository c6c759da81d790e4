package queries

import (
	"context"

	"dispatch/internal/pkg/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GetZoneDriversQueryHandler struct {
	db *gorm.DB
}

func NewGetZoneDriversQueryHandler(db *gorm.DB) GetZoneDriversQueryHandler {
	return GetZoneDriversQueryHandler{db: db}
}

// Handle returns ErrObjectNotFound for an unknown zone and an empty slice for a
// zone without drivers.
func (h GetZoneDriversQueryHandler) Handle(
	ctx context.Context,
	query GetZoneDriversQuery,
) ([]GetZoneDriversQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	db := h.db.WithContext(ctx)
	var zones int64
	if err := db.Raw(`SELECT COUNT(*) FROM zones WHERE id = ?`, query.ZoneID().Bytes()).
		Scan(&zones).Error; err != nil {
		return nil, err
	}
	if zones == 0 {
		return nil, errs.NewObjectNotFoundError("zone", query.ZoneID().String())
	}

	rows, err := db.Raw(`
		SELECT
			d.id,
			d.name,
			d.work_mode,
			d.online
		FROM zone_drivers zd
		JOIN drivers d ON d.id = zd.driver_id
		WHERE zd.zone_id = ?
		ORDER BY d.name
	`, query.ZoneID().Bytes()).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drivers := make([]GetZoneDriversQueryResponse, 0)
	for rows.Next() {
		var resp GetZoneDriversQueryResponse
		var id uuid.UUID

		if err = rows.Scan(&id, &resp.Name, &resp.WorkMode, &resp.Online); err != nil {
			return nil, err
		}
		if resp.DriverID, err = toKernelID(id); err != nil {
			return nil, err
		}
		drivers = append(drivers, resp)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return drivers, nil
}
