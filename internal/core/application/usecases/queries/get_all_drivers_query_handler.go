package queries

import (
	"context"

	"dispatch/internal/core/domain/model/mission"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GetAllDriversQueryHandler struct {
	db *gorm.DB
}

func NewGetAllDriversQueryHandler(db *gorm.DB) GetAllDriversQueryHandler {
	return GetAllDriversQueryHandler{db: db}
}

// Handle returns drivers sorted by name; ActiveMissions counts ASSIGNED and
// IN_PROGRESS missions.
func (h GetAllDriversQueryHandler) Handle(
	ctx context.Context,
	query GetAllDriversQuery,
) ([]GetAllDriversQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	drivers := make([]GetAllDriversQueryResponse, 0)

	rows, err := h.db.WithContext(ctx).Raw(`
		SELECT
			d.id,
			d.name,
			d.company_id,
			d.work_mode,
			d.online,
			COUNT(m.id)
		FROM drivers d
		LEFT JOIN missions m ON m.driver_id = d.id AND m.status IN ?
		GROUP BY d.id, d.name, d.company_id, d.work_mode, d.online
		ORDER BY d.name
	`, []string{mission.Assigned.String(), mission.InProgress.String()}).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var resp GetAllDriversQueryResponse
		var id uuid.UUID
		var companyID uuid.NullUUID

		err = rows.Scan(
			&id,
			&resp.Name,
			&companyID,
			&resp.WorkMode,
			&resp.Online,
			&resp.ActiveMissions,
		)
		if err != nil {
			return nil, err
		}

		if resp.ID, err = toKernelID(id); err != nil {
			return nil, err
		}
		if resp.CompanyID, err = toNullableKernelID(companyID); err != nil {
			return nil, err
		}
		drivers = append(drivers, resp)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return drivers, nil
}
