package queries

import (
	"context"

	"dispatch/internal/core/domain/model/order"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GetActiveOrdersQueryHandler reads non-final orders from the database.
//
// Example:
//
//	handler := NewGetActiveOrdersQueryHandler(db)
//	orders, err := handler.Handle(ctx, NewGetActiveOrdersQuery())
type GetActiveOrdersQueryHandler struct {
	db *gorm.DB
}

func NewGetActiveOrdersQueryHandler(db *gorm.DB) GetActiveOrdersQueryHandler {
	return GetActiveOrdersQueryHandler{db: db}
}

// Handle returns orders highest priority first, then oldest first, which is the
// order the dispatch job works through them.
func (h GetActiveOrdersQueryHandler) Handle(
	ctx context.Context,
	query GetActiveOrdersQuery,
) ([]GetActiveOrdersQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	orders := make([]GetActiveOrdersQueryResponse, 0)

	rows, err := h.db.WithContext(ctx).Raw(`
		SELECT
			id,
			status,
			priority,
			attempt_count,
			assigned_driver_id,
			frozen,
			created_at
		FROM orders
		WHERE status NOT IN ?
		ORDER BY priority DESC, created_at
	`, []string{order.Completed.String(), order.Failed.String(), order.Cancelled.String()}).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var resp GetActiveOrdersQueryResponse
		var id uuid.UUID
		var driverID uuid.NullUUID

		err = rows.Scan(
			&id,
			&resp.Status,
			&resp.Priority,
			&resp.AttemptCount,
			&driverID,
			&resp.Frozen,
			&resp.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if resp.ID, err = toKernelID(id); err != nil {
			return nil, err
		}
		if resp.AssignedDriverID, err = toNullableKernelID(driverID); err != nil {
			return nil, err
		}
		orders = append(orders, resp)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}
