package queries

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/pkg/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GetOrderQueryHandler struct {
	db *gorm.DB
}

func NewGetOrderQueryHandler(db *gorm.DB) GetOrderQueryHandler {
	return GetOrderQueryHandler{db: db}
}

// Handle returns ErrObjectNotFound when the order does not exist. Stops are
// ordered by step then stop display order.
func (h GetOrderQueryHandler) Handle(ctx context.Context, query GetOrderQuery) (GetOrderQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return GetOrderQueryResponse{}, err
	}

	db := h.db.WithContext(ctx)
	resp, err := h.header(db, query)
	if err != nil {
		return GetOrderQueryResponse{}, err
	}

	resp.Stops, err = h.stops(db, query)
	if err != nil {
		return GetOrderQueryResponse{}, err
	}
	return resp, nil
}

func (h GetOrderQueryHandler) header(db *gorm.DB, query GetOrderQuery) (GetOrderQueryResponse, error) {
	row := db.Raw(`
		SELECT
			o.id,
			o.company_id,
			o.status,
			o.priority,
			o.assignment_mode,
			o.attempt_count,
			o.assigned_driver_id,
			o.mission_id,
			o.offer_driver_id,
			o.offer_expires_at,
			o.frozen,
			o.frozen_reason,
			o.version,
			o.structure_version,
			o.eta_duration_seconds,
			o.eta_distance_meters,
			o.eta_arrival_at,
			o.created_at,
			EXISTS (
				SELECT 1 FROM order_steps st
				WHERE st.order_id = o.id AND (st.is_pending_change OR st.is_delete_required)
			) OR EXISTS (
				SELECT 1 FROM order_stops s
				WHERE s.order_id = o.id AND (s.is_pending_change OR s.is_delete_required)
			) OR EXISTS (
				SELECT 1 FROM order_actions a
				WHERE a.order_id = o.id AND (a.is_pending_change OR a.is_delete_required)
			)
		FROM orders o
		WHERE o.id = ?
	`, query.OrderID().Bytes()).Row()

	var (
		resp                                   GetOrderQueryResponse
		id                                     uuid.UUID
		companyID, driverID, missionID, holder uuid.NullUUID
		expiresAt, arrivalAt                   sql.NullTime
	)
	err := row.Scan(
		&id,
		&companyID,
		&resp.Status,
		&resp.Priority,
		&resp.AssignmentMode,
		&resp.AttemptCount,
		&driverID,
		&missionID,
		&holder,
		&expiresAt,
		&resp.Frozen,
		&resp.FrozenReason,
		&resp.Version,
		&resp.StructureVersion,
		&resp.ETA.DurationSeconds,
		&resp.ETA.DistanceMeters,
		&arrivalAt,
		&resp.CreatedAt,
		&resp.HasPendingChanges,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return GetOrderQueryResponse{}, errs.NewObjectNotFoundError("order", query.OrderID().String())
		}
		return GetOrderQueryResponse{}, err
	}

	if resp.ID, err = toKernelID(id); err != nil {
		return GetOrderQueryResponse{}, err
	}
	if resp.CompanyID, err = toNullableKernelID(companyID); err != nil {
		return GetOrderQueryResponse{}, err
	}
	if resp.AssignedDriverID, err = toNullableKernelID(driverID); err != nil {
		return GetOrderQueryResponse{}, err
	}
	if resp.MissionID, err = toNullableKernelID(missionID); err != nil {
		return GetOrderQueryResponse{}, err
	}
	if resp.OfferDriverID, err = toNullableKernelID(holder); err != nil {
		return GetOrderQueryResponse{}, err
	}
	resp.OfferExpiresAt = nullTime(expiresAt)
	resp.ETA.ArrivalAt = nullTime(arrivalAt)
	return resp, nil
}

func (h GetOrderQueryHandler) stops(db *gorm.DB, query GetOrderQuery) ([]OrderStopView, error) {
	rows, err := db.Raw(`
		SELECT
			s.id,
			s.step_id,
			st.display_order,
			s.display_order,
			s.execution_order,
			s.kind,
			s.address,
			s.lat,
			s.lng,
			s.status,
			s.original_id,
			s.is_pending_change,
			s.is_delete_required
		FROM order_stops s
		JOIN order_steps st ON st.id = s.step_id
		WHERE s.order_id = ?
		ORDER BY st.display_order, s.display_order, s.is_pending_change
	`, query.OrderID().Bytes()).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stops := make([]OrderStopView, 0)
	for rows.Next() {
		var (
			stop                    OrderStopView
			id, stepID              uuid.UUID
			executionOrder          sql.NullInt64
			originalID              uuid.NullUUID
			pending, deleteRequired bool
		)
		err = rows.Scan(
			&id,
			&stepID,
			&stop.StepDisplayOrder,
			&stop.DisplayOrder,
			&executionOrder,
			&stop.Kind,
			&stop.Address,
			&stop.Lat,
			&stop.Lng,
			&stop.Status,
			&originalID,
			&pending,
			&deleteRequired,
		)
		if err != nil {
			return nil, err
		}

		if stop.ID, err = toKernelID(id); err != nil {
			return nil, err
		}
		if stop.StepID, err = toKernelID(stepID); err != nil {
			return nil, err
		}
		if executionOrder.Valid {
			v := int(executionOrder.Int64)
			stop.ExecutionOrder = &v
		}
		original, convErr := toNullableKernelID(originalID)
		if convErr != nil {
			return nil, convErr
		}
		rev, revErr := order.RevisionFromColumns(original, pending, deleteRequired)
		if revErr != nil {
			return nil, revErr
		}
		stop.Revision = rev.Kind().String()
		stops = append(stops, stop)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return stops, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
