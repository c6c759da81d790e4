package queries

import (
	"context"
	"database/sql"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GetDriverExecutionListQueryHandler struct {
	db *gorm.DB
}

func NewGetDriverExecutionListQueryHandler(db *gorm.DB) GetDriverExecutionListQueryHandler {
	return GetDriverExecutionListQueryHandler{db: db}
}

// Handle answers ErrObjectNotFound both for unknown orders and for orders not
// assigned to the driver, so drivers cannot read other drivers' orders.
//
// Sequenced stops come first by execution order; stops the optimizer never
// sequenced follow in (step, stop) display order.
func (h GetDriverExecutionListQueryHandler) Handle(
	ctx context.Context,
	query GetDriverExecutionListQuery,
) ([]ExecutionStopView, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	db := h.db.WithContext(ctx)
	var assigned int64
	err := db.Raw(`SELECT COUNT(*) FROM orders WHERE id = ? AND assigned_driver_id = ?`,
		query.OrderID().Bytes(), query.DriverID().Bytes()).Scan(&assigned).Error
	if err != nil {
		return nil, err
	}
	if assigned == 0 {
		return nil, errs.NewObjectNotFoundError("order", query.OrderID().String())
	}

	stops, index, err := h.stops(db, query.OrderID())
	if err != nil {
		return nil, err
	}
	if err := h.attachActions(db, query.OrderID(), stops, index); err != nil {
		return nil, err
	}
	return stops, nil
}

func (h GetDriverExecutionListQueryHandler) stops(
	db *gorm.DB,
	orderID kernel.UUID,
) ([]ExecutionStopView, map[uuid.UUID]int, error) {
	rows, err := db.Raw(`
		SELECT
			s.id,
			s.step_id,
			s.execution_order,
			s.kind,
			s.address,
			s.lat,
			s.lng,
			s.status
		FROM order_stops s
		JOIN order_steps st ON st.id = s.step_id
		WHERE s.order_id = ?
			AND NOT s.is_pending_change
			AND NOT st.is_pending_change
		ORDER BY s.execution_order ASC NULLS LAST, st.display_order, s.display_order
	`, orderID.Bytes()).Rows()
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	stops := make([]ExecutionStopView, 0)
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var (
			stop           ExecutionStopView
			id, stepID     uuid.UUID
			executionOrder sql.NullInt64
		)
		err = rows.Scan(&id, &stepID, &executionOrder, &stop.Kind, &stop.Address, &stop.Lat, &stop.Lng, &stop.Status)
		if err != nil {
			return nil, nil, err
		}
		if stop.ID, err = toKernelID(id); err != nil {
			return nil, nil, err
		}
		if stop.StepID, err = toKernelID(stepID); err != nil {
			return nil, nil, err
		}
		if executionOrder.Valid {
			v := int(executionOrder.Int64)
			stop.ExecutionOrder = &v
		}
		stop.Actions = make([]ExecutionActionView, 0)
		index[id] = len(stops)
		stops = append(stops, stop)
	}
	if err = rows.Err(); err != nil {
		return nil, nil, err
	}
	return stops, index, nil
}

// attachActions loads the driver-visible actions with their proofs in one pass.
func (h GetDriverExecutionListQueryHandler) attachActions(
	db *gorm.DB,
	orderID kernel.UUID,
	stops []ExecutionStopView,
	index map[uuid.UUID]int,
) error {
	rows, err := db.Raw(`
		SELECT
			a.id,
			a.stop_id,
			a.kind,
			a.description,
			a.status,
			p.id,
			p.type,
			p.status,
			p.attempts
		FROM order_actions a
		LEFT JOIN action_proofs p ON p.action_id = a.id
		WHERE a.order_id = ?
			AND NOT a.is_pending_change
		ORDER BY a.stop_id, a.position, p.position
	`, orderID.Bytes()).Rows()
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			action         ExecutionActionView
			actionID, stop uuid.UUID
			proofID        uuid.NullUUID
			proofType      sql.NullString
			proofStatus    sql.NullString
			attempts       sql.NullInt64
		)
		err = rows.Scan(&actionID, &stop, &action.Kind, &action.Description, &action.Status,
			&proofID, &proofType, &proofStatus, &attempts)
		if err != nil {
			return err
		}

		pos, ok := index[stop]
		if !ok {
			continue
		}
		actions := stops[pos].Actions
		if n := len(actions); n == 0 || actions[n-1].ID.Bytes() != actionID {
			if action.ID, err = toKernelID(actionID); err != nil {
				return err
			}
			action.Proofs = make([]ExecutionProofView, 0)
			actions = append(actions, action)
		}
		if proofID.Valid {
			id, convErr := toKernelID(proofID.UUID)
			if convErr != nil {
				return convErr
			}
			last := &actions[len(actions)-1]
			last.Proofs = append(last.Proofs, ExecutionProofView{
				ID:       id,
				Type:     proofType.String,
				Status:   proofStatus.String,
				Attempts: int(attempts.Int64),
			})
		}
		stops[pos].Actions = actions
	}
	return rows.Err()
}
