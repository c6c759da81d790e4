package queries

import (
	"errors"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"
)

var (
	ErrGetOrderQueryIsNotConstructed = errors.New(
		"GetOrderQuery must be created via NewGetOrderQuery constructor",
	)
)

// GetOrderQuery returns the operator view of one order: its header and every
// stop of its structure, pending shadow rows included and flagged.
//
// Example:
//
//	query, err := NewGetOrderQuery(orderID)
//	if err != nil {
//	    return err
//	}
//	view, err := handler.Handle(ctx, query)
type GetOrderQuery struct {
	orderID kernel.UUID
	guard   guard.ConstructorGuard
}

func NewGetOrderQuery(orderID kernel.UUID) (GetOrderQuery, error) {
	if err := orderID.Validate(); err != nil {
		return GetOrderQuery{}, errs.NewValueIsRequiredErrorWithCause("orderID", err)
	}
	return GetOrderQuery{orderID: orderID, guard: guard.NewConstructorGuard()}, nil
}

func (q GetOrderQuery) OrderID() kernel.UUID {
	return q.orderID
}

func (q GetOrderQuery) Validate() error {
	return q.guard.Validate(ErrGetOrderQueryIsNotConstructed)
}

type GetOrderQueryResponse struct {
	ID                kernel.UUID
	CompanyID         *kernel.UUID
	Status            string
	Priority          int
	AssignmentMode    string
	AttemptCount      int
	AssignedDriverID  *kernel.UUID
	MissionID         *kernel.UUID
	OfferDriverID     *kernel.UUID
	OfferExpiresAt    *time.Time
	Frozen            bool
	FrozenReason      string
	HasPendingChanges bool
	Version           int64
	StructureVersion  int64
	ETA               OrderETAView
	CreatedAt         time.Time
	Stops             []OrderStopView
}

type OrderETAView struct {
	DurationSeconds int
	DistanceMeters  int
	ArrivalAt       *time.Time
}

// OrderStopView is one stop row. Revision is CANONICAL, PENDING_REPLACEMENT,
// PENDING_ADDITION or PENDING_DELETION.
type OrderStopView struct {
	ID               kernel.UUID
	StepID           kernel.UUID
	StepDisplayOrder int
	DisplayOrder     int
	ExecutionOrder   *int
	Kind             string
	Address          string
	Lat              float64
	Lng              float64
	Status           string
	Revision         string
}
