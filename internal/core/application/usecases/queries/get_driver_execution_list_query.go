package queries

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"
)

var (
	ErrGetDriverExecutionListQueryIsNotConstructed = errors.New(
		"GetDriverExecutionListQuery must be created via NewGetDriverExecutionListQuery constructor",
	)
)

// GetDriverExecutionListQuery returns the stops the assigned driver executes, in
// execution order. Pending shadow rows are invisible to the driver until merged;
// originals flagged for deletion stay listed.
type GetDriverExecutionListQuery struct {
	orderID  kernel.UUID
	driverID kernel.UUID
	guard    guard.ConstructorGuard
}

func NewGetDriverExecutionListQuery(orderID, driverID kernel.UUID) (GetDriverExecutionListQuery, error) {
	if err := errors.Join(
		wrapRequired("orderID", orderID.Validate()),
		wrapRequired("driverID", driverID.Validate()),
	); err != nil {
		return GetDriverExecutionListQuery{}, err
	}
	return GetDriverExecutionListQuery{
		orderID:  orderID,
		driverID: driverID,
		guard:    guard.NewConstructorGuard(),
	}, nil
}

func (q GetDriverExecutionListQuery) OrderID() kernel.UUID  { return q.orderID }
func (q GetDriverExecutionListQuery) DriverID() kernel.UUID { return q.driverID }

func (q GetDriverExecutionListQuery) Validate() error {
	return q.guard.Validate(ErrGetDriverExecutionListQueryIsNotConstructed)
}

type ExecutionStopView struct {
	ID             kernel.UUID
	StepID         kernel.UUID
	ExecutionOrder *int
	Kind           string
	Address        string
	Lat            float64
	Lng            float64
	Status         string
	Actions        []ExecutionActionView
}

type ExecutionActionView struct {
	ID          kernel.UUID
	Kind        string
	Description string
	Status      string
	Proofs      []ExecutionProofView
}

// ExecutionProofView never carries the expected value.
type ExecutionProofView struct {
	ID       kernel.UUID
	Type     string
	Status   string
	Attempts int
}

func wrapRequired(param string, err error) error {
	if err == nil {
		return nil
	}
	return errs.NewValueIsRequiredErrorWithCause(param, err)
}
