package commands

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/pkg/guard"
)

var (
	ErrCreateOrderCommandIsNotConstructed = errors.New(
		"CreateOrderCommand must be created via NewCreateOrderCommand constructor",
	)
	ErrWaypointsAreRequired = errors.New("at least one waypoint is required")
)

// CreateOrderCommand registers an order and decomposes its waypoints.
//
// Example:
//
//	cmd, err := NewCreateOrderCommand(CreateOrderParams{
//	    OrderID:   kernel.NewUUID(),
//	    Mode:      order.Global,
//	    Waypoints: waypoints,
//	})
//	if err != nil {
//	    return fmt.Errorf("invalid order data: %w", err)
//	}
//	err = handler.Handle(ctx, cmd)
type CreateOrderCommand struct { //nolint:recvcheck //using for validation
	p CreateOrderParams

	guard guard.ConstructorGuard
}

type CreateOrderParams struct {
	OrderID        kernel.UUID
	CompanyID      *kernel.UUID
	Priority       int
	Mode           order.AssignmentMode
	TargetDriverID *kernel.UUID
	Metadata       map[string]any
	Waypoints      []order.Waypoint
}

// NewCreateOrderCommand checks the request shape. Assignment rules are checked by
// the order itself.
func NewCreateOrderCommand(p CreateOrderParams) (CreateOrderCommand, error) {
	cmd := CreateOrderCommand{guard: guard.NewConstructorGuard()}

	if err := errors.Join(
		cmd.setOrderID(p.OrderID),
		cmd.setWaypoints(p.Waypoints),
	); err != nil {
		return CreateOrderCommand{}, err
	}

	cmd.p.CompanyID = p.CompanyID
	cmd.p.Priority = p.Priority
	cmd.p.Mode = p.Mode
	cmd.p.TargetDriverID = p.TargetDriverID
	cmd.p.Metadata = p.Metadata
	return cmd, nil
}

func (c CreateOrderCommand) Validate() error {
	return c.guard.Validate(ErrCreateOrderCommandIsNotConstructed)
}

func (c CreateOrderCommand) OrderID() kernel.UUID { return c.p.OrderID }

func (c CreateOrderCommand) Params() CreateOrderParams {
	p := c.p
	p.Waypoints = append([]order.Waypoint(nil), c.p.Waypoints...)
	return p
}

func (c *CreateOrderCommand) setOrderID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}

	c.p.OrderID = id
	return nil
}

func (c *CreateOrderCommand) setWaypoints(waypoints []order.Waypoint) error {
	if len(waypoints) == 0 {
		return ErrWaypointsAreRequired
	}

	c.p.Waypoints = append([]order.Waypoint(nil), waypoints...)
	return nil
}
