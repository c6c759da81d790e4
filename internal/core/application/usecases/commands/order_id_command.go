package commands

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/guard"
)

// orderCommand is the shared body of commands that only name an order.
type orderCommand struct {
	orderID kernel.UUID
	guard   guard.ConstructorGuard
}

func newOrderCommand(orderID kernel.UUID) (orderCommand, error) {
	if err := orderID.Validate(); err != nil {
		return orderCommand{}, err
	}
	return orderCommand{orderID: orderID, guard: guard.NewConstructorGuard()}, nil
}

func (c orderCommand) OrderID() kernel.UUID { return c.orderID }

// driverOrderCommand names an order and the driver acting on it.
type driverOrderCommand struct {
	orderCommand
	driverID kernel.UUID
}

func newDriverOrderCommand(orderID, driverID kernel.UUID) (driverOrderCommand, error) {
	oc, err := newOrderCommand(orderID)
	if err = errors.Join(err, driverID.Validate()); err != nil {
		return driverOrderCommand{}, err
	}
	return driverOrderCommand{orderCommand: oc, driverID: driverID}, nil
}

func (c driverOrderCommand) DriverID() kernel.UUID { return c.driverID }
