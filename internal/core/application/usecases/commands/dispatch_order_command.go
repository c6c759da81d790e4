package commands

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
)

var ErrDispatchOrderCommandIsNotConstructed = errors.New(
	"DispatchOrderCommand must be created via NewDispatchOrderCommand constructor",
)

// DispatchOrderCommand offers a PENDING order to the best eligible driver.
type DispatchOrderCommand struct {
	orderCommand
}

func NewDispatchOrderCommand(orderID kernel.UUID) (DispatchOrderCommand, error) {
	oc, err := newOrderCommand(orderID)
	if err != nil {
		return DispatchOrderCommand{}, err
	}
	return DispatchOrderCommand{orderCommand: oc}, nil
}

func (c DispatchOrderCommand) Validate() error {
	return c.guard.Validate(ErrDispatchOrderCommandIsNotConstructed)
}
