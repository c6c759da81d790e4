package commands

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
)

var ErrDeleteOrderCommandIsNotConstructed = errors.New(
	"DeleteOrderCommand must be created via NewDeleteOrderCommand constructor",
)

// DeleteOrderCommand cancels and removes an order with everything under it.
type DeleteOrderCommand struct {
	orderCommand
}

func NewDeleteOrderCommand(orderID kernel.UUID) (DeleteOrderCommand, error) {
	oc, err := newOrderCommand(orderID)
	if err != nil {
		return DeleteOrderCommand{}, err
	}
	return DeleteOrderCommand{orderCommand: oc}, nil
}

func (c DeleteOrderCommand) Validate() error {
	return c.guard.Validate(ErrDeleteOrderCommandIsNotConstructed)
}
