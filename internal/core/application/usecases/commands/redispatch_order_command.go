package commands

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
)

var ErrRedispatchOrderCommandIsNotConstructed = errors.New(
	"RedispatchOrderCommand must be created via NewRedispatchOrderCommand constructor",
)

// RedispatchOrderCommand is the operator override that puts an order back into automatic dispatch.
type RedispatchOrderCommand struct {
	orderCommand
}

func NewRedispatchOrderCommand(orderID kernel.UUID) (RedispatchOrderCommand, error) {
	oc, err := newOrderCommand(orderID)
	if err != nil {
		return RedispatchOrderCommand{}, err
	}
	return RedispatchOrderCommand{orderCommand: oc}, nil
}

func (c RedispatchOrderCommand) Validate() error {
	return c.guard.Validate(ErrRedispatchOrderCommandIsNotConstructed)
}
