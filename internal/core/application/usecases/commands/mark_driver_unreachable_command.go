package commands

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
)

var ErrMarkDriverUnreachableCommandIsNotConstructed = errors.New(
	"MarkDriverUnreachableCommand must be created via NewMarkDriverUnreachableCommand constructor",
)

// MarkDriverUnreachableCommand is raised by the ack monitor when the ping window closed without an ack.
type MarkDriverUnreachableCommand struct {
	driverOrderCommand
}

func NewMarkDriverUnreachableCommand(orderID, driverID kernel.UUID) (MarkDriverUnreachableCommand, error) {
	dc, err := newDriverOrderCommand(orderID, driverID)
	if err != nil {
		return MarkDriverUnreachableCommand{}, err
	}
	return MarkDriverUnreachableCommand{driverOrderCommand: dc}, nil
}

func (c MarkDriverUnreachableCommand) Validate() error {
	return c.guard.Validate(ErrMarkDriverUnreachableCommandIsNotConstructed)
}
