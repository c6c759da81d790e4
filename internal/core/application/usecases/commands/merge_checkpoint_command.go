package commands

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
)

var ErrMergeCheckpointCommandIsNotConstructed = errors.New(
	"MergeCheckpointCommand must be created via NewMergeCheckpointCommand constructor",
)

// MergeCheckpointCommand promotes the pending structure of an order when no stop is in progress.
type MergeCheckpointCommand struct {
	orderCommand
}

func NewMergeCheckpointCommand(orderID kernel.UUID) (MergeCheckpointCommand, error) {
	oc, err := newOrderCommand(orderID)
	if err != nil {
		return MergeCheckpointCommand{}, err
	}
	return MergeCheckpointCommand{orderCommand: oc}, nil
}

func (c MergeCheckpointCommand) Validate() error {
	return c.guard.Validate(ErrMergeCheckpointCommandIsNotConstructed)
}
