package commands

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
)

var (
	ErrEditOrderStructureCommandIsNotConstructed = errors.New(
		"EditOrderStructureCommand must be created via NewEditOrderStructureCommand constructor",
	)
	ErrEditsAreRequired = errors.New("at least one edit is required")
)

// EditOrderStructureCommand applies a patch of structural edits atomically.
type EditOrderStructureCommand struct {
	orderCommand
	edits []order.Edit
}

func NewEditOrderStructureCommand(orderID kernel.UUID, edits []order.Edit) (EditOrderStructureCommand, error) {
	oc, err := newOrderCommand(orderID)
	if len(edits) == 0 {
		err = errors.Join(err, ErrEditsAreRequired)
	}
	if err != nil {
		return EditOrderStructureCommand{}, err
	}
	return EditOrderStructureCommand{orderCommand: oc, edits: append([]order.Edit(nil), edits...)}, nil
}

func (c EditOrderStructureCommand) Validate() error {
	return c.guard.Validate(ErrEditOrderStructureCommandIsNotConstructed)
}

func (c EditOrderStructureCommand) Edits() []order.Edit {
	return append([]order.Edit(nil), c.edits...)
}
