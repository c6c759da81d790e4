package commands

import (
	"errors"

	"dispatch/internal/pkg/guard"
)

var ErrDispatchPendingOrdersCommandIsNotConstructed = errors.New(
	"DispatchPendingOrdersCommand must be created via NewDispatchPendingOrdersCommand constructor",
)

// DispatchPendingOrdersCommand offers every pending order whose back-off has elapsed.
type DispatchPendingOrdersCommand struct {
	guard guard.ConstructorGuard
}

func NewDispatchPendingOrdersCommand() DispatchPendingOrdersCommand {
	return DispatchPendingOrdersCommand{guard: guard.NewConstructorGuard()}
}

func (c DispatchPendingOrdersCommand) Validate() error {
	return c.guard.Validate(ErrDispatchPendingOrdersCommandIsNotConstructed)
}
