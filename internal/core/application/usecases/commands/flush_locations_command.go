package commands

import (
	"errors"

	"dispatch/internal/pkg/guard"
)

var ErrFlushLocationsCommandIsNotConstructed = errors.New(
	"FlushLocationsCommand must be created via NewFlushLocationsCommand constructor",
)

type FlushLocationsCommand struct {
	guard guard.ConstructorGuard
}

func NewFlushLocationsCommand() FlushLocationsCommand {
	return FlushLocationsCommand{guard: guard.NewConstructorGuard()}
}

func (c FlushLocationsCommand) Validate() error {
	return c.guard.Validate(ErrFlushLocationsCommandIsNotConstructed)
}
