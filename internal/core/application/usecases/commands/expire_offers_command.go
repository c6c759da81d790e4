package commands

import (
	"errors"

	"dispatch/internal/pkg/guard"
)

var ErrExpireOffersCommandIsNotConstructed = errors.New(
	"ExpireOffersCommand must be created via NewExpireOffersCommand constructor",
)

// ExpireOffersCommand withdraws every offer whose window has closed.
type ExpireOffersCommand struct {
	guard guard.ConstructorGuard
}

func NewExpireOffersCommand() ExpireOffersCommand {
	return ExpireOffersCommand{guard: guard.NewConstructorGuard()}
}

func (c ExpireOffersCommand) Validate() error {
	return c.guard.Validate(ErrExpireOffersCommandIsNotConstructed)
}
