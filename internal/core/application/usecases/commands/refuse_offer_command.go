package commands

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
)

var ErrRefuseOfferCommandIsNotConstructed = errors.New(
	"RefuseOfferCommand must be created via NewRefuseOfferCommand constructor",
)

// RefuseOfferCommand declines an offer on behalf of its holder.
type RefuseOfferCommand struct {
	driverOrderCommand
}

func NewRefuseOfferCommand(orderID, driverID kernel.UUID) (RefuseOfferCommand, error) {
	dc, err := newDriverOrderCommand(orderID, driverID)
	if err != nil {
		return RefuseOfferCommand{}, err
	}
	return RefuseOfferCommand{driverOrderCommand: dc}, nil
}

func (c RefuseOfferCommand) Validate() error {
	return c.guard.Validate(ErrRefuseOfferCommandIsNotConstructed)
}
