package commands

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
)

var ErrAcceptOfferCommandIsNotConstructed = errors.New(
	"AcceptOfferCommand must be created via NewAcceptOfferCommand constructor",
)

// AcceptOfferCommand binds the order to the offer holder through a new mission.
type AcceptOfferCommand struct {
	driverOrderCommand
}

func NewAcceptOfferCommand(orderID, driverID kernel.UUID) (AcceptOfferCommand, error) {
	dc, err := newDriverOrderCommand(orderID, driverID)
	if err != nil {
		return AcceptOfferCommand{}, err
	}
	return AcceptOfferCommand{driverOrderCommand: dc}, nil
}

func (c AcceptOfferCommand) Validate() error {
	return c.guard.Validate(ErrAcceptOfferCommandIsNotConstructed)
}
