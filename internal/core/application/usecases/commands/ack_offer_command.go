package commands

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
)

var ErrAckOfferCommandIsNotConstructed = errors.New(
	"AckOfferCommand must be created via NewAckOfferCommand constructor",
)

// AckOfferCommand is the driver app confirming it received the offer.
type AckOfferCommand struct {
	driverOrderCommand
}

func NewAckOfferCommand(orderID, driverID kernel.UUID) (AckOfferCommand, error) {
	dc, err := newDriverOrderCommand(orderID, driverID)
	if err != nil {
		return AckOfferCommand{}, err
	}
	return AckOfferCommand{driverOrderCommand: dc}, nil
}

func (c AckOfferCommand) Validate() error {
	return c.guard.Validate(ErrAckOfferCommandIsNotConstructed)
}
