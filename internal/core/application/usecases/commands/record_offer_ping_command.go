package commands

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
)

var ErrRecordOfferPingCommandIsNotConstructed = errors.New(
	"RecordOfferPingCommand must be created via NewRecordOfferPingCommand constructor",
)

// RecordOfferPingCommand records that a liveness ping reached the offer holder.
type RecordOfferPingCommand struct {
	driverOrderCommand
}

func NewRecordOfferPingCommand(orderID, driverID kernel.UUID) (RecordOfferPingCommand, error) {
	dc, err := newDriverOrderCommand(orderID, driverID)
	if err != nil {
		return RecordOfferPingCommand{}, err
	}
	return RecordOfferPingCommand{driverOrderCommand: dc}, nil
}

func (c RecordOfferPingCommand) Validate() error {
	return c.guard.Validate(ErrRecordOfferPingCommandIsNotConstructed)
}
