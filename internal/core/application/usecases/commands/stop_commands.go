package commands

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
)

var (
	ErrArriveAtStopCommandIsNotConstructed = errors.New(
		"ArriveAtStopCommand must be created via NewArriveAtStopCommand constructor",
	)
	ErrCompleteStopCommandIsNotConstructed = errors.New(
		"CompleteStopCommand must be created via NewCompleteStopCommand constructor",
	)
	ErrFailStopCommandIsNotConstructed = errors.New(
		"FailStopCommand must be created via NewFailStopCommand constructor",
	)
)

// stopCommand names a stop the assigned driver acts on.
type stopCommand struct {
	driverOrderCommand
	stopID kernel.UUID
}

func newStopCommand(orderID, driverID, stopID kernel.UUID) (stopCommand, error) {
	dc, err := newDriverOrderCommand(orderID, driverID)
	if err = errors.Join(err, stopID.Validate()); err != nil {
		return stopCommand{}, err
	}
	return stopCommand{driverOrderCommand: dc, stopID: stopID}, nil
}

func (c stopCommand) StopID() kernel.UUID { return c.stopID }

// ArriveAtStopCommand marks the driver on site. The first arrival starts the mission.
type ArriveAtStopCommand struct {
	stopCommand
}

func NewArriveAtStopCommand(orderID, driverID, stopID kernel.UUID) (ArriveAtStopCommand, error) {
	sc, err := newStopCommand(orderID, driverID, stopID)
	if err != nil {
		return ArriveAtStopCommand{}, err
	}
	return ArriveAtStopCommand{stopCommand: sc}, nil
}

func (c ArriveAtStopCommand) Validate() error {
	return c.guard.Validate(ErrArriveAtStopCommandIsNotConstructed)
}

// CompleteStopCommand closes an ARRIVED stop whose actions are all verified.
type CompleteStopCommand struct {
	stopCommand
}

func NewCompleteStopCommand(orderID, driverID, stopID kernel.UUID) (CompleteStopCommand, error) {
	sc, err := newStopCommand(orderID, driverID, stopID)
	if err != nil {
		return CompleteStopCommand{}, err
	}
	return CompleteStopCommand{stopCommand: sc}, nil
}

func (c CompleteStopCommand) Validate() error {
	return c.guard.Validate(ErrCompleteStopCommandIsNotConstructed)
}

type FailStopCommand struct {
	stopCommand
	reason string
}

func NewFailStopCommand(orderID, driverID, stopID kernel.UUID, reason string) (FailStopCommand, error) {
	sc, err := newStopCommand(orderID, driverID, stopID)
	if reason == "" {
		err = errors.Join(err, errs.NewValueIsRequiredError("reason"))
	}
	if err != nil {
		return FailStopCommand{}, err
	}
	return FailStopCommand{stopCommand: sc, reason: reason}, nil
}

func (c FailStopCommand) Validate() error {
	return c.guard.Validate(ErrFailStopCommandIsNotConstructed)
}

func (c FailStopCommand) Reason() string { return c.reason }
