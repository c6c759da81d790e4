package commands

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/route"
	"dispatch/internal/pkg/errs"
)

var ErrRecalculateRouteCommandIsNotConstructed = errors.New(
	"RecalculateRouteCommand must be created via NewRecalculateRouteCommand constructor",
)

type RecalculateRouteCommand struct {
	orderCommand
	view route.View
}

func NewRecalculateRouteCommand(orderID kernel.UUID, view route.View) (RecalculateRouteCommand, error) {
	oc, err := newOrderCommand(orderID)
	if view != route.DriverView && view != route.ClientView {
		err = errors.Join(err, errs.NewValueIsInvalidError("view"))
	}
	if err != nil {
		return RecalculateRouteCommand{}, err
	}
	return RecalculateRouteCommand{orderCommand: oc, view: view}, nil
}

func (c RecalculateRouteCommand) Validate() error {
	return c.guard.Validate(ErrRecalculateRouteCommandIsNotConstructed)
}

func (c RecalculateRouteCommand) View() route.View { return c.view }
