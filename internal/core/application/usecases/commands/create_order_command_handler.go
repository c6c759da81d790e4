package commands

import (
	"context"
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/core/ports"
)

// CreateOrderCommandHandler creates a PENDING order. Waypoints without an address
// are reverse-geocoded first, outside the transaction; an unknown address is kept
// empty.
type CreateOrderCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	geocoder   ports.ReverseGeocoder
	cfg        services.DispatchConfig
	clock      kernel.Clock
}

func NewCreateOrderCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	geocoder ports.ReverseGeocoder,
	cfg services.DispatchConfig,
	clock kernel.Clock,
) CreateOrderCommandHandler {
	return CreateOrderCommandHandler{uowFactory: uowFactory, geocoder: geocoder, cfg: cfg, clock: clock}
}

func (h CreateOrderCommandHandler) Handle(ctx context.Context, cmd CreateOrderCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	p := cmd.Params()
	if err := h.fillAddresses(ctx, p.Waypoints); err != nil {
		return err
	}

	now := h.clock.Now()
	o, err := order.NewOrder(order.NewOrderParams{
		ID:             p.OrderID,
		CompanyID:      p.CompanyID,
		Priority:       p.Priority,
		Mode:           p.Mode,
		TargetDriverID: p.TargetDriverID,
		Metadata:       p.Metadata,
		Now:            now,
	})
	if err != nil {
		return err
	}
	if err = o.Decompose(p.Waypoints, h.cfg.ProofPolicy(), now); err != nil {
		return err
	}

	return inUnitOfWork(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		return uow.OrderRepository().Add(ctx, o)
	})
}

func (h CreateOrderCommandHandler) fillAddresses(ctx context.Context, waypoints []order.Waypoint) error {
	if h.geocoder == nil {
		return nil
	}
	for i := range waypoints {
		if waypoints[i].Address != "" {
			continue
		}
		address, err := h.geocoder.ReverseGeocode(ctx, waypoints[i].Point)
		if errors.Is(err, ports.ErrAddressNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		waypoints[i].Address = address
	}
	return nil
}
