package commands

import (
	"context"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/core/ports"
)

// ProofCommandHandler records proof submissions and operator verdicts. A wrong
// OTP is an outcome, not an error, so its attempt counter is committed.
type ProofCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	cfg        services.DispatchConfig
	clock      kernel.Clock
}

func NewProofCommandHandler(uowFactory ports.UnitOfWorkFactory, cfg services.DispatchConfig, clock kernel.Clock) ProofCommandHandler {
	return ProofCommandHandler{uowFactory: uowFactory, cfg: cfg, clock: clock}
}

func (h ProofCommandHandler) Submit(ctx context.Context, cmd SubmitProofCommand) (order.ProofOutcome, error) {
	if err := cmd.Validate(); err != nil {
		return 0, err
	}

	now := h.clock.Now()
	var outcome order.ProofOutcome
	err := inUnitOfWork(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		repo := uow.OrderRepository()
		o, err := repo.GetForUpdate(ctx, cmd.OrderID())
		if err != nil {
			return err
		}
		if err = checkAssignedDriver(o, cmd.DriverID()); err != nil {
			return err
		}
		outcome, err = o.SubmitProof(cmd.ActionID(), cmd.ProofID(), cmd.Value(), h.cfg.OTPMaxAttempts(), now)
		if err != nil {
			return err
		}
		return repo.Update(ctx, o)
	})
	if err != nil {
		return 0, err
	}
	return outcome, nil
}

func (h ProofCommandHandler) Verify(ctx context.Context, cmd VerifyProofCommand) (order.ProofOutcome, error) {
	if err := cmd.Validate(); err != nil {
		return 0, err
	}

	now := h.clock.Now()
	var outcome order.ProofOutcome
	err := inUnitOfWork(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		repo := uow.OrderRepository()
		o, err := repo.GetForUpdate(ctx, cmd.OrderID())
		if err != nil {
			return err
		}
		if outcome, err = o.VerifyProof(cmd.ActionID(), cmd.ProofID(), cmd.Approved(), now); err != nil {
			return err
		}
		return repo.Update(ctx, o)
	})
	if err != nil {
		return 0, err
	}
	return outcome, nil
}
