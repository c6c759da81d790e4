package commands

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/guard"
)

var (
	ErrSubmitProofCommandIsNotConstructed = errors.New(
		"SubmitProofCommand must be created via NewSubmitProofCommand constructor",
	)
	ErrVerifyProofCommandIsNotConstructed = errors.New(
		"VerifyProofCommand must be created via NewVerifyProofCommand constructor",
	)
)

// SubmitProofCommand carries the driver's evidence: an OTP code or a file reference.
type SubmitProofCommand struct {
	driverOrderCommand
	actionID kernel.UUID
	proofID  kernel.UUID
	value    string
}

func NewSubmitProofCommand(orderID, driverID, actionID, proofID kernel.UUID, value string) (SubmitProofCommand, error) {
	dc, err := newDriverOrderCommand(orderID, driverID)
	if err = errors.Join(err, actionID.Validate(), proofID.Validate()); err != nil {
		return SubmitProofCommand{}, err
	}
	return SubmitProofCommand{driverOrderCommand: dc, actionID: actionID, proofID: proofID, value: value}, nil
}

func (c SubmitProofCommand) Validate() error {
	return c.guard.Validate(ErrSubmitProofCommandIsNotConstructed)
}

func (c SubmitProofCommand) ActionID() kernel.UUID { return c.actionID }

func (c SubmitProofCommand) ProofID() kernel.UUID { return c.proofID }

func (c SubmitProofCommand) Value() string { return c.value }

// VerifyProofCommand is an operator's decision on a submitted ID card.
type VerifyProofCommand struct {
	orderID  kernel.UUID
	actionID kernel.UUID
	proofID  kernel.UUID
	approved bool
	guard    guard.ConstructorGuard
}

func NewVerifyProofCommand(orderID, actionID, proofID kernel.UUID, approved bool) (VerifyProofCommand, error) {
	if err := errors.Join(orderID.Validate(), actionID.Validate(), proofID.Validate()); err != nil {
		return VerifyProofCommand{}, err
	}
	return VerifyProofCommand{
		orderID:  orderID,
		actionID: actionID,
		proofID:  proofID,
		approved: approved,
		guard:    guard.NewConstructorGuard(),
	}, nil
}

func (c VerifyProofCommand) Validate() error {
	return c.guard.Validate(ErrVerifyProofCommandIsNotConstructed)
}

func (c VerifyProofCommand) OrderID() kernel.UUID { return c.orderID }

func (c VerifyProofCommand) ActionID() kernel.UUID { return c.actionID }

func (c VerifyProofCommand) ProofID() kernel.UUID { return c.proofID }

func (c VerifyProofCommand) Approved() bool { return c.approved }
