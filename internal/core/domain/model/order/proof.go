package order

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
)

// ProofType is the evidence an action requires.
type ProofType int

const (
	UnknownProof ProofType = iota
	OTP
	Photo
	Signature
	IDCard
)

func (t ProofType) String() string {
	switch t {
	case OTP:
		return "OTP"
	case Photo:
		return "PHOTO"
	case Signature:
		return "SIGNATURE"
	case IDCard:
		return "ID_CARD"
	default:
		return "UNKNOWN"
	}
}

func ParseProofType(s string) (ProofType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OTP":
		return OTP, nil
	case "PHOTO":
		return Photo, nil
	case "SIGNATURE":
		return Signature, nil
	case "ID_CARD":
		return IDCard, nil
	default:
		return UnknownProof, errs.NewValueIsInvalidErrorWithCause("proof type",
			fmt.Errorf("%q is not one of OTP, PHOTO, SIGNATURE, ID_CARD", s))
	}
}

// ParseProofTypes parses a comma separated list such as "OTP,PHOTO". An empty string
// yields no proofs.
func ParseProofTypes(s string) ([]ProofType, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]ProofType, 0, len(parts))
	var joined error
	for _, p := range parts {
		t, err := ParseProofType(p)
		joined = errors.Join(joined, err)
		out = append(out, t)
	}
	if joined != nil {
		return nil, joined
	}
	return out, nil
}

// ProofStatus is REQUIRED → SUBMITTED → VERIFIED | REJECTED.
type ProofStatus int

const (
	UnknownProofStatus ProofStatus = iota
	ProofRequired
	ProofSubmitted
	ProofVerified
	ProofRejected
)

func (s ProofStatus) String() string {
	switch s {
	case ProofRequired:
		return "REQUIRED"
	case ProofSubmitted:
		return "SUBMITTED"
	case ProofVerified:
		return "VERIFIED"
	case ProofRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

func ParseProofStatus(s string) (ProofStatus, error) {
	for _, st := range []ProofStatus{ProofRequired, ProofSubmitted, ProofVerified, ProofRejected} {
		if st.String() == s {
			return st, nil
		}
	}
	return UnknownProofStatus, errs.NewValueIsInvalidErrorWithCause("proof status",
		fmt.Errorf("%q is not a valid proof status", s))
}

// ProofOutcome tells the submitter what happened without failing the transaction, so
// a wrong OTP still persists its attempt counter.
type ProofOutcome int

const (
	OutcomeVerified ProofOutcome = iota + 1
	OutcomeMismatch
	OutcomeRejected
	OutcomeAwaitingReview
)

func (o ProofOutcome) String() string {
	switch o {
	case OutcomeVerified:
		return "VERIFIED"
	case OutcomeMismatch:
		return "MISMATCH"
	case OutcomeRejected:
		return "REJECTED"
	case OutcomeAwaitingReview:
		return "AWAITING_REVIEW"
	default:
		return "UNKNOWN"
	}
}

// ActionProof is one piece of evidence attached to an action.
type ActionProof struct {
	id             kernel.UUID
	proofType      ProofType
	expectedValue  string
	submittedValue string
	attempts       int
	status         ProofStatus
	verifiedAt     *time.Time
}

// NewActionProof creates a REQUIRED proof. OTP proofs need the expected code.
func NewActionProof(id kernel.UUID, proofType ProofType, expectedValue string) (*ActionProof, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if proofType == UnknownProof {
		return nil, errs.NewValueIsRequiredError("proof type")
	}
	if proofType == OTP && expectedValue == "" {
		return nil, errs.NewValueIsRequiredError("otp expected value")
	}
	return &ActionProof{id: id, proofType: proofType, expectedValue: expectedValue, status: ProofRequired}, nil
}

type RestoreProofParams struct {
	ID             kernel.UUID
	Type           ProofType
	ExpectedValue  string
	SubmittedValue string
	Attempts       int
	Status         ProofStatus
	VerifiedAt     *time.Time
}

func RestoreActionProof(p RestoreProofParams) (*ActionProof, error) {
	proof, err := NewActionProof(p.ID, p.Type, p.ExpectedValue)
	if err != nil {
		return nil, err
	}
	if p.Status == UnknownProofStatus {
		return nil, errs.NewValueIsRequiredError("proof status")
	}
	if p.Status == ProofVerified && p.VerifiedAt == nil {
		return nil, errs.NewCorruptionError("proof "+p.ID.String(), "verified proof has no verification time")
	}
	proof.submittedValue = p.SubmittedValue
	proof.attempts = p.Attempts
	proof.status = p.Status
	proof.verifiedAt = p.VerifiedAt
	return proof, nil
}

func (p *ActionProof) ID() kernel.UUID        { return p.id }
func (p *ActionProof) Type() ProofType        { return p.proofType }
func (p *ActionProof) ExpectedValue() string  { return p.expectedValue }
func (p *ActionProof) SubmittedValue() string { return p.submittedValue }
func (p *ActionProof) Attempts() int          { return p.attempts }
func (p *ActionProof) Status() ProofStatus    { return p.status }
func (p *ActionProof) VerifiedAt() *time.Time { return p.verifiedAt }
func (p *ActionProof) IsVerified() bool       { return p.status == ProofVerified }
func (p *ActionProof) isSettled() bool        { return p.status == ProofVerified || p.status == ProofRejected }

// submit records evidence. maxOTPAttempts bounds wrong OTP entries before the proof
// is REJECTED.
func (p *ActionProof) submit(value string, now time.Time, maxOTPAttempts int) (ProofOutcome, error) {
	if p.isSettled() {
		return 0, errs.NewRuleViolationError(ReasonProofSettled,
			fmt.Sprintf("proof %s is already %s", p.id, p.status))
	}

	switch p.proofType {
	case OTP:
		p.attempts++
		if subtle.ConstantTimeCompare([]byte(value), []byte(p.expectedValue)) == 1 {
			p.submittedValue = value
			p.markVerified(now)
			return OutcomeVerified, nil
		}
		if p.attempts >= maxOTPAttempts {
			p.status = ProofRejected
			return OutcomeRejected, nil
		}
		return OutcomeMismatch, nil
	case Photo, Signature:
		if strings.TrimSpace(value) == "" {
			return 0, errs.NewValueIsRequiredError("file reference")
		}
		p.attempts++
		p.submittedValue = value
		p.markVerified(now)
		return OutcomeVerified, nil
	case IDCard:
		if strings.TrimSpace(value) == "" {
			return 0, errs.NewValueIsRequiredError("id card reference")
		}
		p.attempts++
		p.submittedValue = value
		p.status = ProofSubmitted
		return OutcomeAwaitingReview, nil
	default:
		return 0, errs.NewCorruptionError("proof "+p.id.String(), "unknown proof type")
	}
}

// verify settles a SUBMITTED proof by operator decision.
func (p *ActionProof) verify(approved bool, now time.Time) (ProofOutcome, error) {
	if p.status != ProofSubmitted {
		return 0, errs.NewRuleViolationError(ReasonProofNotSubmitted,
			fmt.Sprintf("proof %s is %s", p.id, p.status))
	}
	if !approved {
		p.status = ProofRejected
		return OutcomeRejected, nil
	}
	p.markVerified(now)
	return OutcomeVerified, nil
}

func (p *ActionProof) markVerified(now time.Time) {
	t := now
	p.status = ProofVerified
	p.verifiedAt = &t
}

// clone copies the requirement, not the evidence.
func (p *ActionProof) clone() *ActionProof {
	return &ActionProof{
		id:            kernel.NewUUID(),
		proofType:     p.proofType,
		expectedValue: p.expectedValue,
		status:        ProofRequired,
	}
}

// ProofPolicy builds the proofs of new actions.
type ProofPolicy struct {
	DefaultVerification []ProofType
	OTPLength           int
}

// NewProofs creates REQUIRED proofs for types, or for the default verification when
// types is nil.
func (pp ProofPolicy) NewProofs(types []ProofType) ([]*ActionProof, error) {
	if types == nil {
		types = pp.DefaultVerification
	}
	proofs := make([]*ActionProof, 0, len(types))
	for _, t := range types {
		var expected string
		if t == OTP {
			code, err := GenerateOTP(pp.OTPLength)
			if err != nil {
				return nil, err
			}
			expected = code
		}
		proof, err := NewActionProof(kernel.NewUUID(), t, expected)
		if err != nil {
			return nil, err
		}
		proofs = append(proofs, proof)
	}
	return proofs, nil
}

// GenerateOTP returns length crypto-random decimal digits.
func GenerateOTP(length int) (string, error) {
	if length < 4 || length > 12 {
		return "", errs.NewValueIsOutOfRangeError("otp length", length, 4, 12)
	}
	var b strings.Builder
	b.Grow(length)
	ten := big.NewInt(10)
	for range length {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
