package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Every typed error below unwraps to exactly one of them so callers
// can classify failures with errors.Is without depending on the concrete type.
var (
	ErrObjectNotFound     = errors.New("object not found")
	ErrValueIsInvalid     = errors.New("value is invalid")
	ErrValueIsOutOfRange  = errors.New("value is out of range")
	ErrValueIsRequired    = errors.New("value is required")
	ErrRuleViolation      = errors.New("business rule violation")
	ErrInvariantViolation = errors.New("structural invariant violation")
	ErrDataCorruption     = errors.New("data corruption detected")
)

// ObjectNotFoundError is returned when an entity cannot be located by its identifier.
type ObjectNotFoundError struct {
	ParamName string
	ID        any
	Cause     error
}

func NewObjectNotFoundError(paramName string, id any) *ObjectNotFoundError {
	return &ObjectNotFoundError{ParamName: paramName, ID: id}
}

func NewObjectNotFoundErrorWithCause(paramName string, id any, cause error) *ObjectNotFoundError {
	return &ObjectNotFoundError{ParamName: paramName, ID: id, Cause: cause}
}

func (e *ObjectNotFoundError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: param is: %s, ID is: %s (cause: %v)",
			ErrObjectNotFound, e.ParamName, sanitize(fmt.Sprintf("%s", e.ID)), e.Cause)
	}
	return fmt.Sprintf("%s: %s", ErrObjectNotFound, sanitize(fmt.Sprintf("%s", e.ID)))
}

func (e *ObjectNotFoundError) Unwrap() error {
	return ErrObjectNotFound
}

// ValueIsInvalidError reports a value that failed validation.
type ValueIsInvalidError struct {
	ParamName string
	Cause     error
}

func NewValueIsInvalidError(paramName string) *ValueIsInvalidError {
	return &ValueIsInvalidError{ParamName: paramName}
}

func NewValueIsInvalidErrorWithCause(paramName string, cause error) *ValueIsInvalidError {
	return &ValueIsInvalidError{ParamName: paramName, Cause: cause}
}

func (e *ValueIsInvalidError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", ErrValueIsInvalid, e.ParamName, e.Cause)
	}
	return fmt.Sprintf("%s: %s", ErrValueIsInvalid, e.ParamName)
}

func (e *ValueIsInvalidError) Unwrap() error {
	return ErrValueIsInvalid
}

// ValueIsOutOfRangeError reports a value outside of [Min..Max].
type ValueIsOutOfRangeError struct {
	ParamName string
	Value     any
	Min       any
	Max       any
	Cause     error
}

func NewValueIsOutOfRangeError(paramName string, value, minValue, maxValue any) *ValueIsOutOfRangeError {
	return &ValueIsOutOfRangeError{ParamName: paramName, Value: value, Min: minValue, Max: maxValue}
}

func NewValueIsOutOfRangeErrorWithCause(
	paramName string, value, minValue, maxValue any, cause error,
) *ValueIsOutOfRangeError {
	return &ValueIsOutOfRangeError{ParamName: paramName, Value: value, Min: minValue, Max: maxValue, Cause: cause}
}

func (e *ValueIsOutOfRangeError) Error() string {
	msg := fmt.Sprintf("%s: %v is %s, min value is %v, max value is %v",
		ErrValueIsInvalid, sanitizeValue(e.Value), e.ParamName, sanitizeValue(e.Min), sanitizeValue(e.Max))
	if e.Cause != nil {
		msg += fmt.Sprintf(" (cause: %v)", e.Cause)
	}
	return msg
}

func (e *ValueIsOutOfRangeError) Unwrap() error {
	return ErrValueIsOutOfRange
}

// ValueIsRequiredError reports a missing mandatory value.
type ValueIsRequiredError struct {
	ParamName string
	Cause     error
}

func NewValueIsRequiredError(paramName string) *ValueIsRequiredError {
	return &ValueIsRequiredError{ParamName: paramName}
}

func NewValueIsRequiredErrorWithCause(paramName string, cause error) *ValueIsRequiredError {
	return &ValueIsRequiredError{ParamName: paramName, Cause: cause}
}

func (e *ValueIsRequiredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", ErrValueIsRequired, e.ParamName, e.Cause)
	}
	return fmt.Sprintf("%s: %s", ErrValueIsRequired, e.ParamName)
}

func (e *ValueIsRequiredError) Unwrap() error {
	return ErrValueIsRequired
}

// RuleViolationError is a synchronous business-rule rejection. Code is a stable,
// machine-readable reason (e.g. "CHAINING_RADIUS_EXCEEDED"); it is never retried.
type RuleViolationError struct {
	Code    string
	Message string
}

func NewRuleViolationError(code, message string) *RuleViolationError {
	return &RuleViolationError{Code: code, Message: message}
}

func (e *RuleViolationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", ErrRuleViolation, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", ErrRuleViolation, e.Code, sanitize(e.Message))
}

func (e *RuleViolationError) Unwrap() error {
	return ErrRuleViolation
}

// InvariantViolationError rejects a change that would break the structure of an
// aggregate. The caller resolves it by waiting (e.g. for the next checkpoint).
type InvariantViolationError struct {
	Subject string
	Message string
}

func NewInvariantViolationError(subject, message string) *InvariantViolationError {
	return &InvariantViolationError{Subject: subject, Message: message}
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvariantViolation, e.Subject, sanitize(e.Message))
}

func (e *InvariantViolationError) Unwrap() error {
	return ErrInvariantViolation
}

// CorruptionError is fatal: persisted state contradicts itself and needs an operator.
type CorruptionError struct {
	Subject string
	Message string
}

func NewCorruptionError(subject, message string) *CorruptionError {
	return &CorruptionError{Subject: subject, Message: message}
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrDataCorruption, e.Subject, sanitize(e.Message))
}

func (e *CorruptionError) Unwrap() error {
	return ErrDataCorruption
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func sanitize(s string) string {
	return lineBreaks.Replace(s)
}

func sanitizeValue(v any) string {
	return sanitize(fmt.Sprintf("%v", v))
}
