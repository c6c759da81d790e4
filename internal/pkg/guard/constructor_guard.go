// Package guard detects zero-value domain objects that bypassed their constructors.
package guard

import "errors"

// ErrDefaultConstructorGuard is returned by Validate when no specific error is supplied.
var ErrDefaultConstructorGuard = errors.New("object must be created via its constructor")

// ConstructorGuard is embedded in value objects, entities and commands. Only
// NewConstructorGuard sets the flag, so a struct literal or zero value fails Validate.
//
// Example:
//
//	type RecordPositionCommand struct {
//	    driverID kernel.UUID
//	    guard    guard.ConstructorGuard
//	}
//
//	func (c RecordPositionCommand) Validate() error {
//	    return c.guard.Validate(ErrRecordPositionCommandIsNotConstructed)
//	}
type ConstructorGuard struct {
	isConstructed bool
}

// NewConstructorGuard marks the owning object as properly constructed.
func NewConstructorGuard() ConstructorGuard {
	return ConstructorGuard{isConstructed: true}
}

// Validate returns validationError (or ErrDefaultConstructorGuard when nil) if the
// owning object was not built by its constructor.
func (g ConstructorGuard) Validate(validationError error) error {
	if g.isConstructed {
		return nil
	}
	if validationError == nil {
		return ErrDefaultConstructorGuard
	}
	return validationError
}
