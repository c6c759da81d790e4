package kernel

import (
	"fmt"

	"dispatch/internal/pkg/errs"

	"github.com/google/uuid"
)

// ErrUUIDIsNotConstructed is returned when validating a zero-value UUID.
var ErrUUIDIsNotConstructed = errs.NewValueIsRequiredError(
	"UUID must be created via NewUUID, UUIDFromString, or UUIDFromBytes")

// UUID identifies every aggregate and child entity of the dispatch model (orders,
// steps, stops, actions, proofs, missions, drivers, zones). It wraps
// github.com/google/uuid so the domain never handles uuid.Nil by accident: the zero
// value fails Validate.
type UUID struct {
	id uuid.UUID
}

// NewUUID generates a new random (version 4) identifier.
func NewUUID() UUID {
	return UUID{id: uuid.New()}
}

// UUIDFromString parses the canonical textual form, as received from drivers'
// clients or read back from the database.
func UUIDFromString(s string) (UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return UUID{}, fmt.Errorf("invalid UUID format: %w", err)
	}
	parsed := UUID{id: id}
	if err = parsed.Validate(); err != nil {
		return UUID{}, err
	}
	return parsed, nil
}

// UUIDFromBytes restores a UUID from its 16-byte form (persistence DTOs).
func UUIDFromBytes(b []byte) (UUID, error) {
	id, err := uuid.FromBytes(b)
	if err != nil {
		return UUID{}, fmt.Errorf("invalid UUID format: %w", err)
	}
	restored := UUID{id: id}
	if err = restored.Validate(); err != nil {
		return UUID{}, err
	}
	return restored, nil
}

// UUIDsFromStrings parses a list of identifiers, failing on the first invalid entry.
func UUIDsFromStrings(values []string) ([]UUID, error) {
	out := make([]UUID, 0, len(values))
	for _, v := range values {
		id, err := UUIDFromString(v)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// UUIDsToStrings is the inverse of UUIDsFromStrings.
func UUIDsToStrings(ids []UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func (u UUID) String() string {
	return u.id.String()
}

// Bytes returns the underlying google UUID, used by gorm DTOs.
func (u UUID) Bytes() uuid.UUID {
	return u.id
}

func (u UUID) IsEqual(other UUID) bool {
	return u.id == other.id
}

// IsZero reports whether u is the zero value.
func (u UUID) IsZero() bool {
	return u.id == uuid.Nil
}

func (u UUID) Validate() error {
	if u.id == uuid.Nil {
		return ErrUUIDIsNotConstructed
	}
	return nil
}
