// Package pgconv converts identifiers between the domain kernel and the column
// types used by the gorm DTOs.
package pgconv

import (
	"dispatch/internal/core/domain/model/kernel"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

func NullableUUID(id *kernel.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	raw := id.Bytes()
	return &raw
}

func FromNullableUUID(raw *uuid.UUID) (*kernel.UUID, error) {
	if raw == nil {
		return nil, nil
	}
	id, err := kernel.UUIDFromBytes(raw[:])
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func FromUUID(raw uuid.UUID) (kernel.UUID, error) {
	return kernel.UUIDFromBytes(raw[:])
}

// UUIDArray maps ids to a text[] column.
func UUIDArray(ids []kernel.UUID) pq.StringArray {
	return pq.StringArray(kernel.UUIDsToStrings(ids))
}

func FromUUIDArray(values pq.StringArray) ([]kernel.UUID, error) {
	if len(values) == 0 {
		return nil, nil
	}
	return kernel.UUIDsFromStrings(values)
}

func UUIDs(ids []kernel.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Bytes())
	}
	return out
}
