package queries

import (
	"dispatch/internal/core/domain/model/kernel"

	"github.com/google/uuid"
)

func toKernelID(id uuid.UUID) (kernel.UUID, error) {
	return kernel.UUIDFromBytes(id[:])
}

func toNullableKernelID(id uuid.NullUUID) (*kernel.UUID, error) {
	if !id.Valid {
		return nil, nil
	}
	converted, err := toKernelID(id.UUID)
	if err != nil {
		return nil, err
	}
	return &converted, nil
}
