package queries

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/guard"
)

var (
	ErrGetAllDriversQueryIsNotConstructed = errors.New(
		"GetAllDriversQuery must be created via NewGetAllDriversQuery constructor",
	)
)

// GetAllDriversQuery lists drivers with their availability and current load.
type GetAllDriversQuery struct {
	guard guard.ConstructorGuard
}

func NewGetAllDriversQuery() GetAllDriversQuery {
	return GetAllDriversQuery{guard: guard.NewConstructorGuard()}
}

func (q GetAllDriversQuery) Validate() error {
	return q.guard.Validate(ErrGetAllDriversQueryIsNotConstructed)
}

type GetAllDriversQueryResponse struct {
	ID             kernel.UUID
	Name           string
	CompanyID      *kernel.UUID
	WorkMode       string
	Online         bool
	ActiveMissions int
}
