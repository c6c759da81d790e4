package queries

import (
	"errors"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/guard"
)

var (
	ErrGetActiveOrdersQueryIsNotConstructed = errors.New(
		"GetActiveOrdersQuery must be created via NewGetActiveOrdersQuery constructor",
	)
)

// GetActiveOrdersQuery retrieves every order that has not reached a final status,
// for the operators' dispatch board.
//
// Example:
//
//	query := NewGetActiveOrdersQuery()
//	handler := NewGetActiveOrdersQueryHandler(db)
//
//	orders, err := handler.Handle(ctx, query)
//	if err != nil {
//	    return fmt.Errorf("failed to get active orders: %w", err)
//	}
//	for _, o := range orders {
//	    fmt.Printf("%s %s (priority %d)\n", o.ID, o.Status, o.Priority)
//	}
type GetActiveOrdersQuery struct {
	guard guard.ConstructorGuard
}

// NewGetActiveOrdersQuery creates a parameterless query.
func NewGetActiveOrdersQuery() GetActiveOrdersQuery {
	return GetActiveOrdersQuery{guard: guard.NewConstructorGuard()}
}

// Validate ensures the query was created through the constructor.
func (q GetActiveOrdersQuery) Validate() error {
	return q.guard.Validate(ErrGetActiveOrdersQueryIsNotConstructed)
}

// GetActiveOrdersQueryResponse is one row of the dispatch board.
type GetActiveOrdersQueryResponse struct {
	ID               kernel.UUID
	Status           string
	Priority         int
	AttemptCount     int
	AssignedDriverID *kernel.UUID
	Frozen           bool
	CreatedAt        time.Time
}
