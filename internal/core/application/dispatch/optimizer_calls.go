package dispatch

import (
	"context"
	"sync"

	"dispatch/internal/core/domain/model/kernel"
)

// OptimizerCalls registers the cancel functions of in-flight optimizer calls per
// order. An order may have several calls at once (driver and client views).
type OptimizerCalls struct {
	mu    sync.Mutex
	next  uint64
	calls map[kernel.UUID]map[uint64]context.CancelFunc
}

func NewOptimizerCalls() *OptimizerCalls {
	return &OptimizerCalls{calls: make(map[kernel.UUID]map[uint64]context.CancelFunc)}
}

// Begin derives a cancellable context for a call on orderID. The returned release
// func must be called when the call returns.
func (r *OptimizerCalls) Begin(parent context.Context, orderID kernel.UUID) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	r.mu.Lock()
	r.next++
	token := r.next
	if r.calls[orderID] == nil {
		r.calls[orderID] = make(map[uint64]context.CancelFunc)
	}
	r.calls[orderID][token] = cancel
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		if byOrder, ok := r.calls[orderID]; ok {
			delete(byOrder, token)
			if len(byOrder) == 0 {
				delete(r.calls, orderID)
			}
		}
		r.mu.Unlock()
		cancel()
	}
	return ctx, release
}

// Cancel aborts every in-flight call of orderID.
func (r *OptimizerCalls) Cancel(orderID kernel.UUID) {
	r.mu.Lock()
	byOrder := r.calls[orderID]
	delete(r.calls, orderID)
	r.mu.Unlock()

	for _, cancel := range byOrder {
		cancel()
	}
}

// InFlight returns the number of registered calls of orderID.
func (r *OptimizerCalls) InFlight(orderID kernel.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls[orderID])
}
