package dispatch

import (
	"context"
	"errors"
	"sync"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/route"
	"dispatch/internal/pkg/errs"

	"github.com/rs/zerolog"
)

type routeRecalculator interface {
	Handle(ctx context.Context, cmd commands.RecalculateRouteCommand) error
}

type routeJob struct {
	orderID kernel.UUID
	view    route.View
}

// RouteScheduler runs route recalculations on a fixed pool of workers. A request
// for an (order, view) pair that is already queued is dropped: the queued run
// will read the latest structure anyway.
type RouteScheduler struct {
	recalculator routeRecalculator
	logger       zerolog.Logger
	workers      int

	queue  chan routeJob
	mu     sync.Mutex
	queued map[routeJob]struct{}
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewRouteScheduler(recalculator routeRecalculator, workers, queueSize int, logger zerolog.Logger) *RouteScheduler {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &RouteScheduler{
		recalculator: recalculator,
		logger:       logger.With().Str("component", "route_scheduler").Logger(),
		workers:      workers,
		queue:        make(chan routeJob, queueSize),
		queued:       make(map[routeJob]struct{}),
	}
}

// Start launches the workers. They stop when ctx is cancelled or Stop is called.
func (s *RouteScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	for range s.workers {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.work(ctx)
		}()
	}
}

// Stop cancels running recalculations and waits for the workers.
func (s *RouteScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Schedule queues a recalculation without blocking. When the queue is full the
// request is dropped and logged; the next structural change schedules again.
func (s *RouteScheduler) Schedule(orderID kernel.UUID, view route.View) {
	job := routeJob{orderID: orderID, view: view}

	s.mu.Lock()
	if _, ok := s.queued[job]; ok {
		s.mu.Unlock()
		return
	}
	s.queued[job] = struct{}{}
	s.mu.Unlock()

	select {
	case s.queue <- job:
	default:
		s.mu.Lock()
		delete(s.queued, job)
		s.mu.Unlock()
		s.logger.Warn().
			Str("order_id", orderID.String()).
			Str("view", view.String()).
			Msg("route recalculation queue full, request dropped")
	}
}

func (s *RouteScheduler) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.queue:
			s.mu.Lock()
			delete(s.queued, job)
			s.mu.Unlock()
			s.run(ctx, job)
		}
	}
}

func (s *RouteScheduler) run(ctx context.Context, job routeJob) {
	log := s.logger.With().Str("order_id", job.orderID.String()).Str("view", job.view.String()).Logger()

	cmd, err := commands.NewRecalculateRouteCommand(job.orderID, job.view)
	if err != nil {
		log.Error().Err(err).Msg("invalid route recalculation request")
		return
	}

	err = s.recalculator.Handle(ctx, cmd)
	switch {
	case err == nil:
		log.Debug().Msg("route recalculated")
	case errors.Is(err, context.Canceled), errors.Is(err, errs.ErrObjectNotFound):
		log.Debug().Err(err).Msg("route recalculation abandoned")
	case errors.Is(err, commands.ErrRouteRecalculationFailed):
		log.Warn().Err(err).Msg("route recalculation failed, keeping previous execution order")
	default:
		log.Error().Err(err).Msg("route recalculation error")
	}
}
