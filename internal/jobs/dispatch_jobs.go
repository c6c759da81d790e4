package jobs

import (
	"context"

	"dispatch/internal/core/application/usecases/commands"
)

type (
	pendingDispatcher interface {
		Handle(ctx context.Context, cmd commands.DispatchPendingOrdersCommand) (int, error)
	}

	offerExpirer interface {
		Handle(ctx context.Context, cmd commands.ExpireOffersCommand) (int, error)
	}

	locationFlusher interface {
		Handle(ctx context.Context, cmd commands.FlushLocationsCommand) (int, error)
	}
)

// DispatchJob offers pending orders whose retry back-off has elapsed.
type DispatchJob struct {
	handler pendingDispatcher
}

func NewDispatchJob(handler pendingDispatcher) *DispatchJob {
	return &DispatchJob{handler: handler}
}

func (j *DispatchJob) Name() string { return "dispatch" }

func (j *DispatchJob) Run(ctx context.Context) error {
	_, err := j.handler.Handle(ctx, commands.NewDispatchPendingOrdersCommand())
	return err
}

// OfferExpiryJob withdraws offers whose window has closed.
type OfferExpiryJob struct {
	handler offerExpirer
}

func NewOfferExpiryJob(handler offerExpirer) *OfferExpiryJob {
	return &OfferExpiryJob{handler: handler}
}

func (j *OfferExpiryJob) Name() string { return "offer_expiry" }

func (j *OfferExpiryJob) Run(ctx context.Context) error {
	_, err := j.handler.Handle(ctx, commands.NewExpireOffersCommand())
	return err
}

// LocationFlushJob writes the buffered positions to the history table. A failed
// flush leaves the batch in the buffer for the next run.
type LocationFlushJob struct {
	handler locationFlusher
}

func NewLocationFlushJob(handler locationFlusher) *LocationFlushJob {
	return &LocationFlushJob{handler: handler}
}

func (j *LocationFlushJob) Name() string { return "location_flush" }

func (j *LocationFlushJob) Run(ctx context.Context) error {
	_, err := j.handler.Handle(ctx, commands.NewFlushLocationsCommand())
	return err
}
