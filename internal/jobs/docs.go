// Package jobs provides the scheduled background tasks of the dispatch engine.
//
// Jobs run on github.com/robfig/cron/v3 with second precision. Every job is a
// thin wrapper around a command handler; the JobManager adds logging, metrics,
// panic recovery and skips a tick while the previous run of the same job is
// still going.
//
// # Available Jobs
//
//  1. DispatchJob - offers pending orders whose back-off has elapsed (every second)
//  2. OfferExpiryJob - withdraws offers whose window closed and redispatches them (every second)
//  3. LocationFlushJob - drains buffered driver positions into the history table (every 5 minutes)
//
// # Usage
//
//	manager := jobs.NewJobManager(logger, cronMetrics)
//	manager.Register(jobs.NewDispatchJob(dispatchHandler), cfg.DispatchInterval)
//	manager.Register(jobs.NewOfferExpiryJob(expireHandler), cfg.OfferExpiryInterval)
//	manager.Register(jobs.WithLock(jobs.NewLocationFlushJob(flushHandler), flushLock), cfg.FlushInterval)
//
//	if err := manager.StartAll(); err != nil {
//		return err
//	}
//	defer manager.StopAll(ctx)
//
// # Error Handling
//
// Expected business outcomes (nothing to dispatch, no candidates) are not errors.
// A failed run is logged and counted; the next tick retries.
package jobs
