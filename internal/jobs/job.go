package jobs

import (
	"context"
	"fmt"
)

// Job is one scheduled task.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Lock coordinates exclusive runs across instances.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockedJob struct {
	job  Job
	lock Lock
}

// WithLock runs job only on the instance holding lock. A tick that finds the
// lock taken is skipped without error.
func WithLock(job Job, lock Lock) Job {
	return &lockedJob{job: job, lock: lock}
}

func (j *lockedJob) Name() string { return j.job.Name() }

func (j *lockedJob) Run(ctx context.Context) (err error) {
	locked, err := j.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire %s lock: %w", j.job.Name(), err)
	}
	if !locked {
		return nil
	}
	defer func() {
		if relErr := j.lock.Release(context.WithoutCancel(ctx)); relErr != nil && err == nil {
			err = fmt.Errorf("release %s lock: %w", j.job.Name(), relErr)
		}
	}()
	return j.job.Run(ctx)
}
