package scheduler

import "context"

// Job is one unit of background work, usually scoped to a single user.
type Job interface {
	// Execute must return promptly once ctx is done.
	Execute(ctx context.Context) error
	UserID() string
	// Description names the job kind in spans and logs.
	Description() string
}

// JobProvider builds the batch of jobs for one scheduled run.
type JobProvider func(ctx context.Context) ([]Job, error)
