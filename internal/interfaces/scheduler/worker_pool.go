package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	jobTracer      = otel.Tracer("wealthdash/scheduler")
	jobMeter       = otel.Meter("wealthdash/scheduler")
	jobDuration, _ = jobMeter.Float64Histogram("wealthdash.job.duration",
		metric.WithDescription("Background job duration"),
		metric.WithUnit("s"),
	)
	jobOutcomes, _ = jobMeter.Int64Counter("wealthdash.job.outcomes",
		metric.WithDescription("Background jobs by outcome"),
	)
)

var (
	// ErrQueueFull is returned by Submit when the job buffer is full.
	ErrQueueFull = errors.New("job queue full")
	// ErrPoolClosed is returned by Submit once shutdown has begun.
	ErrPoolClosed = errors.New("worker pool closed")
)

const jobTimeout = 2 * time.Minute

const (
	outcomeSuccess  = "success"
	outcomeError    = "error"
	outcomePanic    = "panic"
	outcomeRejected = "rejected"
)

// WorkerPool runs submitted jobs on a fixed number of goroutines.
type WorkerPool struct {
	workers int
	pause   time.Duration
	queue   chan Job
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewWorkerPool creates a pool. jobDelay is a pause each worker takes after a
// job so provider rate limits are not hit in bursts.
func NewWorkerPool(workerCount int, jobDelay time.Duration, queueSize int, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		workers: max(workerCount, 1),
		pause:   jobDelay,
		queue:   make(chan Job, max(queueSize, 0)),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (wp *WorkerPool) Start() {
	wp.logger.Info("starting worker pool", "workers", wp.workers, "queue", cap(wp.queue))
	wp.wg.Add(wp.workers)
	for id := range wp.workers {
		go wp.work(id + 1)
	}
}

func (wp *WorkerPool) work(id int) {
	defer wp.wg.Done()
	for job := range wp.queue {
		if wp.ctx.Err() != nil {
			return
		}
		wp.run(id, job)
		if !wp.sleep() {
			return
		}
	}
}

// sleep waits out the inter-job pause. It reports false once the pool is
// cancelled.
func (wp *WorkerPool) sleep() bool {
	if wp.pause <= 0 {
		return true
	}
	t := time.NewTimer(wp.pause)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-wp.ctx.Done():
		return false
	}
}

func (wp *WorkerPool) run(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(wp.ctx, jobTimeout)
	defer cancel()

	ctx, span := jobTracer.Start(ctx, "job "+job.Description(), trace.WithAttributes(
		attribute.Int("worker.id", workerID),
		attribute.String("job.user_id", job.UserID()),
	))
	defer span.End()

	logger := wp.logger.With("worker", workerID, "job", job.Description(), "user_id", job.UserID())
	start := time.Now()

	outcome, err := execute(ctx, job)
	elapsed := time.Since(start)

	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	jobOutcomes.Add(ctx, 1, attrs)
	jobDuration.Record(ctx, elapsed.Seconds(), attrs)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.ErrorContext(ctx, "job failed", "outcome", outcome, "error", err, "duration", elapsed)
		return
	}
	logger.DebugContext(ctx, "job completed", "duration", elapsed)
}

// execute runs job and turns a panic into an error so one bad job cannot
// take a worker down.
func execute(ctx context.Context, job Job) (outcome string, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, err = outcomePanic, fmt.Errorf("job panicked: %v", r)
		}
	}()
	if err := job.Execute(ctx); err != nil {
		return outcomeError, err
	}
	return outcomeSuccess, nil
}

// Submit queues a job without blocking. A full queue drops the job and
// returns ErrQueueFull.
func (wp *WorkerPool) Submit(job Job) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.closed {
		return ErrPoolClosed
	}
	select {
	case wp.queue <- job:
		return nil
	default:
		jobOutcomes.Add(wp.ctx, 1, metric.WithAttributes(attribute.String("outcome", outcomeRejected)))
		return fmt.Errorf("%w: dropping job for user %s", ErrQueueFull, job.UserID())
	}
}

// SubmitBatch queues jobs and returns how many were accepted.
func (wp *WorkerPool) SubmitBatch(jobs []Job) int {
	accepted := 0
	for _, job := range jobs {
		if err := wp.Submit(job); err != nil {
			wp.logger.Warn("failed to submit job", "user_id", job.UserID(), "error", err)
			continue
		}
		accepted++
	}
	wp.logger.Info("submitted jobs to worker pool", "accepted", accepted, "total", len(jobs))
	return accepted
}

// ShutdownWithTimeout stops accepting jobs and waits for queued and running
// ones. Whatever is still running after timeout has its context cancelled.
func (wp *WorkerPool) ShutdownWithTimeout(timeout time.Duration) {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	close(wp.queue)
	wp.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(drained)
	}()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-drained:
		wp.logger.Info("worker pool drained")
	case <-t.C:
		wp.logger.Warn("worker pool shutdown timed out, cancelling running jobs")
	}
	wp.cancel()
}
