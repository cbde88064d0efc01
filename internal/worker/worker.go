package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cuongbtq/fetch-archiver/internal/domain"
	"golang.org/x/sync/errgroup"
)

// ErrWorkerStopped is returned when enqueueing after Stop
var ErrWorkerStopped = errors.New("worker is stopped")

// Config holds worker configuration
type Config struct {
	Logger      *slog.Logger
	Runner      *Runner
	WorkerID    string
	Concurrency int
	QueueSize   int
}

// Metrics tracks the pool's operational counters
type Metrics struct {
	ActiveJobs    atomic.Int64
	QueuedJobs    atomic.Int64
	CompletedJobs atomic.Int64
	RejectedJobs  atomic.Int64
}

// Worker runs submitted jobs on a bounded pool of goroutines
type Worker struct {
	logger      *slog.Logger
	runner      *Runner
	workerID    string
	concurrency int
	jobsChan    chan string
	stopChan    chan struct{}
	group       *errgroup.Group
	cancel      context.CancelFunc
	metrics     *Metrics

	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	queueSize := cfg.QueueSize
	if queueSize < 0 {
		queueSize = 0
	}
	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = "worker"
	}

	return &Worker{
		logger:      cfg.Logger,
		runner:      cfg.Runner,
		workerID:    workerID,
		concurrency: concurrency,
		jobsChan:    make(chan string, queueSize),
		stopChan:    make(chan struct{}),
		metrics:     &Metrics{},
	}
}

// Start spawns the worker goroutines. Jobs run with a context derived from ctx.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return fmt.Errorf("worker %s already started", w.workerID)
	}
	w.started = true

	ctx, w.cancel = context.WithCancel(ctx)
	w.group, ctx = errgroup.WithContext(ctx)

	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Int("queue_size", cap(w.jobsChan)),
	)

	w.spawnWorkerPool(ctx)
	return nil
}

// Enqueue hands a registered job to the pool without blocking. When the queue
// is full the job is failed immediately and ErrQueueFull is returned.
func (w *Worker) Enqueue(ctx context.Context, jobID string) error {
	queued, err := w.tryEnqueue(jobID)
	if queued {
		return nil
	}

	// Rejecting publishes an event, which must not hold up Stop
	if errors.Is(err, ErrWorkerStopped) {
		w.runner.Reject(ctx, jobID, fmt.Errorf("service is shutting down"))
	} else {
		w.runner.Reject(ctx, jobID, fmt.Errorf("%w, try again later", domain.ErrQueueFull))
	}
	return err
}

func (w *Worker) tryEnqueue(jobID string) (bool, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return false, ErrWorkerStopped
	}

	select {
	case w.jobsChan <- jobID:
		w.metrics.QueuedJobs.Add(1)
		w.logger.Debug("Job dispatched to worker pool",
			slog.String("job_id", jobID),
		)
		return true, nil
	default:
		w.metrics.RejectedJobs.Add(1)
		w.logger.Warn("Job queue full, rejecting job",
			slog.String("job_id", jobID),
			slog.Int("queue_size", cap(w.jobsChan)),
		)
		return false, domain.ErrQueueFull
	}
}

// Stop stops accepting jobs, lets running jobs finish and fails jobs still queued.
// If ctx expires first, running jobs are canceled.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	started := w.started
	w.mu.Unlock()

	w.logger.Info("Stopping worker...", slog.String("worker_id", w.workerID))
	close(w.stopChan)

	var stopErr error
	if started {
		done := make(chan struct{})
		go func() {
			_ = w.group.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			w.logger.Warn("Worker shutdown timeout exceeded, canceling running jobs")
			w.cancel()
			<-done
			stopErr = ctx.Err()
		}
		w.cancel()
	}

	w.drainQueue(context.WithoutCancel(ctx))

	w.logger.Info("Worker stopped", slog.String("worker_id", w.workerID))
	return stopErr
}

// Stats returns a snapshot of the pool counters
func (w *Worker) Stats() map[string]int64 {
	return map[string]int64{
		"active_jobs":    w.metrics.ActiveJobs.Load(),
		"queued_jobs":    w.metrics.QueuedJobs.Load(),
		"completed_jobs": w.metrics.CompletedJobs.Load(),
		"rejected_jobs":  w.metrics.RejectedJobs.Load(),
		"concurrency":    int64(w.concurrency),
		"queue_capacity": int64(cap(w.jobsChan)),
	}
}

// drainQueue fails every job that was queued but never started
func (w *Worker) drainQueue(ctx context.Context) {
	for {
		select {
		case jobID := <-w.jobsChan:
			w.metrics.QueuedJobs.Add(-1)
			w.metrics.RejectedJobs.Add(1)
			w.runner.Reject(ctx, jobID, fmt.Errorf("service is shutting down"))
		default:
			return
		}
	}
}
