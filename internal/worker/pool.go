package worker

import (
	"context"
	"fmt"
	"log/slog"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	for i := 0; i < w.concurrency; i++ {
		workerNum := i
		w.group.Go(func() error {
			w.workerLoop(ctx, workerNum)
			return nil
		})
	}

	w.logger.Info("Worker pool spawned successfully",
		slog.Int("worker_count", w.concurrency),
	)
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Debug("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		// Prefer stopping over picking up more work
		select {
		case <-w.stopChan:
			w.logger.Debug("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return
		case <-ctx.Done():
			w.logger.Debug("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return
		default:
		}

		select {
		case <-w.stopChan:
			return

		case <-ctx.Done():
			return

		case jobID := <-w.jobsChan:
			w.metrics.QueuedJobs.Add(-1)
			w.metrics.ActiveJobs.Add(1)

			w.logger.Info("Worker received job",
				slog.String("worker_name", workerName),
				slog.String("job_id", jobID),
			)

			w.runner.Run(ctx, jobID)

			w.metrics.ActiveJobs.Add(-1)
			w.metrics.CompletedJobs.Add(1)
		}
	}
}
