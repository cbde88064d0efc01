package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cuongbtq/fetch-archiver/internal/domain"
	"github.com/cuongbtq/fetch-archiver/internal/fetcher"
	"github.com/cuongbtq/fetch-archiver/internal/packager"
	"github.com/cuongbtq/fetch-archiver/internal/registry"
)

// Workspace allocates isolated working directories
type Workspace interface {
	Acquire() (string, error)
	Release(path string) error
}

// Packager turns a job's output tree into an archive
type Packager interface {
	Package(root, subdir, dest string) (*packager.Result, error)
}

// RunnerConfig holds the collaborators of a Runner
type RunnerConfig struct {
	Logger      *slog.Logger
	Registry    *registry.Registry
	Workspace   Workspace
	Fetchers    fetcher.Factory
	Packager    Packager
	Publisher   EventPublisher
	ArtifactDir string
	JobTimeout  time.Duration
}

// Runner executes one job from processing to a terminal status
type Runner struct {
	logger      *slog.Logger
	registry    *registry.Registry
	workspace   Workspace
	fetchers    fetcher.Factory
	packager    Packager
	events      *eventSink
	artifactDir string
	jobTimeout  time.Duration
	now         func() time.Time
}

// NewRunner creates a new Runner
func NewRunner(cfg *RunnerConfig) *Runner {
	return &Runner{
		logger:      cfg.Logger,
		registry:    cfg.Registry,
		workspace:   cfg.Workspace,
		fetchers:    cfg.Fetchers,
		packager:    cfg.Packager,
		events:      newEventSink(cfg.Publisher, cfg.Logger),
		artifactDir: cfg.ArtifactDir,
		jobTimeout:  cfg.JobTimeout,
		now:         time.Now,
	}
}

// Run processes a single job. Every failure is recorded on the job; nothing is returned to the caller.
func (r *Runner) Run(ctx context.Context, jobID string) {
	job, err := r.registry.Get(jobID)
	if err != nil {
		r.logger.Error("Failed to load job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}

	r.logger.Info("Processing job",
		slog.String("job_id", job.ID),
		slog.String("account_name", job.AccountName),
		slog.String("job_type", string(job.Type)),
	)

	start := r.now()
	result, err := r.execute(ctx, &job)

	// Step 7: Commit the terminal status
	r.commit(ctx, &job, result, err, r.now().Sub(start))
}

// Reject fails a job that never reached a worker
func (r *Runner) Reject(ctx context.Context, jobID string, cause error) {
	job, err := r.registry.Get(jobID)
	if err != nil {
		r.logger.Error("Failed to load rejected job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}
	r.commit(ctx, &job, nil, cause, 0)
}

// execute runs steps 1-6 and returns the packaged artifact or the classified failure
func (r *Runner) execute(ctx context.Context, job *domain.Job) (result *packager.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("internal error while processing job: %v", rec)
		}
	}()

	// Step 1: Acquire a fresh working directory
	dir, err := r.workspace.Acquire()
	if err != nil {
		return nil, domain.NewResourceError("acquire working directory", err)
	}

	// Step 6: Release the working directory whatever happens below
	defer r.release(job.ID, dir)

	// Step 2-3: Run the Fetcher operation for the job type
	if err := r.fetch(ctx, job, dir); err != nil {
		return nil, err
	}

	// Step 4: Package the account's subtree
	dest := filepath.Join(r.artifactDir, job.ID+".zip")
	result, err = r.packager.Package(dir, job.AccountName, dest)
	if err != nil {
		return nil, domain.NewResourceError("package artifact", err)
	}

	// Step 5: A fetch with nothing to deliver is still a failure
	if result.FileCount == 0 {
		if rmErr := os.Remove(result.Path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			r.logger.Warn("Failed to remove empty archive",
				slog.String("job_id", job.ID),
				slog.String("error", rmErr.Error()),
			)
		}
		return nil, &domain.EmptyResultError{}
	}

	return result, nil
}

// fetch invokes the Fetcher, converting errors and panics into a FetchError
func (r *Runner) fetch(ctx context.Context, job *domain.Job, dir string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = domain.NewFetchError(fmt.Errorf("fetcher panicked: %v", rec))
		}
	}()

	if r.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.jobTimeout)
		defer cancel()
	}

	if err := fetcher.Dispatch(ctx, r.fetchers(job.AccountName), job.Type, dir); err != nil {
		return domain.NewFetchError(err)
	}
	return nil
}

// release removes the working directory; failures are logged, never escalated
func (r *Runner) release(jobID, dir string) {
	if err := r.workspace.Release(dir); err != nil {
		r.logger.Warn("Failed to release working directory",
			slog.String("job_id", jobID),
			slog.String("path", dir),
			slog.String("error", err.Error()),
		)
	}
}

func (r *Runner) commit(ctx context.Context, job *domain.Job, result *packager.Result, jobErr error, elapsed time.Duration) {
	finishedAt := r.now()

	updateErr := r.registry.Update(job.ID, func(j *domain.Job) error {
		if jobErr != nil {
			j.Fail(jobErr.Error(), finishedAt)
		} else {
			j.Complete(result.Path, result.FileCount, finishedAt)
		}
		*job = j.Clone()
		return nil
	})
	if updateErr != nil {
		r.logger.Error("Failed to update job status",
			slog.String("job_id", job.ID),
			slog.String("error", updateErr.Error()),
		)
		// Nobody can download an artifact the registry does not point at
		if result != nil {
			_ = os.Remove(result.Path)
		}
		return
	}

	if jobErr != nil {
		r.logger.Warn("Job failed",
			slog.String("job_id", job.ID),
			slog.String("job_type", string(job.Type)),
			slog.String("kind", classify(jobErr)),
			slog.String("error", jobErr.Error()),
			slog.Duration("elapsed", elapsed),
		)
	} else {
		r.logger.Info("Job completed successfully",
			slog.String("job_id", job.ID),
			slog.String("job_type", string(job.Type)),
			slog.Int("file_count", result.FileCount),
			slog.Int64("archive_bytes", result.Bytes),
			slog.Duration("elapsed", elapsed),
		)
	}

	r.events.publish(ctx, job)
}

// classify names the failure category for logs
func classify(err error) string {
	var (
		resErr   *domain.ResourceError
		fetchErr *domain.FetchError
		emptyErr *domain.EmptyResultError
	)
	switch {
	case errors.As(err, &fetchErr):
		return "fetch"
	case errors.As(err, &emptyErr):
		return "empty_result"
	case errors.As(err, &resErr):
		return "resource"
	case errors.Is(err, domain.ErrQueueFull):
		return "queue_full"
	default:
		return "internal"
	}
}
