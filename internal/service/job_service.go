package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cuongbtq/fetch-archiver/internal/domain"
	"github.com/cuongbtq/fetch-archiver/internal/registry"
)

// JobQueue accepts registered jobs for background execution
type JobQueue interface {
	Enqueue(ctx context.Context, jobID string) error
}

// DeletionScheduler removes delivered artifacts after a delay
type DeletionScheduler interface {
	Schedule(path string, delay time.Duration) bool
}

// Config holds the JobService dependencies
type Config struct {
	Logger       *slog.Logger
	Registry     *registry.Registry
	Queue        JobQueue
	Cleanup      DeletionScheduler
	CleanupDelay time.Duration
	Retention    time.Duration
}

// Artifact is a downloadable archive for a completed job
type Artifact struct {
	Path     string
	FileName string
	JobID    string
}

// JobService is the entry point for submitting, polling and downloading jobs
type JobService struct {
	logger       *slog.Logger
	registry     *registry.Registry
	queue        JobQueue
	cleanup      DeletionScheduler
	cleanupDelay time.Duration
	retention    time.Duration
	now          func() time.Time

	idMu      sync.Mutex
	lastStamp int64
}

// NewJobService creates a new JobService
func NewJobService(cfg *Config) *JobService {
	return &JobService{
		logger:       cfg.Logger,
		registry:     cfg.Registry,
		queue:        cfg.Queue,
		cleanup:      cfg.Cleanup,
		cleanupDelay: cfg.CleanupDelay,
		retention:    cfg.Retention,
		now:          time.Now,
	}
}

// Submit validates the request, registers a processing job and hands it to the
// queue. It never waits for the job; queue rejections surface through the job status.
func (s *JobService) Submit(ctx context.Context, accountName, jobType string) (domain.Job, error) {
	account, err := domain.NormalizeAccountName(accountName)
	if err != nil {
		return domain.Job{}, err
	}
	jt, err := domain.ParseJobType(jobType)
	if err != nil {
		return domain.Job{}, err
	}

	createdAt := s.now()
	job := domain.NewJob(s.newJobID(account, jt, createdAt), account, jt, createdAt)
	if err := s.registry.Submit(job); err != nil {
		return domain.Job{}, fmt.Errorf("failed to register job: %w", err)
	}

	s.logger.Info("Job submitted",
		slog.String("job_id", job.ID),
		slog.String("account_name", account),
		slog.String("job_type", string(jt)),
	)

	if err := s.queue.Enqueue(ctx, job.ID); err != nil {
		s.logger.Warn("Job was not queued",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}

	// The record may already be terminal if the queue rejected it
	current, err := s.registry.Get(job.ID)
	if err != nil {
		return domain.Job{}, fmt.Errorf("failed to load job: %w", err)
	}
	return current, nil
}

// Status returns the current record for a job
func (s *JobService) Status(jobID string) (domain.Job, error) {
	return s.registry.Get(jobID)
}

// List returns jobs matching filter, newest first
func (s *JobService) List(filter registry.JobFilter) []domain.Job {
	return s.registry.List(filter)
}

// Download resolves a completed job's archive. The first successful call
// schedules the archive for deletion after the cleanup delay.
func (s *JobService) Download(jobID string) (*Artifact, error) {
	job, err := s.registry.Get(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusCompleted {
		return nil, fmt.Errorf("%w: status is %s", domain.ErrJobNotReady, job.Status)
	}

	if _, err := os.Stat(job.ArtifactPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrArtifactGone
		}
		return nil, domain.NewResourceError("stat artifact", err)
	}

	first := false
	err = s.registry.Update(jobID, func(j *domain.Job) error {
		if j.DeliveredAt == nil {
			now := s.now()
			j.DeliveredAt = &now
			first = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if first {
		s.cleanup.Schedule(job.ArtifactPath, s.cleanupDelay)
		s.logger.Info("Artifact delivered for the first time",
			slog.String("job_id", jobID),
			slog.Duration("cleanup_delay", s.cleanupDelay),
		)
	}

	return &Artifact{
		Path:     job.ArtifactPath,
		FileName: DownloadFileName(&job),
		JobID:    job.ID,
	}, nil
}

// Sweep evicts finished jobs older than the retention period and deletes
// archives that were never downloaded. It returns the number of evicted jobs.
func (s *JobService) Sweep() int {
	if s.retention <= 0 {
		return 0
	}

	evicted := s.registry.Evict(s.now().Add(-s.retention))
	for _, job := range evicted {
		if job.Status != domain.JobStatusCompleted || job.DeliveredAt != nil {
			continue
		}
		if err := os.Remove(job.ArtifactPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("Failed to delete undelivered artifact",
				slog.String("job_id", job.ID),
				slog.String("path", job.ArtifactPath),
				slog.String("error", err.Error()),
			)
		}
	}
	return len(evicted)
}

// RunJanitor calls Sweep every interval until ctx is done
func (s *JobService) RunJanitor(ctx context.Context, interval time.Duration) {
	if s.retention <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Info("Registry sweep finished", slog.Int("evicted", n))
			}
		}
	}
}

// DownloadFileName names the archive delivered to the client
func DownloadFileName(job *domain.Job) string {
	return fmt.Sprintf("%s_%s_%dfiles.zip", job.AccountName, job.Type, job.FileCount)
}

// newJobID derives the id from account, type and a nanosecond stamp that is
// strictly increasing within the process
func (s *JobService) newJobID(account string, jobType domain.JobType, at time.Time) string {
	s.idMu.Lock()
	stamp := at.UnixNano()
	if stamp <= s.lastStamp {
		stamp = s.lastStamp + 1
	}
	s.lastStamp = stamp
	s.idMu.Unlock()

	return fmt.Sprintf("%s_%s_%d", account, jobType, stamp)
}
