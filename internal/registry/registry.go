package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cuongbtq/fetch-archiver/internal/domain"
)

// Registry is the process-wide store of job records
type Registry struct {
	mu     sync.RWMutex
	jobs   map[string]*domain.Job
	logger *slog.Logger
}

// JobFilter narrows List results. Zero values match everything.
type JobFilter struct {
	Status domain.JobStatus
	Type   domain.JobType
	Limit  int
	After  *Cursor // only jobs listed after this position
}

// Cursor is a position in the newest-first ordering used by List
type Cursor struct {
	CreatedAt time.Time
	JobID     string
}

// before reports whether job sorts ahead of the cursor position
func (c *Cursor) before(job *domain.Job) bool {
	if job.CreatedAt.Equal(c.CreatedAt) {
		return job.ID >= c.JobID
	}
	return job.CreatedAt.After(c.CreatedAt)
}

// New creates an empty registry
func New(logger *slog.Logger) *Registry {
	return &Registry{
		jobs:   make(map[string]*domain.Job),
		logger: logger,
	}
}

// Submit inserts a new job record
func (r *Registry) Submit(job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateJob, job.ID)
	}

	stored := job.Clone()
	r.jobs[job.ID] = &stored

	r.logger.Debug("Job registered",
		slog.String("job_id", job.ID),
		slog.String("account_name", job.AccountName),
		slog.String("job_type", string(job.Type)),
	)

	return nil
}

// Get returns a copy of the job record
func (r *Registry) Get(id string) (domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return domain.Job{}, domain.ErrJobNotFound
	}
	return job.Clone(), nil
}

// Update applies mutate to the job atomically. The change is discarded if mutate
// fails or if it would move a terminal job back to processing or to another terminal status.
func (r *Registry) Update(id string, mutate func(job *domain.Job) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}

	scratch := current.Clone()
	if err := mutate(&scratch); err != nil {
		return err
	}

	if current.Status.IsTerminal() && scratch.Status != current.Status {
		return fmt.Errorf("%w: %s is %s", domain.ErrJobFinalized, id, current.Status)
	}

	*current = scratch
	return nil
}

// List returns a snapshot of matching jobs, newest first
func (r *Registry) List(filter JobFilter) []domain.Job {
	r.mu.RLock()
	jobs := make([]domain.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.Type != "" && job.Type != filter.Type {
			continue
		}
		if filter.After != nil && filter.After.before(job) {
			continue
		}
		jobs = append(jobs, job.Clone())
	}
	r.mu.RUnlock()

	// Order by created_at DESC, id DESC for stable output
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID > jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	if filter.Limit > 0 && len(jobs) > filter.Limit {
		jobs = jobs[:filter.Limit]
	}
	return jobs
}

// Len returns the number of records held
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Evict removes terminal jobs that finished before cutoff and returns them
func (r *Registry) Evict(cutoff time.Time) []domain.Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []domain.Job
	for id, job := range r.jobs {
		if !job.Status.IsTerminal() || job.FinishedAt == nil {
			continue
		}
		if job.FinishedAt.Before(cutoff) {
			evicted = append(evicted, job.Clone())
			delete(r.jobs, id)
		}
	}

	if len(evicted) > 0 {
		r.logger.Info("Evicted finished jobs",
			slog.Int("count", len(evicted)),
			slog.Time("cutoff", cutoff),
		)
	}

	return evicted
}
