package cleanup

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Scheduler deletes files after a delay without blocking the caller
type Scheduler struct {
	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// NewScheduler creates a new Scheduler
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		pending: make(map[string]*time.Timer),
		logger:  logger,
	}
}

// Schedule arranges for path to be removed once delay has elapsed.
// It returns false if path is already scheduled or the scheduler is shut down.
func (s *Scheduler) Schedule(path string, delay time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Warn("Cleanup scheduler closed, ignoring deletion request",
			slog.String("path", path),
		)
		return false
	}
	if _, exists := s.pending[path]; exists {
		return false
	}

	s.wg.Add(1)
	s.pending[path] = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		s.mu.Lock()
		delete(s.pending, path)
		s.mu.Unlock()
		s.remove(path)
	})

	s.logger.Info("Artifact deletion scheduled",
		slog.String("path", path),
		slog.Duration("delay", delay),
	)
	return true
}

// Pending returns the number of deletions not yet run
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Shutdown cancels outstanding timers, deletes their files immediately and
// waits for deletions already in progress.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	s.closed = true
	var flush []string
	for path, timer := range s.pending {
		if timer.Stop() {
			flush = append(flush, path)
			s.wg.Done()
		}
		delete(s.pending, path)
	}
	s.mu.Unlock()

	for _, path := range flush {
		s.remove(path)
	}
	s.wg.Wait()

	s.logger.Info("Cleanup scheduler stopped", slog.Int("flushed", len(flush)))
}

// remove deletes path, treating an absent file as success
func (s *Scheduler) remove(path string) {
	err := os.Remove(path)
	switch {
	case err == nil:
		s.logger.Info("Artifact deleted", slog.String("path", path))
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Debug("Artifact already absent", slog.String("path", path))
	default:
		s.logger.Warn("Failed to delete artifact",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}
