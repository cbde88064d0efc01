package workdir

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const dirPrefix = "job-"

// Manager allocates and removes per-job working directories under a base directory
type Manager struct {
	baseDir string
	logger  *slog.Logger
}

// NewManager creates a Manager rooted at baseDir, creating it if needed
func NewManager(baseDir string, logger *slog.Logger) (*Manager, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve work dir %s: %w", baseDir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work dir %s: %w", abs, err)
	}
	return &Manager{baseDir: abs, logger: logger}, nil
}

// BaseDir returns the absolute base directory
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// Acquire creates a new, empty, uniquely named directory
func (m *Manager) Acquire() (string, error) {
	path := filepath.Join(m.baseDir, dirPrefix+uuid.NewString())
	// Mkdir (not MkdirAll) so an existing path is reported instead of shared
	if err := os.Mkdir(path, 0o700); err != nil {
		return "", fmt.Errorf("failed to create working directory: %w", err)
	}

	m.logger.Debug("Working directory acquired", slog.String("path", path))
	return path, nil
}

// Release recursively removes a directory previously returned by Acquire.
// A directory that is already gone is not an error.
func (m *Manager) Release(path string) error {
	if err := m.ensureOwned(path); err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove working directory %s: %w", path, err)
	}

	m.logger.Debug("Working directory released", slog.String("path", path))
	return nil
}

// ensureOwned rejects paths that are not direct children of the base directory
func (m *Manager) ensureOwned(path string) error {
	clean := filepath.Clean(path)
	rel, err := filepath.Rel(m.baseDir, clean)
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}
	if rel == "." || strings.HasPrefix(rel, "..") || strings.ContainsRune(rel, filepath.Separator) {
		return fmt.Errorf("path %s is not a working directory under %s", path, m.baseDir)
	}
	if !strings.HasPrefix(rel, dirPrefix) {
		return fmt.Errorf("path %s was not allocated by this manager", path)
	}
	return nil
}
