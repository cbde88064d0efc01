package handler

import (
	"log/slog"

	"github.com/cuongbtq/fetch-archiver/internal/service"
)

// PoolStats exposes worker pool counters for the health endpoint
type PoolStats interface {
	Stats() map[string]int64
}

// BrokerStatus reports whether the event broker connection is up
type BrokerStatus interface {
	IsConnected() bool
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	Service     *service.JobService
	Pool        PoolStats
	Broker      BrokerStatus // nil when events are disabled
	ArtifactDir string
	ServiceName string
	Version     string
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger  *slog.Logger
	service *service.JobService
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:  deps.Logger,
		service: deps.Service,
	}
}
