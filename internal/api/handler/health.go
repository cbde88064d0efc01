package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v4/disk"
)

// HealthHandler reports service liveness, pool load and artifact disk usage
type HealthHandler struct {
	logger      *slog.Logger
	pool        PoolStats
	broker      BrokerStatus
	artifactDir string
	serviceName string
	version     string
	startedAt   time.Time
}

// NewHealthHandler creates a new HealthHandler instance
func NewHealthHandler(deps *Dependencies) *HealthHandler {
	return &HealthHandler{
		logger:      deps.Logger,
		pool:        deps.Pool,
		broker:      deps.Broker,
		artifactDir: deps.ArtifactDir,
		serviceName: deps.ServiceName,
		version:     deps.Version,
		startedAt:   time.Now(),
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	resp := gin.H{
		"status":  "healthy",
		"service": h.serviceName,
		"version": h.version,
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
	}

	if h.pool != nil {
		resp["worker"] = h.pool.Stats()
	}

	if h.broker != nil {
		connected := h.broker.IsConnected()
		resp["events"] = gin.H{"connected": connected}
		if !connected {
			resp["status"] = "degraded"
		}
	}

	if h.artifactDir != "" {
		usage, err := disk.UsageWithContext(c.Request.Context(), h.artifactDir)
		if err != nil {
			h.logger.Warn("Failed to read artifact disk usage",
				slog.String("path", h.artifactDir),
				slog.String("error", err.Error()),
			)
			resp["status"] = "degraded"
		} else {
			resp["artifact_storage"] = gin.H{
				"path":         h.artifactDir,
				"free_bytes":   usage.Free,
				"used_percent": usage.UsedPercent,
			}
		}
	}

	c.JSON(http.StatusOK, resp)
}
