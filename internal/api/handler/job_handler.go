package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cuongbtq/fetch-archiver/internal/api/dto"
	"github.com/cuongbtq/fetch-archiver/internal/domain"
	"github.com/cuongbtq/fetch-archiver/internal/registry"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// SubmitJob handles POST /api/v1/jobs
// Registers a fetch job and returns immediately with its id
func (h *JobHandler) SubmitJob(c *gin.Context) {
	var req dto.SubmitJobRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.service.Submit(c.Request.Context(), req.AccountName, req.JobType)
	if err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": vErr.Error(),
				"field": vErr.Field,
			})
			return
		}

		h.logger.Error("Failed to submit job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to submit job",
		})
		return
	}

	c.JSON(http.StatusAccepted, dto.SubmitJobResponse{
		JobID:       job.ID,
		Status:      string(job.Status),
		StatusURL:   statusURL(job.ID),
		DownloadURL: downloadURL(job.ID),
		Error:       job.ErrorDetail,
	})
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.service.Status(jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"status": "not_found"})
			return
		}
		h.logger.Error("Failed to get job", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, toJobDTO(&job))
}

// DownloadJob handles GET /api/v1/jobs/:job_id/download
// Streams the archive of a completed job; the first download starts its cleanup timer
func (h *JobHandler) DownloadJob(c *gin.Context) {
	jobID := c.Param("job_id")

	artifact, err := h.service.Download(jobID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"status": "not_found"})
		return
	case errors.Is(err, domain.ErrJobNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, domain.ErrArtifactGone):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
		return
	default:
		h.logger.Error("Failed to resolve artifact", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to resolve artifact",
		})
		return
	}

	h.logger.Info("Serving artifact",
		slog.String("job_id", jobID),
		slog.String("file_name", artifact.FileName),
	)

	c.Header("Content-Type", "application/zip")
	c.FileAttachment(artifact.Path, artifact.FileName)
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs newest first with optional filtering and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	filter := registry.JobFilter{Limit: req.PageSize + 1}

	if req.JobType != "" {
		jobType, err := domain.ParseJobType(req.JobType)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Type = jobType
	}

	status, err := domain.ParseJobStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	filter.Status = status

	filter.After, err = DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Warn("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	jobs := h.service.List(filter)

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i := range jobs {
		jobResponse[i] = toJobDTO(&jobs[i])
	}

	var nextCursor string
	if hasMore {
		last := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&registry.Cursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.ID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

func toJobDTO(job *domain.Job) dto.JobDTO {
	out := dto.JobDTO{
		JobID:       job.ID,
		AccountName: job.AccountName,
		JobType:     string(job.Type),
		Status:      string(job.Status),
		CreatedAt:   job.CreatedAt.Format(time.RFC3339),
		Error:       job.ErrorDetail,
	}
	if job.FinishedAt != nil {
		finished := job.FinishedAt.Format(time.RFC3339)
		out.FinishedAt = &finished
	}
	if job.Status == domain.JobStatusCompleted {
		out.FileCount = job.FileCount
		out.DownloadURL = downloadURL(job.ID)
	}
	return out
}

func statusURL(jobID string) string {
	return "/api/v1/jobs/" + url.PathEscape(jobID)
}

func downloadURL(jobID string) string {
	return statusURL(jobID) + "/download"
}
