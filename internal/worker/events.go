package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cuongbtq/fetch-archiver/internal/domain"
)

const publishTimeout = 5 * time.Second

// EventPublisher delivers serialized job events to an external broker
type EventPublisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// JobEvent is published once per job when it reaches a terminal status
type JobEvent struct {
	Event       string     `json:"event"`
	JobID       string     `json:"job_id"`
	AccountName string     `json:"account_name"`
	JobType     string     `json:"job_type"`
	Status      string     `json:"status"`
	FileCount   int        `json:"file_count,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// NewJobEvent builds the event for a terminal job
func NewJobEvent(job *domain.Job) JobEvent {
	event := "job.completed"
	if job.Status == domain.JobStatusError {
		event = "job.failed"
	}
	return JobEvent{
		Event:       event,
		JobID:       job.ID,
		AccountName: job.AccountName,
		JobType:     string(job.Type),
		Status:      string(job.Status),
		FileCount:   job.FileCount,
		Error:       job.ErrorDetail,
		CreatedAt:   job.CreatedAt,
		FinishedAt:  job.FinishedAt,
	}
}

type eventSink struct {
	publisher EventPublisher
	logger    *slog.Logger
}

func newEventSink(publisher EventPublisher, logger *slog.Logger) *eventSink {
	return &eventSink{publisher: publisher, logger: logger}
}

// publish is best effort; a broker outage never changes a job's outcome
func (s *eventSink) publish(ctx context.Context, job *domain.Job) {
	if s.publisher == nil {
		return
	}

	body, err := json.Marshal(NewJobEvent(job))
	if err != nil {
		s.logger.Error("Failed to marshal job event",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.PublishWithRetry(ctx, body, "application/json"); err != nil {
		s.logger.Warn("Failed to publish job event",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}
