package domain

import (
	"strings"
	"time"
)

// Job is one asynchronous fetch-and-package request
type Job struct {
	ID           string
	AccountName  string
	Type         JobType
	Status       JobStatus
	CreatedAt    time.Time
	FinishedAt   *time.Time
	ArtifactPath string
	FileCount    int
	ErrorDetail  string
	DeliveredAt  *time.Time
}

// NewJob creates a job in processing status
func NewJob(id, accountName string, jobType JobType, createdAt time.Time) *Job {
	return &Job{
		ID:          id,
		AccountName: accountName,
		Type:        jobType,
		Status:      JobStatusProcessing,
		CreatedAt:   createdAt,
	}
}

// Complete moves the job to completed with its packaged artifact
func (j *Job) Complete(artifactPath string, fileCount int, at time.Time) {
	j.Status = JobStatusCompleted
	j.ArtifactPath = artifactPath
	j.FileCount = fileCount
	j.ErrorDetail = ""
	j.FinishedAt = &at
}

// Fail moves the job to error with a human-readable cause
func (j *Job) Fail(detail string, at time.Time) {
	j.Status = JobStatusError
	j.ErrorDetail = detail
	j.ArtifactPath = ""
	j.FileCount = 0
	j.FinishedAt = &at
}

// Clone returns a deep copy safe to hand out of the registry
func (j *Job) Clone() Job {
	c := *j
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	if j.DeliveredAt != nil {
		t := *j.DeliveredAt
		c.DeliveredAt = &t
	}
	return c
}

// NormalizeAccountName trims the account name and rejects values that cannot name a single directory
func NormalizeAccountName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &ValidationError{Field: "account_name", Reason: "account name is required"}
	}
	if name == "." || name == ".." {
		return "", &ValidationError{Field: "account_name", Reason: "account name is not a valid name"}
	}
	// The name is passed to the scraper as a positional argument
	if strings.HasPrefix(name, "-") {
		return "", &ValidationError{Field: "account_name", Reason: "account name must not start with '-'"}
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return "", &ValidationError{Field: "account_name", Reason: "account name must not contain path separators"}
	}
	return name, nil
}
