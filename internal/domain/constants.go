package domain

// JobStatus is the lifecycle state of a job
type JobStatus string

// Job status constants
const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusError      JobStatus = "error"
)

// IsTerminal reports whether the status can no longer change
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// ParseJobStatus converts a status filter. Empty input yields the empty status.
func ParseJobStatus(s string) (JobStatus, error) {
	switch JobStatus(s) {
	case "", JobStatusProcessing, JobStatusCompleted, JobStatusError:
		return JobStatus(s), nil
	}
	return "", &ValidationError{Field: "status", Reason: "unsupported status " + s}
}

// JobType selects which Fetcher operation a job runs
type JobType string

// Job type constants
const (
	JobTypeImages     JobType = "images"
	JobTypeJournal    JobType = "journal"
	JobTypeCollection JobType = "collection"
	JobTypeProfile    JobType = "profile"
	JobTypeAll        JobType = "all"
)

// DefaultJobType is used when a submission omits the job type
const DefaultJobType = JobTypeImages

// JobTypes lists every supported job type
var JobTypes = []JobType{
	JobTypeImages,
	JobTypeJournal,
	JobTypeCollection,
	JobTypeProfile,
	JobTypeAll,
}

// ParseJobType converts user input into a JobType. Empty input yields DefaultJobType.
func ParseJobType(s string) (JobType, error) {
	if s == "" {
		return DefaultJobType, nil
	}
	for _, t := range JobTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", &ValidationError{Field: "job_type", Reason: "unsupported job type " + s}
}

// EmptyResultMessage is the error detail recorded when a fetch produced no usable files
const EmptyResultMessage = "no content found or target is private/nonexistent"
