package dto

// SubmitJobRequest accepts either a JSON body or form fields
type SubmitJobRequest struct {
	AccountName string `json:"account_name" form:"account_name"`
	JobType     string `json:"job_type" form:"job_type"`
}

type SubmitJobResponse struct {
	JobID       string `json:"job_id"`
	Status      string `json:"status"`
	StatusURL   string `json:"status_url"`
	DownloadURL string `json:"download_url"`
	Error       string `json:"error,omitempty"`
}

type ListJobsRequest struct {
	JobType  string `form:"job_type"`
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID       string  `json:"job_id"`
	AccountName string  `json:"account_name"`
	JobType     string  `json:"job_type"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	FinishedAt  *string `json:"finished_at,omitempty"`
	FileCount   int     `json:"file_count,omitempty"`
	DownloadURL string  `json:"download_url,omitempty"`
	Error       string  `json:"error,omitempty"`
}
