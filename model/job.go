package model

import "time"

// JobStatus is the status reported by the analysis job service. This service
// observes it and never sets it.
type JobStatus string

const (
	JobSubmitted  JobStatus = "SUBMITTED"
	JobInProgress JobStatus = "IN_PROGRESS"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
)

// Terminal reports whether no further transition can occur.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// SourceDocument is a fetched page before text extraction.
type SourceDocument struct {
	URL         string
	ContentType string
	RawBytes    []byte
	FetchedAt   time.Time
}

// NormalizedText is the visible body text of a page, one trimmed text node
// per line, in document order.
type NormalizedText struct {
	Text      string
	SourceURL string
}

// StagedObject is normalized text persisted in the bucket.
type StagedObject struct {
	Key       string `json:"key"`
	Bucket    string `json:"bucket"`
	SizeBytes int64  `json:"size_bytes"`
	Padded    bool   `json:"padded"`
}

// AnalysisJob is a submitted topic detection job.
type AnalysisJob struct {
	JobID     string    `json:"job_id"`
	InputURI  string    `json:"input_uri"`
	OutputURI string    `json:"output_uri"`
	Status    JobStatus `json:"status"`
}

// JobDescription is one status observation returned by the job service.
type JobDescription struct {
	JobID     string
	Status    JobStatus
	OutputURI string
	Message   string
}

// JobResult is derived once a job reaches a terminal state.
type JobResult struct {
	Status         JobStatus
	OutputLocation string
}

// Resolution is the reduced result returned to the caller. OutputURI is only
// ever set for a completed job.
type Resolution struct {
	Status    JobStatus `json:"status"`
	OutputURI string    `json:"output_uri,omitempty"`
}
