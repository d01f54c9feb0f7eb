package model

import (
	"time"
)

// Run is the tracked history of one pipeline execution
type Run struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Status    string    `json:"status"`
	ObjectKey string    `json:"object_key,omitempty"`
	JobID     string    `json:"job_id,omitempty"`
	OutputURI string    `json:"output_uri,omitempty"`
	ErrorMsg  string    `json:"error_msg,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Run status constants
const (
	RunExtracting = "extracting"
	RunStaging    = "staging"
	RunPolling    = "polling"
	RunCompleted  = "completed"
	RunFailed     = "failed"
	RunError      = "error"
	RunAbandoned  = "abandoned"
)
