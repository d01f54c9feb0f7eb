package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AnTengye/topicdetect/config"
	"github.com/AnTengye/topicdetect/model"
)

// HTTPJobService talks to a topic detection service over a JSON HTTP API.
type HTTPJobService struct {
	config     *config.JobsConfig
	httpClient *http.Client
}

// StartJobRequest is the body of a job creation request
type StartJobRequest struct {
	InputURI          string `json:"input_uri"`
	OutputURI         string `json:"output_uri"`
	DataAccessRoleARN string `json:"data_access_role_arn,omitempty"`
	NumberOfTopics    int    `json:"number_of_topics,omitempty"`
}

// StartJobResponse is the response to job creation
type StartJobResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	Data    struct {
		JobID string `json:"job_id"`
	} `json:"data"`
}

// JobStatusResponse is the response to a job status query
type JobStatusResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	Data    struct {
		JobID     string `json:"job_id"`
		Status    string `json:"status"` // SUBMITTED, IN_PROGRESS, COMPLETED, FAILED
		OutputURI string `json:"output_uri,omitempty"`
		Message   string `json:"message,omitempty"`
	} `json:"data"`
}

func NewHTTPJobService(cfg *config.JobsConfig) *HTTPJobService {
	return &HTTPJobService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// StartJob creates a new topic detection job
func (s *HTTPJobService) StartJob(ctx context.Context, req JobRequest) (string, error) {
	jsonData, err := json.Marshal(StartJobRequest{
		InputURI:          req.InputURI,
		OutputURI:         req.OutputURI,
		DataAccessRoleARN: req.DataAccessRoleARN,
		NumberOfTopics:    req.NumberOfTopics,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint("/topics/jobs"), bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var result StartJobResponse
	if err := s.do(httpReq, &result); err != nil {
		return "", err
	}
	if result.Code != 0 {
		return "", fmt.Errorf("job API error: %s", result.Message)
	}

	return result.Data.JobID, nil
}

// DescribeJob queries the status of a job
func (s *HTTPJobService) DescribeJob(ctx context.Context, jobID string) (*model.JobDescription, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint("/topics/jobs/"+url.PathEscape(jobID)), nil)
	if err != nil {
		return nil, Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	var result JobStatusResponse
	if err := s.do(httpReq, &result); err != nil {
		return nil, err
	}
	if result.Code != 0 {
		return nil, Permanent(fmt.Errorf("job API error: %s", result.Message))
	}

	status := model.JobStatus(strings.ToUpper(result.Data.Status))
	switch status {
	case model.JobSubmitted, model.JobInProgress, model.JobCompleted, model.JobFailed:
	default:
		return nil, Permanent(fmt.Errorf("job API returned unknown status %q", result.Data.Status))
	}

	return &model.JobDescription{
		JobID:     jobID,
		Status:    status,
		OutputURI: result.Data.OutputURI,
		Message:   result.Data.Message,
	}, nil
}

func (s *HTTPJobService) endpoint(path string) string {
	return strings.TrimRight(s.config.APIURL, "/") + path
}

// do sends req and decodes a JSON body into out. 404 maps to ErrJobNotFound,
// other 4xx are permanent, and 5xx or 429 stay retryable.
func (s *HTTPJobService) do(req *http.Request, out any) error {
	if s.config.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, ErrJobNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("job API returned %d", resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return Permanent(fmt.Errorf("job API returned %d: %s", resp.StatusCode, string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return Permanent(fmt.Errorf("failed to parse response: %w, body: %s", err, string(body)))
	}
	return nil
}
