package service

import (
	"context"
	"errors"

	"github.com/AnTengye/topicdetect/config"
	"github.com/AnTengye/topicdetect/model"
	"github.com/AnTengye/topicdetect/pkg/logger"
)

// JobRequest is everything the job service needs to start a topic detection job.
type JobRequest struct {
	InputURI          string
	OutputURI         string
	DataAccessRoleARN string
	NumberOfTopics    int
}

// JobService starts asynchronous analysis jobs and reports their status.
type JobService interface {
	StartJob(ctx context.Context, req JobRequest) (string, error)
	DescribeJob(ctx context.Context, jobID string) (*model.JobDescription, error)
}

// Submitter starts jobs with the process-wide access role.
type Submitter struct {
	jobs           JobService
	roleARN        string
	numberOfTopics int
}

func NewSubmitter(jobs JobService, cfg *config.JobsConfig) *Submitter {
	return &Submitter{
		jobs:           jobs,
		roleARN:        cfg.DataAccessRoleARN,
		numberOfTopics: cfg.NumberOfTopics,
	}
}

// Submit returns as soon as the job service accepts the job. It never retries.
func (s *Submitter) Submit(ctx context.Context, inputURI, outputPrefixURI string) (*model.AnalysisJob, error) {
	jobID, err := s.jobs.StartJob(ctx, JobRequest{
		InputURI:          inputURI,
		OutputURI:         outputPrefixURI,
		DataAccessRoleARN: s.roleARN,
		NumberOfTopics:    s.numberOfTopics,
	})
	if err != nil {
		return nil, wrap(ErrSubmission, err)
	}
	jobID = NormalizeServiceString(jobID)
	if jobID == "" {
		return nil, wrap(ErrSubmission, errors.New("job service returned an empty job id"))
	}

	logger.Info(ctx, "analysis job submitted",
		"job_id", jobID,
		"input_uri", inputURI,
		"output_uri", outputPrefixURI,
	)

	return &model.AnalysisJob{
		JobID:     jobID,
		InputURI:  inputURI,
		OutputURI: outputPrefixURI,
		Status:    model.JobSubmitted,
	}, nil
}
