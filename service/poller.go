package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AnTengye/topicdetect/config"
	"github.com/AnTengye/topicdetect/model"
	"github.com/AnTengye/topicdetect/pkg/logger"
)

// Poller waits for an analysis job to reach a terminal state.
type Poller struct {
	jobs        JobService
	interval    time.Duration
	maxWait     time.Duration
	maxAttempts int
	retry       RetryPolicy
	metrics     *Metrics
}

func NewPoller(jobs JobService, cfg *config.JobsConfig, metrics *Metrics) *Poller {
	return &Poller{
		jobs:        jobs,
		interval:    cfg.PollInterval,
		maxWait:     cfg.PollMaxWait,
		maxAttempts: cfg.PollMaxAttempts,
		retry: RetryPolicy{
			MaxAttempts:     cfg.MaxTransientRetries + 1,
			InitialInterval: cfg.RetryInitialBackoff,
			MaxInterval:     cfg.PollInterval,
		},
		metrics: metrics,
	}
}

// Poll queries the job status once per interval until COMPLETED or FAILED.
// A terminal status on the first query returns without waiting. Cancelling
// ctx stops polling and returns ctx's error; the job itself keeps running.
func (p *Poller) Poll(ctx context.Context, job *model.AnalysisJob) (*model.JobResult, error) {
	pollCtx := ctx
	if p.maxWait > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, p.maxWait)
		defer cancel()
	}

	for attempt := 1; ; attempt++ {
		desc, err := p.describe(pollCtx, job.JobID)
		if err != nil {
			return nil, p.pollError(ctx, pollCtx, job.JobID, err)
		}

		logger.Debug(ctx, "job status observed",
			"job_id", job.JobID,
			"status", desc.Status,
			"attempt", attempt,
		)

		job.Status = desc.Status
		if desc.Status.Terminal() {
			if desc.Status == model.JobFailed {
				logger.Warn(ctx, "analysis job failed", "job_id", job.JobID, "message", desc.Message)
			}
			return &model.JobResult{Status: desc.Status, OutputLocation: desc.OutputURI}, nil
		}

		if p.maxAttempts > 0 && attempt >= p.maxAttempts {
			return nil, fmt.Errorf("%w: job %s still %s after %d queries", ErrPollTimeout, job.JobID, desc.Status, attempt)
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-pollCtx.Done():
			timer.Stop()
			return nil, p.pollError(ctx, pollCtx, job.JobID, pollCtx.Err())
		case <-timer.C:
		}
	}
}

// describe makes one status query, retrying transient failures with backoff.
func (p *Poller) describe(ctx context.Context, jobID string) (*model.JobDescription, error) {
	var desc *model.JobDescription
	err := p.retry.Do(ctx, ErrPollTransient, func() error {
		p.metrics.observePollQuery()
		d, err := p.jobs.DescribeJob(ctx, jobID)
		if err != nil {
			return err
		}
		desc = d
		return nil
	}, func(err error, wait time.Duration) {
		p.metrics.observePollTransient()
		logger.Warn(ctx, "job status query failed, retrying",
			"job_id", jobID,
			"error", err,
			"backoff", wait,
		)
	})
	return desc, err
}

func (p *Poller) pollError(parent, pollCtx context.Context, jobID string, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if pollCtx.Err() != nil {
		return fmt.Errorf("%w: job %s after %s", ErrPollTimeout, jobID, p.maxWait)
	}
	if errors.Is(err, ErrPollTransient) {
		return err
	}
	return wrap(ErrJobStatus, err)
}
