package service

import (
	"context"
	"strings"
	"time"

	"github.com/AnTengye/topicdetect/model"
	"github.com/AnTengye/topicdetect/pkg/logger"
)

// Pipeline runs one URL through extraction, staging, job submission and
// polling, and reduces the terminal job to a Resolution.
type Pipeline struct {
	extractor *Extractor
	stager    *Stager
	submitter *Submitter
	poller    *Poller
	tracker   *RunTracker
	metrics   *Metrics
}

func NewPipeline(extractor *Extractor, stager *Stager, submitter *Submitter, poller *Poller, tracker *RunTracker, metrics *Metrics) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		stager:    stager,
		submitter: submitter,
		poller:    poller,
		tracker:   tracker,
		metrics:   metrics,
	}
}

// Run processes rawURL end to end. The stages run strictly in order and a
// failure in one means the later ones never start. A FAILED job is a normal
// Resolution, not an error.
func (p *Pipeline) Run(ctx context.Context, rawURL string) (*model.Resolution, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := ValidateURL(rawURL); err != nil {
		p.metrics.observeRun("invalid")
		return nil, err
	}

	runID := p.tracker.Start(rawURL)
	ctx = logger.WithRunID(ctx, runID)
	logger.Info(ctx, "pipeline started", "url", rawURL)

	res, err := p.run(ctx, runID, rawURL)
	if err != nil {
		p.finishWithError(ctx, runID, err)
		return nil, err
	}

	status := model.RunCompleted
	if res.Status == model.JobFailed {
		status = model.RunFailed
	}
	p.tracker.Update(runID, func(r *model.Run) {
		r.Status = status
		r.OutputURI = res.OutputURI
	})
	p.metrics.observeRun(status)
	logger.Info(ctx, "pipeline finished", "status", res.Status, "output_uri", res.OutputURI)

	return res, nil
}

func (p *Pipeline) run(ctx context.Context, runID, rawURL string) (*model.Resolution, error) {
	start := time.Now()
	text, err := p.extractor.Extract(ctx, rawURL)
	p.metrics.observeStage("extract", start)
	if err != nil {
		return nil, err
	}

	p.tracker.SetStatus(runID, model.RunStaging, "")
	start = time.Now()
	obj, err := p.stager.Stage(ctx, text)
	p.metrics.observeStage("stage", start)
	if err != nil {
		return nil, err
	}
	p.metrics.observeStaged(obj.SizeBytes, obj.Padded)
	p.tracker.Update(runID, func(r *model.Run) { r.ObjectKey = obj.Key })

	start = time.Now()
	job, err := p.submitter.Submit(ctx, StagedInputURI(obj), OutputPrefixURI(obj.Bucket))
	p.metrics.observeStage("submit", start)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithJobID(ctx, job.JobID)
	p.tracker.Update(runID, func(r *model.Run) {
		r.Status = model.RunPolling
		r.JobID = job.JobID
	})

	start = time.Now()
	result, err := p.poller.Poll(ctx, job)
	p.metrics.observeStage("poll", start)
	if err != nil {
		return nil, err
	}

	res := Resolve(job, result)
	return &res, nil
}

func (p *Pipeline) finishWithError(ctx context.Context, runID string, err error) {
	if ctx.Err() != nil {
		// The job, if any, keeps running on the service side.
		p.tracker.SetStatus(runID, model.RunAbandoned, err.Error())
		p.metrics.observeRun(model.RunAbandoned)
		logger.Warn(ctx, "pipeline abandoned", "error", err)
		return
	}
	p.tracker.SetStatus(runID, model.RunError, err.Error())
	p.metrics.observeRun(model.RunError)
	logger.Error(ctx, "pipeline failed", "error", err)
}
