package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/comprehend"
	"github.com/aws/aws-sdk-go-v2/service/comprehend/types"

	"github.com/AnTengye/topicdetect/config"
	"github.com/AnTengye/topicdetect/model"
)

// comprehendAPI is the subset of the Comprehend client the adapter uses.
type comprehendAPI interface {
	StartTopicsDetectionJob(ctx context.Context, in *comprehend.StartTopicsDetectionJobInput, optFns ...func(*comprehend.Options)) (*comprehend.StartTopicsDetectionJobOutput, error)
	DescribeTopicsDetectionJob(ctx context.Context, in *comprehend.DescribeTopicsDetectionJobInput, optFns ...func(*comprehend.Options)) (*comprehend.DescribeTopicsDetectionJobOutput, error)
}

// ComprehendJobService runs topic detection jobs on Amazon Comprehend.
type ComprehendJobService struct {
	client comprehendAPI
}

func NewComprehendJobService(ctx context.Context, cfg *config.JobsConfig) (*ComprehendJobService, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return &ComprehendJobService{client: comprehend.NewFromConfig(awsCfg)}, nil
}

func (s *ComprehendJobService) StartJob(ctx context.Context, req JobRequest) (string, error) {
	in := &comprehend.StartTopicsDetectionJobInput{
		InputDataConfig: &types.InputDataConfig{
			S3Uri:       aws.String(req.InputURI),
			InputFormat: types.InputFormatOneDocPerFile,
		},
		OutputDataConfig: &types.OutputDataConfig{
			S3Uri: aws.String(req.OutputURI),
		},
		DataAccessRoleArn: aws.String(req.DataAccessRoleARN),
	}
	if req.NumberOfTopics > 0 {
		in.NumberOfTopics = aws.Int32(int32(req.NumberOfTopics))
	}

	out, err := s.client.StartTopicsDetectionJob(ctx, in)
	if err != nil {
		return "", fmt.Errorf("start topics detection job: %w", err)
	}
	return aws.ToString(out.JobId), nil
}

func (s *ComprehendJobService) DescribeJob(ctx context.Context, jobID string) (*model.JobDescription, error) {
	out, err := s.client.DescribeTopicsDetectionJob(ctx, &comprehend.DescribeTopicsDetectionJobInput{
		JobId: aws.String(jobID),
	})
	if err != nil {
		return nil, classifyComprehendError(jobID, err)
	}

	props := out.TopicsDetectionJobProperties
	if props == nil {
		return nil, fmt.Errorf("describe %s: empty job properties", jobID)
	}

	desc := &model.JobDescription{
		JobID:   jobID,
		Status:  comprehendStatus(props.JobStatus),
		Message: aws.ToString(props.Message),
	}
	if props.OutputDataConfig != nil {
		desc.OutputURI = aws.ToString(props.OutputDataConfig.S3Uri)
	}
	return desc, nil
}

// comprehendStatus folds Comprehend's stop states into the four job states.
func comprehendStatus(s types.JobStatus) model.JobStatus {
	switch s {
	case types.JobStatusStopped:
		return model.JobFailed
	case types.JobStatusStopRequested:
		return model.JobInProgress
	default:
		return model.JobStatus(s)
	}
}

func classifyComprehendError(jobID string, err error) error {
	var notFound *types.JobNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("describe %s: %w", jobID, ErrJobNotFound)
	}
	var invalid *types.InvalidRequestException
	if errors.As(err, &invalid) {
		return Permanent(fmt.Errorf("describe %s: %w", jobID, err))
	}
	return fmt.Errorf("describe %s: %w", jobID, err)
}
