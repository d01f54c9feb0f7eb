package service

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/AnTengye/topicdetect/model"
)

type fakeFetcher struct {
	mu          sync.Mutex
	status      int
	contentType string
	body        string
	err         error
	calls       int
}

func (f *fakeFetcher) Get(ctx context.Context, rawURL string) (*FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &FetchResponse{StatusCode: f.status, ContentType: f.contentType, Body: []byte(f.body)}, nil
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeObjectStore keeps uploaded objects in memory.
type fakeObjectStore struct {
	mu        sync.Mutex
	bucket    string
	objects   map[string][]byte
	uploadErr error
}

func newFakeObjectStore(bucket string) *fakeObjectStore {
	return &fakeObjectStore{bucket: bucket, objects: make(map[string][]byte)}
}

func (s *fakeObjectStore) Bucket() string { return s.bucket }

func (s *fakeObjectStore) Upload(ctx context.Context, key, localPath string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeObjectStore) Download(ctx context.Context, key, localPath string) error {
	s.mu.Lock()
	data, ok := s.objects[key]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	return os.WriteFile(localPath, data, 0o600)
}

func (s *fakeObjectStore) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	return data, ok
}

func (s *fakeObjectStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// describeStep is one scripted DescribeJob outcome.
type describeStep struct {
	status    model.JobStatus
	outputURI string
	err       error
}

// fakeJobService replays scripted describe outcomes; the last one repeats.
type fakeJobService struct {
	mu        sync.Mutex
	jobID     string
	startErr  error
	started   []JobRequest
	starts    int
	steps     []describeStep
	describes int
}

func (f *fakeJobService) StartJob(ctx context.Context, req JobRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started = append(f.started, req)
	return f.jobID, nil
}

func (f *fakeJobService) DescribeJob(ctx context.Context, jobID string) (*model.JobDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.describes
	if idx >= len(f.steps) {
		idx = len(f.steps) - 1
	}
	f.describes++
	step := f.steps[idx]
	if step.err != nil {
		return nil, step.err
	}
	return &model.JobDescription{JobID: jobID, Status: step.status, OutputURI: step.outputURI}, nil
}

func (f *fakeJobService) Describes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.describes
}

func (f *fakeJobService) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func (f *fakeJobService) Started() []JobRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]JobRequest(nil), f.started...)
}

// inProgressThen returns n IN_PROGRESS steps followed by last.
func inProgressThen(n int, last describeStep) []describeStep {
	steps := make([]describeStep, 0, n+1)
	for i := 0; i < n; i++ {
		steps = append(steps, describeStep{status: model.JobInProgress})
	}
	return append(steps, last)
}
