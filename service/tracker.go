package service

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AnTengye/topicdetect/model"
)

// RunTracker is an in-memory history of recent pipeline runs. It is a
// diagnostic aid only; nothing in the pipeline reads it back.
type RunTracker struct {
	runs    map[string]*model.Run
	mu      sync.RWMutex
	maxRuns int // 0 = unlimited
}

func NewRunTracker(maxRuns int) *RunTracker {
	if maxRuns < 0 {
		maxRuns = 0
	}
	return &RunTracker{
		runs:    make(map[string]*model.Run),
		maxRuns: maxRuns,
	}
}

// Start records a new run for url and returns its ID.
func (t *RunTracker) Start(url string) string {
	now := time.Now()
	run := &model.Run{
		ID:        uuid.New().String(),
		URL:       url,
		Status:    model.RunExtracting,
		CreatedAt: now,
		UpdatedAt: now,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs[run.ID] = run
	t.cleanupIfNeeded()
	return run.ID
}

// Update applies fn to the run under the tracker's lock. Unknown IDs are ignored.
func (t *RunTracker) Update(id string, fn func(*model.Run)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.runs[id]; ok {
		fn(r)
		r.UpdatedAt = time.Now()
	}
}

func (t *RunTracker) SetStatus(id, status, errMsg string) {
	t.Update(id, func(r *model.Run) {
		r.Status = status
		r.ErrorMsg = errMsg
	})
}

// Get returns a copy of the run, or nil.
func (t *RunTracker) Get(id string) *model.Run {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.runs[id]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

// List returns copies of all runs, newest first.
func (t *RunTracker) List() []model.Run {
	t.mu.RLock()
	result := make([]model.Run, 0, len(t.runs))
	for _, r := range t.runs {
		result = append(result, *r)
	}
	t.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (t *RunTracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.runs)
}

// cleanupIfNeeded drops the oldest runs beyond maxRuns.
// Must be called with lock held
func (t *RunTracker) cleanupIfNeeded() {
	if t.maxRuns <= 0 || len(t.runs) <= t.maxRuns {
		return
	}

	runs := make([]*model.Run, 0, len(t.runs))
	for _, r := range t.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})

	removeCount := len(runs) - t.maxRuns
	for i := 0; i < removeCount; i++ {
		slog.Debug("evicting old run", "run_id", runs[i].ID, "created_at", runs[i].CreatedAt)
		delete(t.runs, runs[i].ID)
	}
}
