package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/topicdetect/model"
	"github.com/AnTengye/topicdetect/service"
)

func TestRunsHandlerList(t *testing.T) {
	tracker := service.NewRunTracker(10)
	tracker.Start("https://a.example.com")
	tracker.Start("https://b.example.com")

	h := NewRunsHandler(tracker)
	router := gin.New()
	router.GET("/api/runs", h.List)

	req := httptest.NewRequest("GET", "/api/runs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	var response map[string][]model.Run
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(response["runs"]) != 2 {
		t.Errorf("Expected 2 runs, got %d", len(response["runs"]))
	}
}

func TestRunsHandlerGet(t *testing.T) {
	tracker := service.NewRunTracker(10)
	id := tracker.Start("https://example.com")
	tracker.SetStatus(id, model.RunCompleted, "")

	h := NewRunsHandler(tracker)
	router := gin.New()
	router.GET("/api/runs/:id", h.Get)

	req := httptest.NewRequest("GET", "/api/runs/"+id, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var run model.Run
	json.Unmarshal(w.Body.Bytes(), &run)
	if run.Status != model.RunCompleted {
		t.Errorf("Expected status completed, got %s", run.Status)
	}

	req = httptest.NewRequest("GET", "/api/runs/non-existent", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

type stubReader struct {
	text string
	err  error
}

func (s *stubReader) ReadBack(ctx context.Context, key string) (string, error) {
	return s.text, s.err
}

func TestObjectsHandlerGet(t *testing.T) {
	tests := []struct {
		name   string
		reader *stubReader
		status int
	}{
		{"ok", &stubReader{text: "Hello\nWorld"}, http.StatusOK},
		{"invalid key", &stubReader{err: fmt.Errorf("%w: bad key", service.ErrInputValidation)}, http.StatusBadRequest},
		{"not found", &stubReader{err: fmt.Errorf("k: %w", service.ErrObjectNotFound)}, http.StatusNotFound},
		{"unavailable", &stubReader{err: fmt.Errorf("%w: timeout", service.ErrStorageUnavailable)}, http.StatusServiceUnavailable},
		{"other", &stubReader{err: fmt.Errorf("disk full")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/api/objects/:key", NewObjectsHandler(tt.reader).Get)

			req := httptest.NewRequest("GET", "/api/objects/abc-httpsexamplecom.txt", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
			if tt.status == http.StatusOK && w.Body.String() != "Hello\nWorld" {
				t.Errorf("Expected object text, got %q", w.Body.String())
			}
		})
	}
}
