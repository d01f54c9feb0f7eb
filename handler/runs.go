package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/topicdetect/service"
)

type RunsHandler struct {
	tracker *service.RunTracker
}

func NewRunsHandler(tracker *service.RunTracker) *RunsHandler {
	return &RunsHandler{tracker: tracker}
}

// List returns recent runs, newest first
func (h *RunsHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"runs": h.tracker.List()})
}

// Get returns a single run
func (h *RunsHandler) Get(c *gin.Context) {
	run := h.tracker.Get(c.Param("id"))
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error_message": "Run not found"})
		return
	}
	c.JSON(http.StatusOK, run)
}
