package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/topicdetect/model"
	"github.com/AnTengye/topicdetect/pkg/logger"
	"github.com/AnTengye/topicdetect/service"
)

// statusClientClosedRequest is written when the caller goes away mid-run.
const statusClientClosedRequest = 499

// PipelineRunner runs the topic detection pipeline for one URL.
type PipelineRunner interface {
	Run(ctx context.Context, rawURL string) (*model.Resolution, error)
}

type TopicsHandler struct {
	pipeline PipelineRunner
}

func NewTopicsHandler(pipeline PipelineRunner) *TopicsHandler {
	return &TopicsHandler{pipeline: pipeline}
}

// Detect reads the "url" form field, runs the pipeline and blocks until the
// analysis job is terminal.
func (h *TopicsHandler) Detect(c *gin.Context) {
	rawURL, ok := c.GetPostForm("url")
	if !ok || strings.TrimSpace(rawURL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error_message": "url not specified"})
		return
	}

	res, err := h.pipeline.Run(c.Request.Context(), rawURL)
	if err != nil {
		if c.Request.Context().Err() != nil {
			logger.Warn(c.Request.Context(), "client went away before the job finished", "url", rawURL)
			c.AbortWithStatus(statusClientClosedRequest)
			return
		}
		status, msg := errorResponse(err)
		c.JSON(status, gin.H{"error_message": msg})
		return
	}

	if res.Status == model.JobFailed {
		c.JSON(http.StatusOK, gin.H{"status": string(model.JobFailed)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"output_uri": res.OutputURI})
}

// errorResponse maps a pipeline error class to a status code and message.
func errorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInputValidation):
		return http.StatusBadRequest, "invalid url"
	case errors.Is(err, service.ErrFetch):
		return http.StatusBadGateway, "Error fetching URL"
	case errors.Is(err, service.ErrMalformedDocument):
		return http.StatusUnprocessableEntity, "No content found at URL"
	case errors.Is(err, service.ErrStaging), errors.Is(err, service.ErrStorageUnavailable):
		return http.StatusInternalServerError, "Error staging content"
	case errors.Is(err, service.ErrSubmission):
		return http.StatusBadGateway, "Error submitting analysis job"
	case errors.Is(err, service.ErrPollTimeout):
		return http.StatusGatewayTimeout, "Timed out waiting for analysis job"
	case errors.Is(err, service.ErrPollTransient), errors.Is(err, service.ErrJobStatus):
		return http.StatusBadGateway, "Error checking analysis job status"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
