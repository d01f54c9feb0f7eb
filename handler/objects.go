package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/topicdetect/pkg/logger"
	"github.com/AnTengye/topicdetect/service"
)

// ObjectReader reads back staged objects.
type ObjectReader interface {
	ReadBack(ctx context.Context, key string) (string, error)
}

type ObjectsHandler struct {
	reader ObjectReader
}

func NewObjectsHandler(reader ObjectReader) *ObjectsHandler {
	return &ObjectsHandler{reader: reader}
}

// Get returns the normalized text of a staged object, padding removed.
func (h *ObjectsHandler) Get(c *gin.Context) {
	key := c.Param("key")

	text, err := h.reader.ReadBack(c.Request.Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInputValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error_message": "invalid object key"})
		case errors.Is(err, service.ErrObjectNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error_message": "Object not found"})
		case errors.Is(err, service.ErrStorageUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error_message": "Storage unavailable"})
		default:
			logger.Error(c.Request.Context(), "failed to read back object", "key", key, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error_message": "Error reading object"})
		}
		return
	}

	c.String(http.StatusOK, text)
}
