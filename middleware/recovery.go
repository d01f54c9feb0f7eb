package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/topicdetect/pkg/logger"
)

// Recovery turns a panic in a handler into a 500 so one bad request cannot
// take the process down.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					"error", err,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error_message": "Internal server error",
					"request_id":    GetRequestID(c),
				})
			}
		}()

		c.Next()
	}
}
