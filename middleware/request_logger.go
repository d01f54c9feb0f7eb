package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/topicdetect/pkg/logger"
)

// quietPaths are polled by probes and scrapers and only logged at debug level.
var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// RequestLogger logs each request once it completes
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"status", status,
			"method", c.Request.Method,
			"path", path,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if query != "" {
			attrs = append(attrs, "query", query)
		}

		log := logger.WithContext(c.Request.Context())
		switch {
		case status >= 500:
			log.Error("request completed", attrs...)
		case status >= 400:
			log.Warn("request completed", attrs...)
		case quietPaths[path]:
			log.Debug("request completed", attrs...)
		default:
			log.Info("request completed", attrs...)
		}
	}
}
