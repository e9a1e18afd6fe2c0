package middleware

import (
	"strconv"
	"time"

	"gift-backend/internal/metrics"

	"github.com/gin-gonic/gin"
)

// RequestMetrics records request counts and latency by route template.
// Unmatched paths share one label so tokens never become label values.
func RequestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
