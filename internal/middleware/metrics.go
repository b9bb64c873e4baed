package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"natours/internal/metrics"
)

// Metrics records request latency metrics for each HTTP request.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		metrics.APILatency.WithLabelValues(c.Request.Method, routePath(c), status).Observe(duration)
	}
}
