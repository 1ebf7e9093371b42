package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var httpDuration = promauto.NewSummaryVec(
	prometheus.SummaryOpts{
		Name: "condoadmin_http_duration_seconds",
		Help: "Duration of inbound HTTP requests.",
	},
	[]string{"service", "path", "method", "status"},
)

// HttpMiddleware records inbound request latency. service distinguishes the
// console from the dev API when both run in one process (tests).
func HttpMiddleware(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpDuration.WithLabelValues(service, path, c.Request.Method, status).Observe(duration)
	}
}
