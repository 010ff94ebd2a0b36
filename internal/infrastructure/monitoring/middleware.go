package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware records request counts and latencies. Routes listed in
// untimed (long-lived streams) are counted but not timed.
func Middleware(metrics *Metrics, untimed ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(untimed))
	for _, p := range untimed {
		skip[p] = struct{}{}
	}
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Route template keeps label cardinality bounded
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		elapsed := time.Since(start)
		if _, ok := skip[path]; ok {
			elapsed = -1
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, status, elapsed)
	}
}

// Timer measures operation duration
type Timer struct {
	start     time.Time
	metrics   *Metrics
	component string
	operation string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, component, operation string) *Timer {
	return &Timer{
		start:     time.Now(),
		metrics:   metrics,
		component: component,
		operation: operation,
	}
}

// Stop stops the timer and records the duration
func (t *Timer) Stop(outcome string) time.Duration {
	duration := time.Since(t.start)
	if t.metrics != nil {
		t.metrics.OperationDuration.WithLabelValues(t.component, t.operation, outcome).Observe(duration.Seconds())
	}
	return duration
}
