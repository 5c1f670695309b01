package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// GinMiddleware instruments gin requests. Paths are the matched route templates so the
// label set stays bounded; unmatched requests are recorded as "unmatched".
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		duration := float64(time.Since(start).Microseconds()) / 1000.0
		RecordAPIRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), duration)
	}
}
