package relay

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Context keys handlers set for the request log line.
const (
	requestIDKey = "request_id"
	runIDKey     = "run_id"
	outcomeKey   = "outcome"
	errorCodeKey = "error_code"
)

// pollPaths are hit every few hundred milliseconds while a run is in
// flight; successful hits are logged at debug level.
var pollPaths = map[string]bool{
	"/api/events":  true,
	"/api/trigger": true,
	"/ping":        true,
}

// RequestLogger logs one line per relay request, tagged with the request id
// and, for trigger activations, the run id and outcome.
func RequestLogger(l *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header("X-Request-Id", reqID)
		c.Set(requestIDKey, reqID)

		c.Next()

		status := c.Writer.Status()
		fields := logrus.Fields{
			requestIDKey: reqID,
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
		}
		for _, key := range []string{runIDKey, outcomeKey, errorCodeKey} {
			if v, ok := c.Get(key); ok {
				fields[key] = v
			}
		}
		entry := l.WithFields(fields)
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			entry.Error("relay request")
		case status >= 400:
			entry.Warn("relay request")
		case pollPaths[c.FullPath()]:
			entry.Debug("relay request")
		default:
			entry.Info("relay request")
		}
	}
}
