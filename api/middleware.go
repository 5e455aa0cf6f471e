package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kilianp07/batsim/core/control"
	"github.com/kilianp07/batsim/core/logger"
	"github.com/kilianp07/batsim/core/monitoring"
)

// CodeUnauthorized is returned when the bearer token is missing or wrong.
const CodeUnauthorized = "UNAUTHORIZED"

// errorHandler turns panics into the JSON error envelope.
func errorHandler(log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		err := fmt.Errorf("panic: %v", recovered)
		log.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		monitoring.CaptureException(err, map[string]string{"module": "api", "path": c.FullPath()})
		writeError(c, http.StatusInternalServerError, control.CodeInternal, "an unexpected error occurred")
	})
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debugw("request", map[string]any{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		})
	}
}

func bearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		if !tokenMatches(c.GetHeader("Authorization"), token) {
			writeError(c, http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
			return
		}
		c.Next()
	}
}

// tokenMatches compares a bearer header against token in constant time.
func tokenMatches(header, token string) bool {
	got, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
}
