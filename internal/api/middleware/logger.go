package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"lmp-gridmap/internal/observability"
)

// Logger writes one structured line per request and records HTTP metrics.
func Logger(l zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		dur := time.Since(start)
		observability.ObserveHTTP(route, c.Request.Method, status, dur)

		ev := l.Info()
		if status >= 500 {
			ev = l.Error()
		} else if status >= 400 {
			ev = l.Warn()
		}
		ev.Str("route", route).
			Str("method", c.Request.Method).
			Str("query", c.Request.URL.RawQuery).
			Int("status", status).
			Dur("duration", dur).
			Str("remote", c.ClientIP()).
			Str("ua", c.Request.UserAgent()).
			Msg("http_request")
	}
}
