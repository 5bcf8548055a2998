package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/simp-lee/ginx"

	"github.com/simp-lee/board/internal/domain"
)

// Logger returns a gin middleware that writes one access log line per request.
// Besides method, path, route, status, latency and client IP it records the
// post a route addressed, the kind of the error a handler reported through
// c.Error, and whether the request deadline answered in the handler's place.
//
// 5xx lines log at Error, 4xx at Warn and everything else at Info. The
// request context is passed along so the logger's ContextHandler attaches
// request_id.
func Logger(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		attrs := append(requestAttrs(c),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		)
		if err := c.Errors.Last(); err != nil {
			attrs = append(attrs, slog.String("error_kind", domain.KindOf(err.Err)))
		}
		if ginx.IsTimeout(c) {
			attrs = append(attrs, slog.Bool("timed_out", true))
		}

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		logger.LogAttrs(c.Request.Context(), level, "request", attrs...)
	}
}

// requestAttrs identifies the request and, on /posts/:id routes, the post.
func requestAttrs(c *gin.Context) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("route", c.FullPath()),
	}
	if id := c.Param("id"); id != "" {
		attrs = append(attrs, slog.String("post_id", id))
	}
	return attrs
}
