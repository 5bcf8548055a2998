package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/board/internal/pkg"
)

// Recovery turns a handler panic into a 500. The panic value, the stack and
// the post the route addressed are logged. Browsers get errors/500.html and
// everything else gets the JSON envelope:
//
//	{"code": 500, "kind": "INTERNAL", "message": "internal server error", "data": null}
//
// Panics raised under the request deadline are re-raised on the serving
// goroutine, so they land here as well.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			attrs := append(requestAttrs(c),
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())),
			)
			logger.LogAttrs(c.Request.Context(), slog.LevelError, "panic recovered", attrs...)

			if acceptsHTML(c) {
				c.Abort()
				renderHTMLError(c)
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				pkg.MiddlewareError(http.StatusInternalServerError, "internal server error"))
		}()
		c.Next()
	}
}

// renderHTMLError renders errors/500.html, or plain text when no HTML
// renderer is configured.
func renderHTMLError(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.Data(http.StatusInternalServerError, "text/plain; charset=utf-8", []byte("500 Internal Server Error"))
		}
	}()
	c.HTML(http.StatusInternalServerError, "errors/500.html", gin.H{})
}

func acceptsHTML(c *gin.Context) bool {
	return strings.Contains(strings.ToLower(c.GetHeader("Accept")), "text/html")
}
