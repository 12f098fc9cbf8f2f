package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultRequestTimeout = 30 * time.Second

// WithTimeout bounds the request context. Handlers observe the deadline
// through c.Request.Context().
func WithTimeout(timeout time.Duration) gin.HandlerFunc {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
