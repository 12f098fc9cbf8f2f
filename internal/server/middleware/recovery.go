package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/arbiterhq/arbiter/internal/log"
)

// Recovery converts handler panics into 500 responses instead of killing the
// process. The stack is logged with the request's trace fields.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error(c.Request.Context(), "handler panic",
					log.Any("panic", rec),
					log.String("path", c.Request.URL.Path),
					log.String("stack", string(debug.Stack())),
				)

				AbortWithError(c, http.StatusInternalServerError, fmt.Errorf("internal server error"))
			}
		}()

		c.Next()
	}
}
