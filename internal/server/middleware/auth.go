package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arbiterhq/arbiter/internal/contexts"
	"github.com/arbiterhq/arbiter/internal/server/biz"
)

// WithAPIKeyAuth authenticates decision-endpoint callers by API key. The key
// name is kept on the request context for access logs and traces.
func WithAPIKeyAuth(auth *biz.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawKey, err := ExtractAPIKeyFromRequest(c.Request, nil)
		if err != nil {
			AbortWithError(c, http.StatusUnauthorized, err)
			return
		}

		keyName, err := auth.AuthenticateAPIKey(c.Request.Context(), rawKey)
		if err != nil {
			if errors.Is(err, biz.ErrInvalidAPIKey) {
				AbortWithError(c, http.StatusUnauthorized, biz.ErrInvalidAPIKey)
			} else {
				AbortWithError(c, http.StatusInternalServerError, errors.New("failed to validate API key"))
			}

			return
		}

		ctx := contexts.WithAPIKeyName(c.Request.Context(), keyName)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// WithJWTAuth authenticates admin callers by bearer JWT.
func WithJWTAuth(auth *biz.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := ExtractAPIKeyFromRequest(c.Request, &APIKeyConfig{
			Headers:       []string{"Authorization"},
			RequireBearer: true,
		})
		if err != nil {
			AbortWithError(c, http.StatusUnauthorized, err)
			return
		}

		subject, err := auth.AuthenticateJWTToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, biz.ErrInvalidJWT) {
				AbortWithError(c, http.StatusUnauthorized, biz.ErrInvalidJWT)
			} else {
				AbortWithError(c, http.StatusInternalServerError, errors.New("failed to validate token"))
			}

			return
		}

		ctx := contexts.WithAPIKeyName(c.Request.Context(), subject)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
