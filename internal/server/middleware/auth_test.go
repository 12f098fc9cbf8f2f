package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/arbiterhq/arbiter/internal/contexts"
	"github.com/arbiterhq/arbiter/internal/server/biz"
)

func setupAuthService(t *testing.T) *biz.AuthService {
	t.Helper()

	hash, err := biz.HashPassword("admin-pass")
	require.NoError(t, err)

	auth, err := biz.NewAuthService(biz.AuthConfig{
		APIKeys: []biz.APIKey{{Name: "frontend", Key: "ak-frontend"}},
		Admin:   biz.AdminConfig{Username: "admin", PasswordHash: hash},
	})
	require.NoError(t, err)

	return auth
}

func TestWithAPIKeyAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	auth := setupAuthService(t)

	router := gin.New()
	router.Use(WithAPIKeyAuth(auth))
	router.GET("/", func(c *gin.Context) {
		name, ok := contexts.GetAPIKeyName(c.Request.Context())
		require.True(t, ok)
		require.Equal(t, "frontend", name)
		c.Status(http.StatusOK)
	})

	t.Run("valid key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer ak-frontend")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("valid key via x-api-key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-API-Key", "ak-frontend")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer ak-unknown")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestWithJWTAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	auth := setupAuthService(t)

	router := gin.New()
	router.Use(WithJWTAuth(auth))
	router.GET("/", func(c *gin.Context) {
		subject, ok := contexts.GetAPIKeyName(c.Request.Context())
		require.True(t, ok)
		require.Equal(t, "admin", subject)
		c.Status(http.StatusOK)
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := auth.SignIn(context.Background(), "admin", "admin-pass")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("token without bearer prefix", func(t *testing.T) {
		token, err := auth.SignIn(context.Background(), "admin", "admin-pass")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", token)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
