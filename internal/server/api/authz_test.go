package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/arbiterhq/arbiter/internal/objects"
	"github.com/arbiterhq/arbiter/internal/pdp"
	"github.com/arbiterhq/arbiter/internal/pdp/dispatch"
	"github.com/arbiterhq/arbiter/internal/server/biz"
	"github.com/arbiterhq/arbiter/internal/store"
)

const authzTestPolicy = `
resources:
  - type: document
    roles:
      member: [read]
      admin: [read, create, delete]
`

func setupAuthzRouter(t *testing.T) (*gin.Engine, *AuthzHandlers) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	policy, err := pdp.ParsePolicy([]byte(authzTestPolicy))
	require.NoError(t, err)

	attrStore := store.NewMemoryStore(store.Snapshot{
		Tenants: map[string]store.TenantSnapshot{
			"acme": {
				Users: map[string]objects.Attributes{
					"john@doe.com": {},
					"jane@doe.com": {},
				},
			},
		},
	})

	evaluator, err := pdp.NewEvaluator(policy, attrStore, pdp.NewRuleRegistry())
	require.NoError(t, err)

	dispatcher, err := dispatch.New(evaluator, dispatch.Config{
		Shards:        4,
		DefaultTenant: "acme",
	})
	require.NoError(t, err)

	check, err := biz.NewCheckService(dispatcher, biz.NewTraceService(biz.TraceConfig{}))
	require.NoError(t, err)

	handlers := NewAuthzHandlers(check)

	router := gin.New()
	router.POST("/v1/authz/check", handlers.CheckAuthorization)
	router.POST("/v1/authz/bulk", handlers.BulkCheckAuthorization)
	router.POST("/v1/authz/debug", handlers.DebugAuthorization)

	return router, handlers
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func TestCheckAuthorization(t *testing.T) {
	router, _ := setupAuthzRouter(t)

	t.Run("member can read", func(t *testing.T) {
		w := postJSON(t, router, "/v1/authz/check", objects.CheckRequest{
			Principal: objects.Principal{Key: "john@doe.com"},
			Action:    "read",
			Resource:  objects.Resource{Type: "document"},
		})
		require.Equal(t, http.StatusOK, w.Code)

		var result objects.CheckResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		require.True(t, result.Allowed)
		require.Equal(t, "acme", result.Tenant)
	})

	t.Run("member cannot create", func(t *testing.T) {
		w := postJSON(t, router, "/v1/authz/check", objects.CheckRequest{
			Principal: objects.Principal{Key: "jane@doe.com"},
			Action:    "create",
			Resource:  objects.Resource{Type: "document"},
		})
		require.Equal(t, http.StatusOK, w.Code)

		var result objects.CheckResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		require.False(t, result.Allowed)
	})

	t.Run("missing action is rejected", func(t *testing.T) {
		w := postJSON(t, router, "/v1/authz/check", objects.CheckRequest{
			Principal: objects.Principal{Key: "john@doe.com"},
			Resource:  objects.Resource{Type: "document"},
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/authz/check", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBulkCheckAuthorization(t *testing.T) {
	router, handlers := setupAuthzRouter(t)

	t.Run("results align with requests", func(t *testing.T) {
		w := postJSON(t, router, "/v1/authz/bulk", objects.BulkCheckRequest{
			Checks: []objects.CheckRequest{
				{
					Principal: objects.Principal{Key: "john@doe.com"},
					Action:    "read",
					Resource:  objects.Resource{Type: "document"},
				},
				{
					Principal: objects.Principal{Key: "jane@doe.com"},
					Action:    "create",
					Resource:  objects.Resource{Type: "document"},
				},
			},
		})
		require.Equal(t, http.StatusOK, w.Code)

		var response objects.BulkCheckResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Len(t, response.Results, 2)
		require.True(t, response.Results[0].Allowed)
		require.False(t, response.Results[1].Allowed)
	})

	t.Run("batch size is bounded", func(t *testing.T) {
		handlers.MaxBulkChecks = 2

		checks := make([]objects.CheckRequest, 3)
		for i := range checks {
			checks[i] = objects.CheckRequest{
				Principal: objects.Principal{Key: "john@doe.com"},
				Action:    "read",
				Resource:  objects.Resource{Type: "document"},
			}
		}

		w := postJSON(t, router, "/v1/authz/bulk", objects.BulkCheckRequest{Checks: checks})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDebugAuthorization(t *testing.T) {
	router, _ := setupAuthzRouter(t)

	w := postJSON(t, router, "/v1/authz/debug", objects.CheckRequest{
		Principal: objects.Principal{Key: "john@doe.com"},
		Action:    "read",
		Resource:  objects.Resource{Type: "document"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result objects.CheckResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.True(t, result.Allowed)
	require.NotNil(t, result.Trace)
	require.Equal(t, "acme", result.Trace.Tenant)
	require.Contains(t, result.Trace.MatchedRoles, "member")
}
