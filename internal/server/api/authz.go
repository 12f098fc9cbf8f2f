package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arbiterhq/arbiter/internal/objects"
	"github.com/arbiterhq/arbiter/internal/server/biz"
)

// AuthzHandlers serves the decision endpoints.
type AuthzHandlers struct {
	Check *biz.CheckService

	// MaxBulkChecks bounds the batch size of one bulk request.
	MaxBulkChecks int
}

const defaultMaxBulkChecks = 1000

func NewAuthzHandlers(check *biz.CheckService) *AuthzHandlers {
	return &AuthzHandlers{
		Check:         check,
		MaxBulkChecks: defaultMaxBulkChecks,
	}
}

// CheckAuthorization answers a single check.
//
// POST /v1/authz/check
func (h *AuthzHandlers) CheckAuthorization(c *gin.Context) {
	var req objects.CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, err)
		return
	}

	result := h.Check.Check(c.Request.Context(), req)
	c.JSON(http.StatusOK, result)
}

// BulkCheckAuthorization answers an ordered batch of checks. The results are
// index-aligned with the request; a failed entry carries an error marker in
// its own slot.
//
// POST /v1/authz/bulk
func (h *AuthzHandlers) BulkCheckAuthorization(c *gin.Context) {
	var req objects.BulkCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, err)
		return
	}

	if len(req.Checks) > h.MaxBulkChecks {
		JSONError(c, http.StatusBadRequest,
			fmt.Errorf("bulk request holds %d checks, limit is %d", len(req.Checks), h.MaxBulkChecks))

		return
	}

	results := h.Check.BulkCheck(c.Request.Context(), req.Checks)
	c.JSON(http.StatusOK, objects.BulkCheckResponse{Results: results})
}

// DebugAuthorization answers a single check with the full evaluation trace.
//
// POST /v1/authz/debug
func (h *AuthzHandlers) DebugAuthorization(c *gin.Context) {
	var req objects.CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, err)
		return
	}

	result := h.Check.Debug(c.Request.Context(), req)
	c.JSON(http.StatusOK, result)
}
