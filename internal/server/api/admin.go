package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/arbiterhq/arbiter/internal/server/biz"
)

type AdminHandlers struct {
	Auth   *biz.AuthService
	Policy *biz.PolicyService
	Traces *biz.TraceService
}

func NewAdminHandlers(auth *biz.AuthService, policy *biz.PolicyService, traces *biz.TraceService) *AdminHandlers {
	return &AdminHandlers{Auth: auth, Policy: policy, Traces: traces}
}

type signInRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type signInResponse struct {
	Token string `json:"token"`
}

// SignIn authenticates the admin and issues a JWT token.
//
// POST /admin/auth/signin
func (h *AdminHandlers) SignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, err)
		return
	}

	token, err := h.Auth.SignIn(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, biz.ErrInvalidCredentials) {
			JSONError(c, http.StatusUnauthorized, err)
		} else {
			JSONError(c, http.StatusInternalServerError, err)
		}

		return
	}

	c.JSON(http.StatusOK, signInResponse{Token: token})
}

// ReloadPolicy broadcasts a reload of the policy sources to every instance.
//
// POST /admin/policy/reload
func (h *AdminHandlers) ReloadPolicy(c *gin.Context) {
	if err := h.Policy.RequestReload(c.Request.Context()); err != nil {
		JSONError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "reload requested"})
}

// GetRecentTraces returns the retained debug traces for one tenant, newest
// first. The limit query parameter caps the count, zero means all retained.
//
// GET /admin/traces/:tenant
func (h *AdminHandlers) GetRecentTraces(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			JSONError(c, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}

		limit = parsed
	}

	traces := h.Traces.Recent(c.Param("tenant"), limit)
	if traces == nil {
		traces = []biz.RecordedTrace{}
	}

	c.JSON(http.StatusOK, gin.H{"traces": traces})
}
