// Package calllog records one row per live voice call.
package calllog

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/intervue/backend/internal/middleware"
	"github.com/intervue/backend/internal/models"
	"github.com/intervue/backend/pkg/response"
)

// Lister reads call logs.
type Lister interface {
	ListByInterview(ctx context.Context, interviewID, userID uuid.UUID) ([]models.CallLog, error)
}

// Handler handles GET /interviews/:id/calls.
type Handler struct {
	repo Lister
}

// NewHandler creates a call log handler.
func NewHandler(repo Lister) *Handler {
	return &Handler{repo: repo}
}

// ListByInterview handles GET /interviews/:id/calls (the current user's calls for an interview).
func (h *Handler) ListByInterview(c *gin.Context) {
	interviewID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid interview id")
		return
	}
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}
	list, err := h.repo.ListByInterview(c.Request.Context(), interviewID, userID)
	if err != nil {
		response.Internal(c, "failed to list calls")
		return
	}
	response.OK(c, gin.H{"calls": list})
}
