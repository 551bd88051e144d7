// Package interviews generates and serves mock interview question sets.
package interviews

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/intervue/backend/internal/middleware"
	"github.com/intervue/backend/internal/models"
	"github.com/intervue/backend/pkg/response"
)

const (
	defaultLatestLimit = 20
	maxLatestLimit     = 100
)

// Store persists interviews.
type Store interface {
	Create(ctx context.Context, iv *models.Interview) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Interview, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Interview, error)
	ListLatest(ctx context.Context, excludeUserID uuid.UUID, limit int) ([]models.Interview, error)
}

// Generator drafts question lists.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]string, error)
}

// GenerateBody is the tool call payload of POST /vapi/generate.
type GenerateBody struct {
	Type      string `json:"type" binding:"required"`
	Role      string `json:"role" binding:"required"`
	Level     string `json:"level" binding:"required"`
	Techstack string `json:"techstack" binding:"required"`
	Amount    int    `json:"amount" binding:"required,min=1,max=20"`
	UserID    string `json:"userid" binding:"required"`
}

// Handler serves interview endpoints.
type Handler struct {
	store     Store
	generator Generator
	logger    *zap.Logger
}

// NewHandler creates an interviews handler.
func NewHandler(store Store, generator Generator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, generator: generator, logger: logger}
}

// Generate handles POST /vapi/generate: drafts questions and stores a finalized interview.
func (h *Handler) Generate(c *gin.Context) {
	var body GenerateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID, err := uuid.Parse(body.UserID)
	if err != nil {
		response.BadRequest(c, "invalid userid")
		return
	}
	techstack := NormalizeTechstack(body.Techstack)

	questions, err := h.generator.Generate(c.Request.Context(), GenerateRequest{
		Role:      body.Role,
		Level:     body.Level,
		Type:      body.Type,
		Techstack: techstack,
		Amount:    body.Amount,
	})
	if err != nil {
		h.logger.Error("question generation failed", zap.String("user_id", body.UserID), zap.Error(err))
		response.BadGateway(c, "failed to generate questions")
		return
	}

	iv := &models.Interview{
		UserID:     userID,
		Role:       body.Role,
		Level:      body.Level,
		Type:       body.Type,
		Techstack:  techstack,
		Questions:  questions,
		CoverImage: RandomCover(),
		Finalized:  true,
	}
	if err := h.store.Create(c.Request.Context(), iv); err != nil {
		h.logger.Error("create interview", zap.String("user_id", body.UserID), zap.Error(err))
		response.Internal(c, "failed to save interview")
		return
	}
	h.logger.Info("interview generated", zap.String("interview_id", iv.ID.String()), zap.Int("questions", len(questions)))
	response.Created(c, iv)
}

// Mine handles GET /interviews/mine.
func (h *Handler) Mine(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}
	list, err := h.store.ListByUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list interviews")
		return
	}
	response.OK(c, gin.H{"interviews": list})
}

// Latest handles GET /interviews/latest?limit=N: finalized interviews by other users.
func (h *Handler) Latest(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}
	limit := defaultLatestLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			response.BadRequest(c, "invalid limit")
			return
		}
		limit = min(n, maxLatestLimit)
	}
	list, err := h.store.ListLatest(c.Request.Context(), userID, limit)
	if err != nil {
		response.Internal(c, "failed to list interviews")
		return
	}
	response.OK(c, gin.H{"interviews": list})
}

// Get handles GET /interviews/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid interview id")
		return
	}
	iv, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load interview")
		return
	}
	if iv == nil {
		response.NotFound(c, "interview not found")
		return
	}
	response.OK(c, iv)
}
