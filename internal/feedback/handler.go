package feedback

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/intervue/backend/internal/middleware"
	"github.com/intervue/backend/internal/models"
	"github.com/intervue/backend/pkg/response"
)

// Reader loads stored feedback.
type Reader interface {
	GetByInterviewAndUser(ctx context.Context, interviewID, userID uuid.UUID) (*models.Feedback, error)
}

// TranscriptSigner issues short-lived download links for archived transcripts.
type TranscriptSigner interface {
	TranscriptDownloadURL(ctx context.Context, key string) (string, error)
}

// Handler serves feedback endpoints.
type Handler struct {
	repo   Reader
	signer TranscriptSigner
}

// NewHandler returns a new feedback handler. signer may be nil when no
// archive bucket is configured.
func NewHandler(repo Reader, signer TranscriptSigner) *Handler {
	return &Handler{repo: repo, signer: signer}
}

// GetForInterview handles GET /interviews/:id/feedback for the current user.
func (h *Handler) GetForInterview(c *gin.Context) {
	f, ok := h.load(c)
	if !ok {
		return
	}
	response.OK(c, f)
}

// GetTranscriptURL handles GET /interviews/:id/feedback/transcript.
func (h *Handler) GetTranscriptURL(c *gin.Context) {
	f, ok := h.load(c)
	if !ok {
		return
	}
	if h.signer == nil || f.TranscriptKey == "" {
		response.NotFound(c, "transcript not archived yet")
		return
	}
	url, err := h.signer.TranscriptDownloadURL(c.Request.Context(), f.TranscriptKey)
	if err != nil {
		response.Internal(c, "failed to sign transcript url")
		return
	}
	response.OK(c, gin.H{"url": url})
}

func (h *Handler) load(c *gin.Context) (*models.Feedback, bool) {
	interviewID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid interview id")
		return nil, false
	}
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return nil, false
	}
	f, err := h.repo.GetByInterviewAndUser(c.Request.Context(), interviewID, userID)
	if err != nil {
		response.Internal(c, "failed to load feedback")
		return nil, false
	}
	if f == nil {
		response.NotFound(c, "feedback not found")
		return nil, false
	}
	return f, true
}
