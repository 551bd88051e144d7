package call

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/intervue/backend/internal/models"
)

// View is a client destination after a call.
type View string

const (
	ViewHome     View = "home"
	ViewFeedback View = "feedback"
)

// Target is where the client goes next.
type Target struct {
	View      View
	SessionID string
}

// Path renders the client route for t.
func (t Target) Path() string {
	if t.View == ViewFeedback && t.SessionID != "" {
		return fmt.Sprintf("/interview/%s/feedback", t.SessionID)
	}
	return "/"
}

// Navigator sends the client to a view.
type Navigator interface {
	Navigate(Target)
}

// FeedbackRequest is the finished interview handed to feedback generation.
type FeedbackRequest struct {
	InterviewID string
	UserID      string
	Transcript  []models.TranscriptTurn
	FeedbackID  string
}

// FeedbackResult reports the stored feedback id on success.
type FeedbackResult struct {
	Success    bool
	FeedbackID string
}

// FeedbackCreator turns a transcript into stored feedback.
type FeedbackCreator interface {
	CreateFeedback(ctx context.Context, req FeedbackRequest) (FeedbackResult, error)
}

// minTurnsForFeedback is the shortest transcript worth scoring.
const minTurnsForFeedback = 2

// Handoff routes a finished call and submits feedback at most once.
type Handoff struct {
	params   Params
	feedback FeedbackCreator
	nav      Navigator
	timeout  time.Duration
	logger   *zap.Logger

	triggered atomic.Bool
	submitted atomic.Bool
}

// NewHandoff builds the handoff for one session.
func NewHandoff(params Params, feedback FeedbackCreator, nav Navigator, timeout time.Duration, logger *zap.Logger) *Handoff {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultConfig().FeedbackTimeout
	}
	return &Handoff{params: params, feedback: feedback, nav: nav, timeout: timeout, logger: logger}
}

// Submitted reports whether feedback submission has begun.
func (h *Handoff) Submitted() bool { return h.submitted.Load() }

// Run handles the end of a call. Only the first call does anything.
func (h *Handoff) Run(turns []models.TranscriptTurn) {
	if !h.triggered.CompareAndSwap(false, true) {
		return
	}
	home := Target{View: ViewHome}

	if h.params.Mode == ModeGenerate {
		h.nav.Navigate(home)
		return
	}
	if len(turns) < minTurnsForFeedback {
		h.logger.Warn("transcript too short for feedback", zap.Int("turns", len(turns)))
		h.nav.Navigate(home)
		return
	}
	if !h.submitted.CompareAndSwap(false, true) {
		return
	}

	target := h.submit(turns)
	h.nav.Navigate(target)
}

func (h *Handoff) submit(turns []models.TranscriptTurn) (target Target) {
	target = Target{View: ViewHome}
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("feedback submission panicked", zap.Any("panic", r))
			target = Target{View: ViewHome}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	res, err := h.feedback.CreateFeedback(ctx, FeedbackRequest{
		InterviewID: h.params.InterviewID,
		UserID:      h.params.UserID,
		Transcript:  turns,
		FeedbackID:  h.params.FeedbackID,
	})
	if err != nil {
		h.logger.Error("save feedback", zap.Error(err))
		return target
	}
	if !res.Success || res.FeedbackID == "" {
		h.logger.Error("save feedback: unsuccessful result", zap.Bool("success", res.Success))
		return target
	}
	return Target{View: ViewFeedback, SessionID: h.params.InterviewID}
}
