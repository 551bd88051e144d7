// Package feedback scores finished interviews and stores the result.
package feedback

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/intervue/backend/internal/call"
	"github.com/intervue/backend/internal/models"
	"github.com/intervue/backend/pkg/queue"
)

var (
	ErrEmptyTranscript = errors.New("feedback: empty transcript")
	ErrInvalidID       = errors.New("feedback: invalid id")
)

// Store persists feedback rows.
type Store interface {
	Upsert(ctx context.Context, f *models.Feedback) error
}

// Archiver schedules transcript archiving.
type Archiver interface {
	EnqueueTranscriptArchive(ctx context.Context, payload queue.TranscriptArchivePayload) error
}

// Service implements call.FeedbackCreator.
type Service struct {
	scorer   Scorer
	store    Store
	archiver Archiver
	logger   *zap.Logger
}

// NewService wires a feedback service. archiver may be nil.
func NewService(scorer Scorer, store Store, archiver Archiver, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{scorer: scorer, store: store, archiver: archiver, logger: logger}
}

var _ call.FeedbackCreator = (*Service)(nil)

// CreateFeedback scores req.Transcript and upserts the result. A non-empty
// req.FeedbackID replaces that earlier assessment.
func (s *Service) CreateFeedback(ctx context.Context, req call.FeedbackRequest) (call.FeedbackResult, error) {
	interviewID, err := uuid.Parse(req.InterviewID)
	if err != nil {
		return call.FeedbackResult{}, fmt.Errorf("%w: interview id %q", ErrInvalidID, req.InterviewID)
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return call.FeedbackResult{}, fmt.Errorf("%w: user id %q", ErrInvalidID, req.UserID)
	}
	id := uuid.New()
	if req.FeedbackID != "" {
		if id, err = uuid.Parse(req.FeedbackID); err != nil {
			return call.FeedbackResult{}, fmt.Errorf("%w: feedback id %q", ErrInvalidID, req.FeedbackID)
		}
	}
	if len(req.Transcript) == 0 {
		return call.FeedbackResult{}, ErrEmptyTranscript
	}

	assessment, err := s.scorer.Score(ctx, req.Transcript)
	if err != nil {
		return call.FeedbackResult{}, fmt.Errorf("score transcript: %w", err)
	}

	f := &models.Feedback{
		ID:                  id,
		InterviewID:         interviewID,
		UserID:              userID,
		TotalScore:          assessment.TotalScore,
		CategoryScores:      assessment.CategoryScores,
		Strengths:           assessment.Strengths,
		AreasForImprovement: assessment.AreasForImprovement,
		FinalAssessment:     assessment.FinalAssessment,
		Transcript:          req.Transcript,
	}
	if err := s.store.Upsert(ctx, f); err != nil {
		return call.FeedbackResult{}, fmt.Errorf("save feedback: %w", err)
	}
	s.logger.Info("feedback saved",
		zap.String("feedback_id", id.String()),
		zap.String("interview_id", req.InterviewID),
		zap.Int("total_score", f.TotalScore),
	)

	if s.archiver != nil {
		err := s.archiver.EnqueueTranscriptArchive(ctx, queue.TranscriptArchivePayload{
			FeedbackID:  id,
			InterviewID: interviewID,
			UserID:      userID,
		})
		if err != nil {
			s.logger.Warn("enqueue transcript archive", zap.String("feedback_id", id.String()), zap.Error(err))
		}
	}
	return call.FeedbackResult{Success: true, FeedbackID: id.String()}, nil
}
