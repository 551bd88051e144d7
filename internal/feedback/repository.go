package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/intervue/backend/internal/models"
)

// ErrNotOwner is returned when an upsert targets another user's feedback row.
var ErrNotOwner = errors.New("feedback belongs to another user")

// Repository handles feedback persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a new feedback repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const feedbackColumns = `id, interview_id, user_id, total_score, category_scores, strengths, areas_for_improvement,
	final_assessment, transcript, COALESCE(transcript_key, ''), created_at`

// Upsert inserts f, or replaces the assessment of the row with the same id
// when it belongs to the same user.
func (r *Repository) Upsert(ctx context.Context, f *models.Feedback) error {
	categories, err := json.Marshal(f.CategoryScores)
	if err != nil {
		return fmt.Errorf("marshal category scores: %w", err)
	}
	transcript, err := json.Marshal(f.Transcript)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	err = r.pool.QueryRow(ctx,
		`INSERT INTO feedback (id, interview_id, user_id, total_score, category_scores, strengths,
			areas_for_improvement, final_assessment, transcript)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
			total_score = EXCLUDED.total_score,
			category_scores = EXCLUDED.category_scores,
			strengths = EXCLUDED.strengths,
			areas_for_improvement = EXCLUDED.areas_for_improvement,
			final_assessment = EXCLUDED.final_assessment,
			transcript = EXCLUDED.transcript,
			transcript_key = NULL
		 WHERE feedback.user_id = EXCLUDED.user_id AND feedback.interview_id = EXCLUDED.interview_id
		 RETURNING created_at`,
		f.ID, f.InterviewID, f.UserID, f.TotalScore, categories, f.Strengths,
		f.AreasForImprovement, f.FinalAssessment, transcript,
	).Scan(&f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotOwner
	}
	return err
}

// GetByID returns the feedback row or nil if absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Feedback, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+feedbackColumns+` FROM feedback WHERE id = $1`, id)
	return scanFeedback(row)
}

// GetByInterviewAndUser returns the latest feedback of userID for an interview, or nil.
func (r *Repository) GetByInterviewAndUser(ctx context.Context, interviewID, userID uuid.UUID) (*models.Feedback, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+feedbackColumns+` FROM feedback
		 WHERE interview_id = $1 AND user_id = $2
		 ORDER BY created_at DESC LIMIT 1`,
		interviewID, userID,
	)
	return scanFeedback(row)
}

// SetTranscriptKey records where the transcript was archived.
func (r *Repository) SetTranscriptKey(ctx context.Context, id uuid.UUID, key string) error {
	_, err := r.pool.Exec(ctx, `UPDATE feedback SET transcript_key = $2 WHERE id = $1`, id, key)
	return err
}

func scanFeedback(row pgx.Row) (*models.Feedback, error) {
	var f models.Feedback
	var categories, transcript []byte
	err := row.Scan(&f.ID, &f.InterviewID, &f.UserID, &f.TotalScore, &categories, &f.Strengths,
		&f.AreasForImprovement, &f.FinalAssessment, &transcript, &f.TranscriptKey, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(categories, &f.CategoryScores); err != nil {
		return nil, fmt.Errorf("decode category scores: %w", err)
	}
	if len(transcript) > 0 {
		if err := json.Unmarshal(transcript, &f.Transcript); err != nil {
			return nil, fmt.Errorf("decode transcript: %w", err)
		}
	}
	return &f, nil
}
