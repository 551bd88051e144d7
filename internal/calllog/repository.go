package calllog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/intervue/backend/internal/models"
)

// Repository handles call_logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a call log repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Start inserts a row when a call begins connecting.
func (r *Repository) Start(ctx context.Context, l *models.CallLog) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO call_logs (user_id, interview_id, mode, started_at) VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		l.UserID, l.InterviewID, l.Mode, l.StartedAt,
	).Scan(&l.ID, &l.CreatedAt)
}

// Finish closes an open row with the end reason and number of finalized turns.
func (r *Repository) Finish(ctx context.Context, id uuid.UUID, endedAt time.Time, reason string, turns int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE call_logs SET ended_at = $2, end_reason = $3, turn_count = $4 WHERE id = $1 AND ended_at IS NULL`,
		id, endedAt, reason, turns)
	return err
}

// ListByInterview returns the user's calls for an interview, newest first.
func (r *Repository) ListByInterview(ctx context.Context, interviewID, userID uuid.UUID) ([]models.CallLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, interview_id, mode, started_at, ended_at, COALESCE(end_reason, ''), turn_count, created_at
		 FROM call_logs WHERE interview_id = $1 AND user_id = $2 ORDER BY started_at DESC`,
		interviewID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.CallLog{}
	for rows.Next() {
		var l models.CallLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.InterviewID, &l.Mode, &l.StartedAt, &l.EndedAt, &l.EndReason, &l.TurnCount, &l.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}
