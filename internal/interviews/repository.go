package interviews

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/intervue/backend/internal/models"
)

// Repository handles interview persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an interviews repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const interviewColumns = `id, user_id, role, level, type, techstack, questions, cover_image, finalized, created_at`

// Create inserts a new interview.
func (r *Repository) Create(ctx context.Context, iv *models.Interview) error {
	const query = `INSERT INTO interviews (user_id, role, level, type, techstack, questions, cover_image, finalized)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		iv.UserID, iv.Role, iv.Level, iv.Type, iv.Techstack, iv.Questions, iv.CoverImage, iv.Finalized,
	).Scan(&iv.ID, &iv.CreatedAt)
}

// GetByID returns an interview by ID, or nil if absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Interview, error) {
	iv, err := scanInterview(r.pool.QueryRow(ctx, `SELECT `+interviewColumns+` FROM interviews WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return iv, err
}

// ListByUser returns the user's interviews, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Interview, error) {
	return r.list(ctx, `SELECT `+interviewColumns+` FROM interviews WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// ListLatest returns finalized interviews created by other users, newest first.
func (r *Repository) ListLatest(ctx context.Context, excludeUserID uuid.UUID, limit int) ([]models.Interview, error) {
	return r.list(ctx, `SELECT `+interviewColumns+` FROM interviews
		WHERE finalized = TRUE AND user_id <> $1
		ORDER BY created_at DESC LIMIT $2`, excludeUserID, limit)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]models.Interview, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Interview{}
	for rows.Next() {
		iv, err := scanInterview(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *iv)
	}
	return list, rows.Err()
}

func scanInterview(row pgx.Row) (*models.Interview, error) {
	var iv models.Interview
	err := row.Scan(&iv.ID, &iv.UserID, &iv.Role, &iv.Level, &iv.Type,
		&iv.Techstack, &iv.Questions, &iv.CoverImage, &iv.Finalized, &iv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &iv, nil
}
