package models

import (
	"time"

	"github.com/google/uuid"
)

// Interview is a generated mock interview: a question set for a role.
type Interview struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Role       string    `json:"role"`
	Level      string    `json:"level"`
	Type       string    `json:"type"`
	Techstack  []string  `json:"techstack"`
	Questions  []string  `json:"questions"`
	CoverImage string    `json:"cover_image"`
	Finalized  bool      `json:"finalized"`
	CreatedAt  time.Time `json:"created_at"`
}
