package models

import (
	"time"

	"github.com/google/uuid"
)

// CallLog records one live voice call, from connect to finish.
type CallLog struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	InterviewID *uuid.UUID `json:"interview_id,omitempty"`
	Mode        string     `json:"mode"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	EndReason   string     `json:"end_reason,omitempty"`
	TurnCount   int        `json:"turn_count"`
	CreatedAt   time.Time  `json:"created_at"`
}
