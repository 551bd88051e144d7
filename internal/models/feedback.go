package models

import (
	"time"

	"github.com/google/uuid"
)

// CategoryScore is the score for one fixed assessment category.
type CategoryScore struct {
	Name    string `json:"name"`
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

// Feedback is the stored assessment of one interview attempt.
type Feedback struct {
	ID                  uuid.UUID        `json:"id"`
	InterviewID         uuid.UUID        `json:"interview_id"`
	UserID              uuid.UUID        `json:"user_id"`
	TotalScore          int              `json:"total_score"`
	CategoryScores      []CategoryScore  `json:"category_scores"`
	Strengths           []string         `json:"strengths"`
	AreasForImprovement []string         `json:"areas_for_improvement"`
	FinalAssessment     string           `json:"final_assessment"`
	Transcript          []TranscriptTurn `json:"transcript,omitempty"`
	TranscriptKey       string           `json:"transcript_key,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
}
