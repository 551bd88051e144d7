package models

// Role identifies the speaker of a transcript turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// TranscriptTurn is one finalized utterance.
type TranscriptTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
