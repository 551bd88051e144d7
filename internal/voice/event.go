package voice

import (
	"github.com/intervue/backend/internal/models"
)

// EventType names a provider event.
type EventType string

const (
	EventCallStart   EventType = "call-start"
	EventCallEnd     EventType = "call-end"
	EventMessage     EventType = "message"
	EventSpeechStart EventType = "speech-start"
	EventSpeechEnd   EventType = "speech-end"
	EventError       EventType = "error"
)

// Message types and transcript stages carried by EventMessage.
const (
	MessageTypeTranscript = "transcript"

	TranscriptFinal   = "final"
	TranscriptPartial = "partial"
)

// Message is the payload of an EventMessage.
type Message struct {
	Type           string      `json:"type"`
	TranscriptType string      `json:"transcriptType,omitempty"`
	Role           models.Role `json:"role,omitempty"`
	Transcript     string      `json:"transcript,omitempty"`
}

// IsTranscript reports whether m carries transcript text, final or partial.
func (m *Message) IsTranscript() bool {
	return m != nil && m.Type == MessageTypeTranscript
}

// IsFinalTranscript reports whether m is a finalized transcript.
func (m *Message) IsFinalTranscript() bool {
	return m.IsTranscript() && m.TranscriptType == TranscriptFinal
}

// Event is a single notification from the provider.
type Event struct {
	Type    EventType
	Message *Message
	Err     error
}
