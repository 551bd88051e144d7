package voice

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Client to provider frames.
type startFrame struct {
	Type               string              `json:"type"`
	WorkflowID         string              `json:"workflowId,omitempty"`
	Assistant          *Assistant          `json:"assistant,omitempty"`
	AssistantOverrides *assistantOverrides `json:"assistantOverrides,omitempty"`
}

type assistantOverrides struct {
	VariableValues map[string]string `json:"variableValues"`
}

type controlFrame struct {
	Type string `json:"type"`
}

// Provider to client frame. Type is one of the EventType values.
type serverFrame struct {
	Type    EventType    `json:"type"`
	Message *Message     `json:"message,omitempty"`
	Error   *serverError `json:"error,omitempty"`
}

type serverError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func newStartFrame(req StartRequest) (startFrame, error) {
	hasWorkflow := strings.TrimSpace(req.WorkflowID) != ""
	if hasWorkflow == (req.Assistant != nil) {
		return startFrame{}, errors.New("voice: exactly one of workflow id and assistant is required")
	}
	f := startFrame{Type: "start", WorkflowID: strings.TrimSpace(req.WorkflowID), Assistant: req.Assistant}
	if len(req.VariableValues) > 0 {
		f.AssistantOverrides = &assistantOverrides{VariableValues: req.VariableValues}
	}
	return f, nil
}

// decodeFrame turns a text frame into an Event. ok is false for frame types
// this client does not surface.
func decodeFrame(data []byte) (ev Event, ok bool, err error) {
	var f serverFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return Event{}, false, fmt.Errorf("decode frame: %w", err)
	}
	switch f.Type {
	case EventCallStart, EventCallEnd, EventSpeechStart, EventSpeechEnd:
		return Event{Type: f.Type}, true, nil
	case EventMessage:
		if f.Message == nil {
			return Event{}, false, errors.New("decode frame: message frame without message")
		}
		return Event{Type: EventMessage, Message: f.Message}, true, nil
	case EventError:
		msg := "provider error"
		if f.Error != nil && f.Error.Message != "" {
			msg = f.Error.Message
		}
		return Event{Type: EventError, Err: errors.New(msg)}, true, nil
	default:
		return Event{}, false, nil
	}
}
