package voice

import (
	"context"
	"errors"
)

var (
	// ErrNotConnected is returned when a provider operation needs an open call.
	ErrNotConnected = errors.New("voice: not connected")
	// ErrAlreadyStarted is returned by Start on a provider that already opened a call.
	ErrAlreadyStarted = errors.New("voice: call already started")
)

// StartRequest selects what the provider runs for a call. Exactly one of
// WorkflowID and Assistant is set.
type StartRequest struct {
	WorkflowID     string
	Assistant      *Assistant
	VariableValues map[string]string
}

// Provider is a real-time voice conversation service.
type Provider interface {
	// Start opens a call. It returns once the provider accepted the request;
	// EventCallStart follows asynchronously.
	Start(ctx context.Context, req StartRequest) error
	// Stop ends the call. Safe to call more than once.
	Stop() error
	// Subscribe registers fn for every event and returns a func that removes it.
	Subscribe(fn func(Event)) (unsubscribe func())
}
