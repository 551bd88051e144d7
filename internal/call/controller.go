package call

import (
	"go.uber.org/zap"
)

// Controller is the goroutine-safe face of a Session running on its own Loop.
type Controller struct {
	loop    *Loop
	session *Session
	logger  *zap.Logger
}

// NewController starts a loop and builds a session on it. deps.Executor is
// ignored. Close must be called to release the loop.
func NewController(params Params, cfg Config, deps Dependencies) (*Controller, error) {
	loop := NewLoop(deps.Logger)
	deps.Executor = loop
	session, err := NewSession(params, cfg, deps)
	if err != nil {
		return nil, err
	}
	loop.Start()
	return &Controller{loop: loop, session: session, logger: session.logger}, nil
}

// Start begins the call.
func (c *Controller) Start() error {
	var err error
	if !c.do(func() { err = c.session.Start() }) {
		return ErrTornDown
	}
	return err
}

// Disconnect ends an active call at the user's request.
func (c *Controller) Disconnect() {
	c.loop.Post(c.session.Disconnect)
}

// Snapshot returns the current state. ok is false after Close.
func (c *Controller) Snapshot() (snap Snapshot, ok bool) {
	ok = c.do(func() { snap = c.session.Snapshot() })
	return snap, ok
}

// Close tears the session down and stops the loop. Work already handed to
// background goroutines, such as feedback submission, keeps running.
func (c *Controller) Close() {
	c.do(c.session.Teardown)
	c.loop.Stop()
}

// Wait blocks until background work finishes.
func (c *Controller) Wait() {
	c.loop.Wait()
}

// do runs fn on the loop and waits for it. It reports false if the loop stopped first.
func (c *Controller) do(fn func()) bool {
	done := make(chan struct{})
	if !c.loop.Post(func() {
		defer close(done)
		fn()
	}) {
		return false
	}
	select {
	case <-done:
		return true
	case <-c.loop.Done():
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
}
