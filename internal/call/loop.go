package call

import (
	"sync"

	"go.uber.org/zap"
)

// Executor runs session work. Functions passed to Post run one at a time in
// submission order; functions passed to Go run concurrently and may block.
type Executor interface {
	Post(fn func()) bool
	Go(fn func())
}

const defaultInboxSize = 64

// Loop is the production Executor: a single goroutine draining an inbox.
type Loop struct {
	inbox  chan func()
	quit   chan struct{}
	exited chan struct{}
	logger *zap.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	workers   sync.WaitGroup
}

// NewLoop creates a loop; call Start to begin draining.
func NewLoop(logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		inbox:  make(chan func(), defaultInboxSize),
		quit:   make(chan struct{}),
		exited: make(chan struct{}),
		logger: logger,
	}
}

// Start launches the loop goroutine.
func (l *Loop) Start() {
	l.startOnce.Do(func() { go l.run() })
}

// Post queues fn. It returns false once the loop is stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}
	select {
	case l.inbox <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// Go runs fn on its own goroutine, tracked for Wait.
func (l *Loop) Go(fn func()) {
	l.workers.Add(1)
	go func() {
		defer l.workers.Done()
		defer l.recover("worker")
		fn()
	}()
}

// Done is closed once the loop stopped accepting work.
func (l *Loop) Done() <-chan struct{} { return l.quit }

// Stop ends the loop goroutine. Queued work that has not run is dropped.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.quit)
		l.startOnce.Do(func() { close(l.exited) })
	})
	<-l.exited
}

// Wait blocks until every function started with Go has returned.
func (l *Loop) Wait() {
	l.workers.Wait()
}

func (l *Loop) run() {
	defer close(l.exited)
	for {
		select {
		case <-l.quit:
			return
		case fn := <-l.inbox:
			l.exec(fn)
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer l.recover("loop")
	fn()
}

func (l *Loop) recover(where string) {
	if r := recover(); r != nil {
		l.logger.Error("call: recovered panic", zap.String("in", where), zap.Any("panic", r))
	}
}
