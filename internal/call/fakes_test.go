package call

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/intervue/backend/internal/models"
	"github.com/intervue/backend/internal/voice"
)

type fakeClock struct {
	now    time.Time
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	at   time.Time
	seq  int
	f    func()
	done bool
}

func (t *fakeTimer) Stop() bool {
	if t.done {
		return false
	}
	t.done = true
	return true
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.seq++
	t := &fakeTimer{at: c.now.Add(d), seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward, firing due callbacks in order.
func (c *fakeClock) Advance(d time.Duration) {
	target := c.now.Add(d)
	for {
		var due *fakeTimer
		for _, t := range c.timers {
			if t.done || t.at.After(target) {
				continue
			}
			if due == nil || t.at.Before(due.at) || (t.at.Equal(due.at) && t.seq < due.seq) {
				due = t
			}
		}
		if due == nil {
			break
		}
		due.done = true
		c.now = due.at
		due.f()
	}
	c.now = target
}

func (c *fakeClock) pending() int {
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

// inlineExecutor runs everything synchronously on the caller.
type inlineExecutor struct{}

func (inlineExecutor) Post(fn func()) bool { fn(); return true }
func (inlineExecutor) Go(fn func())        { fn() }

type fakeProvider struct {
	mu        sync.Mutex
	starts    []voice.StartRequest
	startErr  error
	autoStart bool
	stops     int
	subs      map[int]func(voice.Event)
	next      int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{subs: make(map[int]func(voice.Event))}
}

func (p *fakeProvider) Start(_ context.Context, req voice.StartRequest) error {
	p.mu.Lock()
	p.starts = append(p.starts, req)
	err, auto := p.startErr, p.autoStart
	p.mu.Unlock()
	if err != nil {
		return err
	}
	if auto {
		p.emit(voice.Event{Type: voice.EventCallStart})
	}
	return nil
}

func (p *fakeProvider) Stop() error {
	p.mu.Lock()
	p.stops++
	p.mu.Unlock()
	return nil
}

func (p *fakeProvider) Subscribe(fn func(voice.Event)) func() {
	p.mu.Lock()
	id := p.next
	p.next++
	p.subs[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

func (p *fakeProvider) emit(ev voice.Event) {
	p.mu.Lock()
	var fns []func(voice.Event)
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (p *fakeProvider) say(role models.Role, text string) {
	p.emit(voice.Event{Type: voice.EventMessage, Message: &voice.Message{
		Type: voice.MessageTypeTranscript, TranscriptType: voice.TranscriptFinal, Role: role, Transcript: text,
	}})
}

func (p *fakeProvider) partial(role models.Role, text string) {
	p.emit(voice.Event{Type: voice.EventMessage, Message: &voice.Message{
		Type: voice.MessageTypeTranscript, TranscriptType: voice.TranscriptPartial, Role: role, Transcript: text,
	}})
}

func (p *fakeProvider) stopCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops
}

func (p *fakeProvider) subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

type recordingNavigator struct {
	mu      sync.Mutex
	targets []Target
	ch      chan Target
}

func newRecordingNavigator() *recordingNavigator {
	return &recordingNavigator{ch: make(chan Target, 4)}
}

func (n *recordingNavigator) Navigate(t Target) {
	n.mu.Lock()
	n.targets = append(n.targets, t)
	n.mu.Unlock()
	select {
	case n.ch <- t:
	default:
	}
}

func (n *recordingNavigator) all() []Target {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Target(nil), n.targets...)
}

type countingFeedback struct {
	mu       sync.Mutex
	calls    int
	requests []FeedbackRequest
	result   FeedbackResult
	err      error
	panicMsg string
}

func (f *countingFeedback) CreateFeedback(_ context.Context, req FeedbackRequest) (FeedbackResult, error) {
	f.mu.Lock()
	f.calls++
	f.requests = append(f.requests, req)
	res, err, p := f.result, f.err, f.panicMsg
	f.mu.Unlock()
	if p != "" {
		panic(p)
	}
	return res, err
}

func (f *countingFeedback) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var errBoom = errors.New("boom")
