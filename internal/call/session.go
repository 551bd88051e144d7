// Package call runs one live voice interview: it drives the provider call
// through IDLE, CONNECTING, ACTIVE and FINISHED, watches activity and
// duration ceilings, and hands the finished transcript to feedback.
package call

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/intervue/backend/internal/models"
	"github.com/intervue/backend/internal/voice"
)

// Mode selects what the call is for.
type Mode string

const (
	// ModeGenerate runs the question generation workflow.
	ModeGenerate Mode = "generate"
	// ModeInterview runs the interviewer over a stored question set.
	ModeInterview Mode = "interview"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusIdle       Status = "IDLE"
	StatusConnecting Status = "CONNECTING"
	StatusActive     Status = "ACTIVE"
	StatusFinished   Status = "FINISHED"
)

// EndReason records why an active call finished.
type EndReason string

const (
	EndCallEnded             EndReason = "call_ended"
	EndUserDisconnect        EndReason = "user_disconnect"
	EndMaxDuration           EndReason = "max_duration"
	EndInactivity            EndReason = "inactivity"
	EndConversationConcluded EndReason = "conversation_concluded"
	EndProviderError         EndReason = "provider_error"
)

var (
	ErrAlreadyStarted = errors.New("call: already started")
	ErrTornDown       = errors.New("call: session torn down")
	ErrInvalidParams  = errors.New("call: invalid params")
)

// Params identify the user and interview a call belongs to.
type Params struct {
	InterviewID string
	UserID      string
	UserName    string
	FeedbackID  string
	Mode        Mode
	Questions   []string
}

// Config holds session timing and provider selection.
type Config struct {
	MonitorInterval    time.Duration
	InactivityTimeout  time.Duration
	MaxSessionDuration time.Duration
	ClosingGrace       time.Duration
	ClosingPhrases     []string
	WorkflowID         string
	ConnectTimeout     time.Duration
	FeedbackTimeout    time.Duration
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		MonitorInterval:    10 * time.Second,
		InactivityTimeout:  60 * time.Second,
		MaxSessionDuration: 45 * time.Minute,
		ClosingGrace:       5 * time.Second,
		ClosingPhrases:     []string{"concludes our interview", "thank you for your time"},
		ConnectTimeout:     15 * time.Second,
		FeedbackTimeout:    90 * time.Second,
	}
}

// Summary describes a finished call.
type Summary struct {
	Params    Params
	Reason    EndReason
	StartedAt time.Time
	EndedAt   time.Time
	Turns     int
}

// Hooks observe a session. Every hook runs on the session executor and must not block.
type Hooks struct {
	OnStatus        func(Status)
	OnTurn          func(models.TranscriptTurn)
	OnFinish        func(Summary)
	OnProviderError func(error)
}

// Dependencies are the collaborators of a session.
type Dependencies struct {
	Provider  voice.Provider
	Feedback  FeedbackCreator
	Navigator Navigator
	Clock     Clock
	Executor  Executor
	Logger    *zap.Logger
	Hooks     Hooks
}

// Snapshot is a point-in-time copy of session state.
type Snapshot struct {
	InterviewID       string
	Mode              Mode
	Status            Status
	StartedAt         time.Time
	LastActivityAt    time.Time
	Transcript        []models.TranscriptTurn
	FeedbackSubmitted bool
	EndReason         EndReason
}

// Session is the call state machine. Except for NewSession, every method
// must be invoked on the executor's serialized path.
type Session struct {
	params  Params
	cfg     Config
	phrases []string

	provider voice.Provider
	clock    Clock
	exec     Executor
	logger   *zap.Logger
	hooks    Hooks

	status     Status
	transcript Transcript
	monitor    *ActivityMonitor
	handoff    *Handoff

	gen         uint64
	grace       Timer
	endReason   EndReason
	unsubscribe func()
	torn        bool
}

// NewSession validates params and subscribes to the provider. Provider events
// are posted to deps.Executor.
func NewSession(params Params, cfg Config, deps Dependencies) (*Session, error) {
	if deps.Provider == nil || deps.Navigator == nil || deps.Executor == nil {
		return nil, errors.New("call: provider, navigator and executor are required")
	}
	switch params.Mode {
	case ModeGenerate:
		if strings.TrimSpace(cfg.WorkflowID) == "" {
			return nil, errors.Join(ErrInvalidParams, errors.New("generate mode needs a workflow id"))
		}
	case ModeInterview:
		if params.InterviewID == "" {
			return nil, errors.Join(ErrInvalidParams, errors.New("interview mode needs an interview id"))
		}
		if deps.Feedback == nil {
			return nil, errors.New("call: interview mode needs a feedback creator")
		}
	default:
		return nil, errors.Join(ErrInvalidParams, errors.New("unknown mode "+string(params.Mode)))
	}
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConfig().ConnectTimeout
	}

	logger := deps.Logger.With(
		zap.String("interview_id", params.InterviewID),
		zap.String("user_id", params.UserID),
		zap.String("mode", string(params.Mode)),
	)
	s := &Session{
		params:   params,
		cfg:      cfg,
		provider: deps.Provider,
		clock:    deps.Clock,
		exec:     deps.Executor,
		logger:   logger,
		hooks:    deps.Hooks,
		status:   StatusIdle,
	}
	for _, p := range cfg.ClosingPhrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			s.phrases = append(s.phrases, p)
		}
	}
	s.monitor = NewActivityMonitor(MonitorConfig{
		Interval:           cfg.MonitorInterval,
		InactivityTimeout:  cfg.InactivityTimeout,
		MaxSessionDuration: cfg.MaxSessionDuration,
	}, s.clock, s.exec, logger, func() bool { return s.status == StatusActive }, s.terminate)
	s.handoff = NewHandoff(params, deps.Feedback, deps.Navigator, cfg.FeedbackTimeout, logger)

	s.unsubscribe = s.provider.Subscribe(func(ev voice.Event) {
		s.exec.Post(func() { s.HandleEvent(ev) })
	})
	return s, nil
}

// Status returns the current state.
func (s *Session) Status() Status { return s.status }

// Snapshot copies the observable state.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		InterviewID:       s.params.InterviewID,
		Mode:              s.params.Mode,
		Status:            s.status,
		StartedAt:         s.monitor.StartedAt(),
		LastActivityAt:    s.monitor.LastActivityAt(),
		Transcript:        s.transcript.Turns(),
		FeedbackSubmitted: s.handoff.Submitted(),
		EndReason:         s.endReason,
	}
}

// Start moves IDLE to CONNECTING and opens the provider call off the executor.
func (s *Session) Start() error {
	if s.torn {
		return ErrTornDown
	}
	if s.status != StatusIdle {
		return ErrAlreadyStarted
	}
	s.monitor.Touch(s.clock.Now())
	s.setStatus(StatusConnecting)

	req := s.startRequest()
	timeout := s.cfg.ConnectTimeout
	s.exec.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.provider.Start(ctx, req); err != nil {
			s.exec.Post(func() { s.HandleEvent(voice.Event{Type: voice.EventError, Err: err}) })
		}
	})
	return nil
}

func (s *Session) startRequest() voice.StartRequest {
	if s.params.Mode == ModeGenerate {
		return voice.StartRequest{
			WorkflowID: s.cfg.WorkflowID,
			VariableValues: map[string]string{
				"username": s.params.UserName,
				"userid":   s.params.UserID,
			},
		}
	}
	return voice.StartRequest{
		Assistant: voice.Interviewer(),
		VariableValues: map[string]string{
			voice.QuestionsVariable: voice.FormatQuestions(s.params.Questions),
		},
	}
}

// Disconnect is the user's request to end the call.
func (s *Session) Disconnect() {
	if s.torn {
		return
	}
	s.terminate(EndUserDisconnect)
}

// HandleEvent applies one provider event.
func (s *Session) HandleEvent(ev voice.Event) {
	if s.torn {
		return
	}
	switch ev.Type {
	case voice.EventCallStart:
		s.onCallStart()
	case voice.EventCallEnd:
		s.finish(EndCallEnded, false)
	case voice.EventMessage:
		s.onMessage(ev.Message)
	case voice.EventSpeechStart, voice.EventSpeechEnd:
		if s.status == StatusActive {
			s.monitor.Touch(s.clock.Now())
		}
	case voice.EventError:
		s.onProviderError(ev.Err)
	}
}

func (s *Session) onCallStart() {
	if s.status != StatusConnecting {
		s.logger.Debug("call-start ignored", zap.String("status", string(s.status)))
		return
	}
	s.gen++
	s.setStatus(StatusActive)
	s.monitor.Start(s.clock.Now())
}

func (s *Session) onMessage(m *voice.Message) {
	if s.status != StatusActive || !m.IsTranscript() {
		return
	}
	s.monitor.Touch(s.clock.Now())
	if !m.IsFinalTranscript() {
		return
	}
	if !s.transcript.Append(m.Role, m.Transcript) {
		return
	}
	turn := models.TranscriptTurn{Role: m.Role, Content: m.Transcript}
	if s.hooks.OnTurn != nil {
		s.hooks.OnTurn(turn)
	}
	if m.Role == models.RoleAssistant && s.isClosingPhrase(m.Transcript) {
		s.scheduleClosing()
	}
}

func (s *Session) isClosingPhrase(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range s.phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// scheduleClosing arms the grace timer. An already pending timer is kept.
func (s *Session) scheduleClosing() {
	if s.grace != nil {
		return
	}
	gen := s.gen
	s.logger.Info("closing phrase detected", zap.Duration("grace", s.cfg.ClosingGrace))
	s.grace = s.clock.AfterFunc(s.cfg.ClosingGrace, func() {
		s.exec.Post(func() { s.onClosingGraceElapsed(gen) })
	})
}

func (s *Session) onClosingGraceElapsed(gen uint64) {
	if s.torn || gen != s.gen || s.status != StatusActive {
		return
	}
	s.grace = nil
	s.terminate(EndConversationConcluded)
}

func (s *Session) onProviderError(err error) {
	if s.status != StatusActive {
		s.logger.Warn("provider error outside active call", zap.String("status", string(s.status)), zap.Error(err))
		if s.hooks.OnProviderError != nil {
			s.hooks.OnProviderError(err)
		}
		return
	}
	s.logger.Error("provider error during call", zap.Error(err))
	if s.hooks.OnProviderError != nil {
		s.hooks.OnProviderError(err)
	}
	s.terminate(EndProviderError)
}

// terminate is the forced end path shared by user disconnect, ceilings,
// the closing grace timer and provider errors.
func (s *Session) terminate(reason EndReason) {
	s.finish(reason, true)
}

func (s *Session) finish(reason EndReason, closeProvider bool) {
	if s.status != StatusActive {
		s.logger.Debug("finish ignored", zap.String("reason", string(reason)), zap.String("status", string(s.status)))
		return
	}
	s.monitor.Stop()
	s.stopGrace()
	s.gen++
	s.endReason = reason
	s.transcript.Freeze()
	s.setStatus(StatusFinished)

	if closeProvider {
		s.stopProvider()
	}

	now := s.clock.Now()
	s.logger.Info("call finished",
		zap.String("reason", string(reason)),
		zap.Int("turns", s.transcript.Len()),
		zap.Duration("duration", now.Sub(s.monitor.StartedAt())),
	)
	if s.hooks.OnFinish != nil {
		s.hooks.OnFinish(Summary{
			Params:    s.params,
			Reason:    reason,
			StartedAt: s.monitor.StartedAt(),
			EndedAt:   now,
			Turns:     s.transcript.Len(),
		})
	}

	turns := s.transcript.Turns()
	s.exec.Go(func() { s.handoff.Run(turns) })
}

// Teardown releases timers and the provider subscription. The session
// accepts no further work afterwards and no handoff is started.
func (s *Session) Teardown() {
	if s.torn {
		return
	}
	s.torn = true
	s.gen++
	s.monitor.Stop()
	s.stopGrace()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.status == StatusConnecting || s.status == StatusActive {
		s.stopProvider()
	}
	s.logger.Debug("call session torn down", zap.String("status", string(s.status)))
}

func (s *Session) stopProvider() {
	s.exec.Go(func() {
		if err := s.provider.Stop(); err != nil {
			s.logger.Warn("provider stop", zap.Error(err))
		}
	})
}

func (s *Session) stopGrace() {
	if s.grace != nil {
		s.grace.Stop()
		s.grace = nil
	}
}

func (s *Session) setStatus(st Status) {
	s.status = st
	if s.hooks.OnStatus != nil {
		s.hooks.OnStatus(st)
	}
}
