package call

import (
	"time"

	"go.uber.org/zap"
)

// MonitorConfig holds the check cadence and the two ceilings.
type MonitorConfig struct {
	Interval           time.Duration
	InactivityTimeout  time.Duration
	MaxSessionDuration time.Duration
}

// ActivityMonitor tracks conversational activity and wall-clock duration of an
// active call and asks its owner to end the call when a ceiling is exceeded.
// All methods must run on the owner's executor.
type ActivityMonitor struct {
	cfg      MonitorConfig
	clock    Clock
	exec     Executor
	logger   *zap.Logger
	isActive func() bool
	onExpire func(EndReason)

	startedAt      time.Time
	lastActivityAt time.Time

	running bool
	gen     uint64
	timer   Timer
}

// NewActivityMonitor builds a stopped monitor. isActive gates every check;
// onExpire is invoked at most once per Start.
func NewActivityMonitor(cfg MonitorConfig, clock Clock, exec Executor, logger *zap.Logger, isActive func() bool, onExpire func(EndReason)) *ActivityMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityMonitor{
		cfg:      cfg,
		clock:    clock,
		exec:     exec,
		logger:   logger,
		isActive: isActive,
		onExpire: onExpire,
	}
}

// Start resets both timestamps to now and arms the periodic check.
func (m *ActivityMonitor) Start(now time.Time) {
	m.Stop()
	m.startedAt = now
	m.lastActivityAt = now
	m.running = true
	m.arm()
}

// Touch records activity. Earlier timestamps are ignored.
func (m *ActivityMonitor) Touch(now time.Time) {
	if now.After(m.lastActivityAt) {
		m.lastActivityAt = now
	}
}

// Stop cancels the periodic check. Idempotent.
func (m *ActivityMonitor) Stop() {
	if !m.running {
		return
	}
	m.running = false
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// Running reports whether checks are armed.
func (m *ActivityMonitor) Running() bool { return m.running }

// StartedAt is the time of the last Start.
func (m *ActivityMonitor) StartedAt() time.Time { return m.startedAt }

// LastActivityAt is the latest recorded activity.
func (m *ActivityMonitor) LastActivityAt() time.Time { return m.lastActivityAt }

// Check evaluates both ceilings at now. Duration wins over inactivity.
func (m *ActivityMonitor) Check(now time.Time) (EndReason, bool) {
	if m.cfg.MaxSessionDuration > 0 && now.Sub(m.startedAt) > m.cfg.MaxSessionDuration {
		return EndMaxDuration, true
	}
	if m.cfg.InactivityTimeout > 0 && now.Sub(m.lastActivityAt) > m.cfg.InactivityTimeout {
		return EndInactivity, true
	}
	return "", false
}

func (m *ActivityMonitor) arm() {
	gen := m.gen
	m.timer = m.clock.AfterFunc(m.cfg.Interval, func() {
		m.exec.Post(func() { m.tick(gen) })
	})
}

func (m *ActivityMonitor) tick(gen uint64) {
	if !m.running || gen != m.gen {
		return
	}
	m.timer = nil
	if !m.isActive() {
		m.arm()
		return
	}
	now := m.clock.Now()
	reason, expired := m.Check(now)
	if !expired {
		m.arm()
		return
	}
	m.logger.Info("call ceiling reached",
		zap.String("reason", string(reason)),
		zap.Duration("elapsed", now.Sub(m.startedAt)),
		zap.Duration("inactive", now.Sub(m.lastActivityAt)),
	)
	m.Stop()
	m.onExpire(reason)
}
