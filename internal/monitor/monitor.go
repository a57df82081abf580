// Package monitor enforces activity-based session expiry. While started, any
// activity signal reschedules two timers: a warning at timeout−warningLead
// and a forced timeout at timeout. Start and Stop are symmetric and
// idempotent; no timers exist while stopped.
package monitor

import (
	"log/slog"
	"sync"
	"time"
)

type Monitor struct {
	mu           sync.Mutex
	running      bool
	warningShown bool
	lastActivity time.Time
	gen          uint64 // invalidates timer callbacks from earlier cycles

	timeout     time.Duration
	warningLead time.Duration

	warningTimer *time.Timer
	timeoutTimer *time.Timer

	onWarning func()
	onTimeout func()
	log       *slog.Logger
}

func New(timeout time.Duration, warningLead time.Duration, onWarning func(), onTimeout func(), log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	if warningLead >= timeout {
		warningLead = timeout / 2
	}

	return &Monitor{
		timeout:     timeout,
		warningLead: warningLead,
		onWarning:   onWarning,
		onTimeout:   onTimeout,
		log:         log,
	}
}

func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	m.running = true
	m.warningShown = false
	m.lastActivity = time.Now()
	m.gen++
	m.scheduleLocked()
	m.log.Debug("session monitor started", "timeout", m.timeout, "warning_lead", m.warningLead)
}

func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	m.running = false
	m.warningShown = false
	m.gen++
	m.cancelLocked()
	m.log.Debug("session monitor stopped")
}

// Touch registers user activity: pending timers are canceled and both
// deadlines restart from now. The warning, if shown, is dismissed.
func (m *Monitor) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	m.warningShown = false
	m.lastActivity = time.Now()
	m.gen++
	m.scheduleLocked()
}

// Extend is the explicit "keep me signed in" action offered by the warning
// dialog. Identical to Touch; kept separate so callers read as intent.
func (m *Monitor) Extend() {
	m.Touch()
}

func (m *Monitor) WarningShown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.warningShown
}

func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.running
}

func (m *Monitor) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lastActivity
}

func (m *Monitor) scheduleLocked() {
	m.cancelLocked()

	gen := m.gen
	if lead := m.timeout - m.warningLead; lead > 0 && m.warningLead > 0 {
		m.warningTimer = time.AfterFunc(lead, func() { m.fireWarning(gen) })
	}
	m.timeoutTimer = time.AfterFunc(m.timeout, func() { m.fireTimeout(gen) })
}

func (m *Monitor) cancelLocked() {
	if m.warningTimer != nil {
		m.warningTimer.Stop()
		m.warningTimer = nil
	}
	if m.timeoutTimer != nil {
		m.timeoutTimer.Stop()
		m.timeoutTimer = nil
	}
}

func (m *Monitor) fireWarning(gen uint64) {
	m.mu.Lock()
	if !m.running || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.warningShown = true
	cb := m.onWarning
	m.mu.Unlock()

	if cb != nil {
		cb()
	}
}

func (m *Monitor) fireTimeout(gen uint64) {
	m.mu.Lock()
	if !m.running || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.gen++
	m.cancelLocked()
	cb := m.onTimeout
	m.mu.Unlock()

	m.log.Info("session timed out due to inactivity")
	if cb != nil {
		cb()
	}
}
