// Package audit keeps a bounded, append-only trail of security-relevant
// events. Recording is best-effort by contract: it must never fail or block
// the caller's primary operation.
package audit

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-ledger-client/internal/kvstore"
	"go-ledger-client/internal/model"
)

const (
	storageKey      = "auth.audit"
	DefaultCapacity = 100
)

// Identity supplies the current user for event attribution. It returns
// (zero, "", false) when no one is logged in.
type Identity func() (userID int, username string, ok bool)

type Log struct {
	mu       sync.Mutex
	events   []model.SecurityEvent // oldest first
	capacity int

	kv        kvstore.Store
	identity  Identity
	userAgent string
	now       func() time.Time
	log       *slog.Logger
}

func New(kv kvstore.Store, identity Identity, userAgent string, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}

	l := &Log{
		capacity:  DefaultCapacity,
		kv:        kv,
		identity:  identity,
		userAgent: userAgent,
		now:       time.Now,
		log:       logger,
	}
	l.restore()

	return l
}

// Record appends an event with the current timestamp and identity. Storage
// failures are logged and swallowed.
func (l *Log) Record(eventType string, details string) {
	event := model.SecurityEvent{
		ID:        uuid.NewString(),
		Timestamp: l.now().UTC(),
		EventType: eventType,
		Details:   details,
		UserAgent: l.userAgent,
	}
	if l.identity != nil {
		if userID, username, ok := l.identity(); ok {
			event.UserID = userID
			event.Username = username
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, event)
	if len(l.events) > l.capacity {
		l.events = l.events[len(l.events)-l.capacity:]
	}

	l.persistLocked()
}

// Query returns up to limit events, most recent first.
func (l *Log) Query(limit int) []model.SecurityEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 || limit > len(l.events) {
		limit = len(l.events)
	}

	out := make([]model.SecurityEvent, 0, limit)
	for i := len(l.events) - 1; i >= len(l.events)-limit; i-- {
		out = append(out, l.events[i])
	}

	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.events)
}

func (l *Log) persistLocked() {
	if l.kv == nil {
		return
	}

	data, err := json.Marshal(l.events)
	if err != nil {
		l.log.Warn("failed to serialize audit trail", "error", err)
		return
	}

	if err := l.kv.SetItem(storageKey, string(data)); err != nil {
		l.log.Warn("failed to persist audit trail", "error", err)
	}
}

func (l *Log) restore() {
	if l.kv == nil {
		return
	}

	raw, ok, err := l.kv.GetItem(storageKey)
	if err != nil || !ok {
		return
	}

	var events []model.SecurityEvent
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		l.log.Warn("discarding corrupt audit trail")
		_ = l.kv.RemoveItem(storageKey)
		return
	}

	if len(events) > l.capacity {
		events = events[len(events)-l.capacity:]
	}
	l.events = events
}
