// Package tokenstore holds the current session and persists it through the
// local key-value store. It is the single source of truth for authentication
// state; all access replaces or reads the whole value.
package tokenstore

import (
	"encoding/json"
	"log/slog"
	"sync"

	"go-ledger-client/internal/kvstore"
	"go-ledger-client/internal/model"
)

const sessionKey = "auth.session"

type Store struct {
	mu      sync.RWMutex
	kv      kvstore.Store
	current *model.Session
	loaded  bool
	log     *slog.Logger
}

func New(kv kvstore.Store, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}

	return &Store{kv: kv, log: log}
}

func (s *Store) Set(session model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = &session
	s.loaded = true
	return s.kv.SetItem(sessionKey, string(data))
}

// Get returns the current session, loading it from durable storage on first
// use. Corrupt stored data degrades to "not authenticated": the entry is
// removed and (nil, false) is returned. Get never fails.
func (s *Store) Get() (*model.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		s.loadLocked()
	}

	if s.current == nil || !s.current.Authenticated() {
		return nil, false
	}

	copied := *s.current
	return &copied, true
}

// AccessToken is a convenience accessor for the pipeline's hot path.
func (s *Store) AccessToken() (string, bool) {
	session, ok := s.Get()
	if !ok {
		return "", false
	}
	return session.AccessToken, true
}

// SetAccessToken replaces only the access token of the current session,
// keeping user and refresh token intact. No-op when unauthenticated.
func (s *Store) SetAccessToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		s.loadLocked()
	}
	if s.current == nil {
		return model.ErrNotAuthenticated
	}

	updated := *s.current
	updated.AccessToken = token
	if exp, ok := TokenExpiry(token); ok {
		updated.ExpiresAt = exp
	}
	s.current = &updated

	data, err := json.Marshal(updated)
	if err != nil {
		return err
	}
	return s.kv.SetItem(sessionKey, string(data))
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = nil
	s.loaded = true
	if err := s.kv.RemoveItem(sessionKey); err != nil {
		s.log.Warn("failed to clear persisted session", "error", err)
	}
}

func (s *Store) loadLocked() {
	s.loaded = true

	raw, ok, err := s.kv.GetItem(sessionKey)
	if err != nil {
		s.log.Warn("failed to read persisted session", "error", err)
		return
	}
	if !ok {
		return
	}

	var session model.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		s.log.Warn("discarding corrupt persisted session")
		_ = s.kv.RemoveItem(sessionKey)
		return
	}

	s.current = &session
}
