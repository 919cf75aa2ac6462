// Package session owns the current login identity. It is the sole source
// of truth for "am I logged in as whom"; other components only read it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"agora/internal/models"
	"agora/internal/storage"
)

const storeKey = "current"

type Store struct {
	mu      sync.Mutex
	current *models.Session

	db  *storage.Store
	log *zap.Logger
}

// NewStore builds a session store backed by db and loads any session
// persisted by a previous run.
func NewStore(db *storage.Store, log *zap.Logger) *Store {
	s := &Store{db: db, log: log}
	s.load()
	return s
}

func (s *Store) load() {
	raw, err := s.db.Get(context.Background(), storage.NamespaceSession, storeKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNoRows) {
			s.log.Warn("load session", zap.Error(err))
		}
		return
	}
	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		s.log.Warn("decode stored session", zap.Error(err))
		return
	}
	s.current = &sess
}

// Set replaces the current session and persists it.
func (s *Store) Set(sess models.Session) {
	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()

	raw, err := json.Marshal(sess)
	if err != nil {
		s.log.Warn("encode session", zap.Error(err))
		return
	}
	if err := s.db.Put(context.Background(), storage.NamespaceSession, storeKey, raw); err != nil {
		s.log.Warn("persist session", zap.Error(err))
	}
}

// Current returns the active session, if any.
func (s *Store) Current() (models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return models.Session{}, false
	}
	return *s.current, true
}

// Token returns the session credential or "" when logged out.
func (s *Store) Token() string {
	sess, ok := s.Current()
	if !ok {
		return ""
	}
	return sess.Token
}

// Clear drops the session on logout or after an unauthorized signal.
func (s *Store) Clear() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if err := s.db.Delete(context.Background(), storage.NamespaceSession, storeKey); err != nil {
		s.log.Warn("clear persisted session", zap.Error(err))
	}
}
