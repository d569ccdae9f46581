package memory

import (
	"context"
	"time"

	"confidee-relayer/internal/model"
	"confidee-relayer/internal/repository"
	"confidee-relayer/internal/ttlcache"
)

// SessionStore keeps sessions in process memory.
type SessionStore struct {
	cache *ttlcache.Memory[string, model.Session]
}

func NewSessionStore(now func() time.Time) *SessionStore {
	var opts []ttlcache.Option
	if now != nil {
		opts = append(opts, ttlcache.WithClock(now))
	}
	return &SessionStore{cache: ttlcache.NewMemory[string, model.Session](opts...)}
}

func (s *SessionStore) Put(_ context.Context, token string, session model.Session) error {
	s.cache.Set(token, session, session.ExpiresAt)
	return nil
}

func (s *SessionStore) Get(_ context.Context, token string) (model.Session, error) {
	session, ok := s.cache.Get(token)
	if !ok {
		return model.Session{}, repository.ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionStore) Delete(_ context.Context, token string) error {
	s.cache.Delete(token)
	return nil
}

func (s *SessionStore) Sweep(_ context.Context) (int, error) {
	return s.cache.Sweep(), nil
}

// Len is the number of records held, expired or not.
func (s *SessionStore) Len() int {
	return s.cache.Len()
}
