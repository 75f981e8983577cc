package persist

import (
	"context"
	"sync"

	"github.com/alexedwards/scs/v2"
)

// Storage is the client-side key/value tier.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
}

// MemoryStorage keeps values in process memory.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (s *MemoryStorage) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryStorage) Set(key, value string) {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
}

func (s *MemoryStorage) Remove(key string) {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
}

// Keys lists stored keys; used by tests and the CLI.
func (s *MemoryStorage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.values))
	for k := range s.values {
		out = append(out, k)
	}
	return out
}

// SessionStorage stores values in the caller's HTTP session. The context must
// carry a session loaded by the manager's LoadAndSave middleware.
type SessionStorage struct {
	ctx      context.Context
	sessions *scs.SessionManager
}

func NewSessionStorage(ctx context.Context, sessions *scs.SessionManager) *SessionStorage {
	return &SessionStorage{ctx: ctx, sessions: sessions}
}

func (s *SessionStorage) Get(key string) (string, bool) {
	if !s.sessions.Exists(s.ctx, key) {
		return "", false
	}
	return s.sessions.GetString(s.ctx, key), true
}

func (s *SessionStorage) Set(key, value string) {
	s.sessions.Put(s.ctx, key, value)
}

func (s *SessionStorage) Remove(key string) {
	s.sessions.Remove(s.ctx, key)
}
