package session

import (
	"context"
	"sync"

	"github.com/spec-kit/support-bot/internal/domain"
)

// MemoryStore is a mutex-guarded in-process store. Used when no Redis
// address is configured; sessions then do not survive restarts.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]domain.Session
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]domain.Session)}
}

func (s *MemoryStore) Get(_ context.Context, chatID int64) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.sessions[chatID]
	if !ok {
		return nil, nil
	}
	// Copy the nested state too, so callers mutating the returned session
	// cannot reach into the store before Put.
	copied := stored
	if stored.Form != nil {
		copied.Form = make(map[string]string, len(stored.Form))
		for key, value := range stored.Form {
			copied.Form[key] = value
		}
	}
	if stored.Link != nil {
		link := *stored.Link
		copied.Link = &link
	}
	return &copied, nil
}

func (s *MemoryStore) Put(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ChatID] = *session
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, chatID)
	return nil
}

func (s *MemoryStore) PutGuarded(_ context.Context, session *domain.Session, guard domain.Flow) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.sessions[session.ChatID]; ok && current.Flow != guard {
		return false, nil
	}
	s.sessions[session.ChatID] = *session
	return true, nil
}

func (s *MemoryStore) Pair(_ context.Context, a, b *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[a.ChatID] = *a
	s.sessions[b.ChatID] = *b
	return nil
}

func (s *MemoryStore) BreakPair(_ context.Context, closerID, counterpartID, requestID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, closerID)
	counterpart, ok := s.sessions[counterpartID]
	if ok && counterpart.LinkedTo(requestID) {
		delete(s.sessions, counterpartID)
		return true, nil
	}
	return false, nil
}
