package session

import (
	"context"
	"sync"

	"medical-assistant/internal/domain"
)

// MemoryStore keeps conversation history in process memory. History is lost
// on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	turns map[domain.SessionKey]domain.ConversationHistory
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{turns: make(map[domain.SessionKey]domain.ConversationHistory)}
}

// LoadHistory returns a copy of the last limit turns, oldest first.
func (s *MemoryStore) LoadHistory(_ context.Context, key domain.SessionKey, limit int) (domain.ConversationHistory, error) {
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.turns[key]
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	copied := make(domain.ConversationHistory, len(history))
	copy(copied, history)
	return copied, nil
}

func (s *MemoryStore) AppendTurns(_ context.Context, key domain.SessionKey, turns ...domain.ConversationTurn) error {
	if len(turns) == 0 {
		return nil
	}

	s.mu.Lock()
	s.turns[key] = append(s.turns[key], turns...)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ClearHistory(_ context.Context, key domain.SessionKey) error {
	s.mu.Lock()
	delete(s.turns, key)
	s.mu.Unlock()
	return nil
}
