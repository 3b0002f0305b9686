package conversation

import (
	"context"
	"sync"
)

// Repository persists per-session state and the chat transcript.
type Repository interface {
	// LoadState returns the stored state for the session, or a fresh
	// waiting_query state when the session is unknown.
	LoadState(ctx context.Context, sessionID string) (State, error)
	SaveState(ctx context.Context, sessionID string, st State) error
	AppendMessages(ctx context.Context, sessionID string, msgs ...Message) error
	History(ctx context.Context, sessionID string) ([]Message, error)
}

// MemoryRepository keeps sessions in process memory. It backs the terminal
// runner and tests; the server uses the redis-backed repository.
type MemoryRepository struct {
	mu       sync.RWMutex
	states   map[string]State
	messages map[string][]Message
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		states:   map[string]State{},
		messages: map[string][]Message{},
	}
}

func (r *MemoryRepository) LoadState(_ context.Context, sessionID string) (State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.states[sessionID]
	if !ok {
		return NewState(), nil
	}
	return st, nil
}

func (r *MemoryRepository) SaveState(_ context.Context, sessionID string, st State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[sessionID] = st
	return nil
}

func (r *MemoryRepository) AppendMessages(_ context.Context, sessionID string, msgs ...Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[sessionID] = append(r.messages[sessionID], msgs...)
	return nil
}

func (r *MemoryRepository) History(_ context.Context, sessionID string) ([]Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Message, len(r.messages[sessionID]))
	copy(out, r.messages[sessionID])
	return out, nil
}
