package repository

import (
	"context"
	"fmt"
	"sync"

	"cardroom/internal/domain"
)

// MemoryGateway is an in-process Gateway with the same optimistic-concurrency
// contract as the Postgres implementation. It backs tests and single-node
// deployments without a DATABASE_URL.
type MemoryGateway struct {
	mu     sync.Mutex
	states map[string]*domain.GameState
	events map[string][]domain.Event

	// FailSave, when set, makes the next Save return the given error once.
	// Tests use it to exercise the actor's rollback path.
	failSave error
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		states: make(map[string]*domain.GameState),
		events: make(map[string][]domain.Event),
	}
}

func (m *MemoryGateway) Load(ctx context.Context, roomID string) (*domain.GameState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[roomID]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", roomID, domain.ErrNotFound)
	}
	return s.Clone(), nil
}

func (m *MemoryGateway) Save(ctx context.Context, roomID string, state *domain.GameState, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		err := m.failSave
		m.failSave = nil
		return err
	}
	if cur, ok := m.states[roomID]; ok && cur.Version != expectedVersion {
		return fmt.Errorf("room %s at version %d: %w", roomID, expectedVersion, domain.ErrVersionConflict)
	}
	m.states[roomID] = state.Clone()
	return nil
}

func (m *MemoryGateway) AppendEvent(ctx context.Context, roomID string, event domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[roomID] = append(m.events[roomID], event)
	return nil
}

// Events returns the audit log recorded for a room.
func (m *MemoryGateway) Events(roomID string) []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Event(nil), m.events[roomID]...)
}

// FailNextSave arms a one-shot Save failure.
func (m *MemoryGateway) FailNextSave(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSave = err
}

// ForceVersion overwrites the stored version, simulating a concurrent writer.
func (m *MemoryGateway) ForceVersion(roomID string, version int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.states[roomID]; ok {
		s.Version = version
	}
}
