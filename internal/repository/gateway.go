package repository

import (
	"context"

	"cardroom/internal/domain"
)

// Gateway is the persistence boundary the room actor consumes. Save performs
// an optimistic-concurrency write: it only succeeds when the stored version
// still equals expectedVersion, and returns domain.ErrVersionConflict
// otherwise. AppendEvent is a best-effort audit log; failures there never
// block game progress.
type Gateway interface {
	Load(ctx context.Context, roomID string) (*domain.GameState, error)
	Save(ctx context.Context, roomID string, state *domain.GameState, expectedVersion int64) error
	AppendEvent(ctx context.Context, roomID string, event domain.Event) error
}
