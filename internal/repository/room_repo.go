package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cardroom/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RoomRepository persists room state as JSONB in Postgres with a version
// column guarding concurrent writers.
type RoomRepository struct {
	db *pgxpool.Pool
}

func NewRoomRepository(db *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) Load(ctx context.Context, roomID string) (*domain.GameState, error) {
	var raw []byte
	err := r.db.QueryRow(ctx,
		`SELECT state FROM rooms WHERE room_id = $1`,
		roomID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("room %s: %w", roomID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "load", Err: err}
	}

	var state domain.GameState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, &domain.StorageError{Op: "load", Err: err}
	}
	return &state, nil
}

func (r *RoomRepository) Save(ctx context.Context, roomID string, state *domain.GameState, expectedVersion int64) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return &domain.StorageError{Op: "save", Err: err}
	}

	// Insert the first revision, or update only when the stored version still
	// matches what the actor last committed.
	tag, err := r.db.Exec(ctx,
		`INSERT INTO rooms (room_id, state, version, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (room_id) DO UPDATE
		 SET state = EXCLUDED.state, version = EXCLUDED.version, updated_at = now()
		 WHERE rooms.version = $4`,
		roomID, raw, state.Version, expectedVersion,
	)
	if err != nil {
		return &domain.StorageError{Op: "save", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("room %s at version %d: %w", roomID, expectedVersion, domain.ErrVersionConflict)
	}
	return nil
}

func (r *RoomRepository) AppendEvent(ctx context.Context, roomID string, event domain.Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return &domain.StorageError{Op: "append_event", Err: err}
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO room_events (room_id, version, kind, payload)
		 VALUES ($1, $2, $3, $4)`,
		roomID, event.Version(), string(event.Kind()), raw,
	)
	if err != nil {
		return &domain.StorageError{Op: "append_event", Err: err}
	}
	return nil
}

// Delete removes a room row after disbandment. The event log is kept for audit.
func (r *RoomRepository) Delete(ctx context.Context, roomID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM rooms WHERE room_id = $1`, roomID); err != nil {
		return &domain.StorageError{Op: "delete", Err: err}
	}
	return nil
}
