// Package registry is the process-wide directory of live rooms: it maps room
// ids to their actors and players to their current room, owns room lifecycle
// (create, disband) and runs the idle-room and disconnect-grace sweeps.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"cardroom/internal/domain"
	"cardroom/internal/logger"
	"cardroom/internal/repository"
	"cardroom/internal/room"
)

// Config carries the lifecycle policy knobs. Durations are configuration with
// documented defaults, not hard-coded constants.
type Config struct {
	GracePeriod   time.Duration // disconnect-to-leave window, default 30s
	IdleTimeout   time.Duration // no-connected-players room lifetime, default 60m
	SweepInterval time.Duration // background sweep cadence, default 1m
	Actor         room.Options
}

func (c Config) withDefaults() Config {
	if c.GracePeriod <= 0 {
		c.GracePeriod = 30 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = time.Hour
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	return c
}

// Registry is safe for concurrent use; a single mutex guards both maps and is
// held only briefly per operation, never across a persistence call.
type Registry struct {
	mu         sync.RWMutex
	rooms      map[string]*room.Actor
	playerRoom map[string]string

	gw          repository.Gateway
	broadcaster room.Broadcaster
	cfg         Config

	stop     chan struct{}
	stopOnce sync.Once
	sweepWG  sync.WaitGroup
}

// New builds an empty registry. The broadcaster may be nil (tests).
func New(gw repository.Gateway, b room.Broadcaster, cfg Config) *Registry {
	return &Registry{
		rooms:       make(map[string]*room.Actor),
		playerRoom:  make(map[string]string),
		gw:          gw,
		broadcaster: b,
		cfg:         cfg.withDefaults(),
		stop:        make(chan struct{}),
	}
}

// SetBroadcaster wires the connection broker in after construction; the
// broker itself needs the registry to resolve rooms.
func (r *Registry) SetBroadcaster(b room.Broadcaster) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcaster = b
}

// CreateRoom allocates a room, its actor and the actor's goroutine. Creation
// is check-then-insert under the registry lock, so no two actors can ever
// exist for the same id.
func (r *Registry) CreateRoom(ownerID, name string, settings domain.RoomSettings) (*room.Actor, error) {
	id := uuid.NewString()
	now := time.Now()
	gr := &domain.GameRoom{
		ID:             id,
		OwnerID:        ownerID,
		Name:           name,
		Settings:       settings.Normalize(),
		State:          domain.NewGameState(id),
		CreatedAt:      now,
		LastActivityAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.stop:
		return nil, domain.ErrRoomClosed
	default:
	}
	if _, exists := r.rooms[id]; exists {
		return nil, fmt.Errorf("room id collision: %s", id)
	}
	a := room.New(gr, r.gw, r.broadcaster, r.cfg.Actor)
	r.rooms[id] = a
	go a.Run()
	room.ActiveRooms.Inc()

	logger.Info("registry: room created", "room_id", id, "owner_id", ownerID, "name", name)
	return a, nil
}

// Get resolves a room actor.
func (r *Registry) Get(roomID string) (*room.Actor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", roomID, domain.ErrNotFound)
	}
	return a, nil
}

// List describes every live room.
func (r *Registry) List(ctx context.Context) []room.Info {
	r.mu.RLock()
	actors := make([]*room.Actor, 0, len(r.rooms))
	for _, a := range r.rooms {
		actors = append(actors, a)
	}
	r.mu.RUnlock()

	infos := make([]room.Info, 0, len(actors))
	for _, a := range actors {
		info, err := a.Describe(ctx)
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	return infos
}

// BindPlayer records that a player now belongs to a room. A player belongs to
// at most one active room.
func (r *Registry) BindPlayer(playerID, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.playerRoom[playerID]; ok && cur != roomID {
		return fmt.Errorf("player %s already in room %s", playerID, cur)
	}
	r.playerRoom[playerID] = roomID
	return nil
}

// UnbindPlayer clears a player's room membership.
func (r *Registry) UnbindPlayer(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.playerRoom, playerID)
}

// RoomOf returns the room a player currently belongs to.
func (r *Registry) RoomOf(playerID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.playerRoom[playerID]
	if !ok {
		return "", fmt.Errorf("player %s: %w", playerID, domain.ErrNotFound)
	}
	return roomID, nil
}

// RemovePlayer submits a leave on the player's behalf and clears the binding.
func (r *Registry) RemovePlayer(ctx context.Context, playerID string) error {
	roomID, err := r.RoomOf(playerID)
	if err != nil {
		return err
	}
	a, err := r.Get(roomID)
	if err != nil {
		r.UnbindPlayer(playerID)
		return err
	}
	if _, err := a.Submit(ctx, domain.NewLeave(playerID, false)); err != nil && !domain.IsRuleViolation(err) {
		return err
	}
	r.UnbindPlayer(playerID)
	r.disbandIfEmpty(ctx, roomID)
	return nil
}

// DisbandIfEmpty tears the room down when no seated players remain.
func (r *Registry) DisbandIfEmpty(ctx context.Context, roomID string) bool {
	return r.disbandIfEmpty(ctx, roomID)
}

func (r *Registry) disbandIfEmpty(ctx context.Context, roomID string) bool {
	a, err := r.Get(roomID)
	if err != nil {
		return false
	}
	info, err := a.Describe(ctx)
	if err != nil {
		return false
	}
	seated := 0
	for i := range info.Players {
		if info.Players[i].Seated() {
			seated++
		}
	}
	if seated > 0 {
		return false
	}
	r.disband(roomID, "empty")
	return true
}

// disband removes the room from both maps and stops its actor (which makes a
// final best-effort save).
func (r *Registry) disband(roomID, reason string) {
	r.mu.Lock()
	a, ok := r.rooms[roomID]
	if ok {
		delete(r.rooms, roomID)
		for pid, rid := range r.playerRoom {
			if rid == roomID {
				delete(r.playerRoom, pid)
			}
		}
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	a.Stop()
	room.ActiveRooms.Dec()
	logger.Info("registry: room disbanded", "room_id", roomID, "reason", reason)
}

// StartSweeper launches the periodic grace-expiry and idle-room sweeps.
func (r *Registry) StartSweeper() {
	r.sweepWG.Add(1)
	go func() {
		defer r.sweepWG.Done()
		ticker := time.NewTicker(r.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Sweep(context.Background())
			case <-r.stop:
				return
			}
		}
	}()
}

// Sweep runs one pass of both background jobs. Exported so tests can trigger
// it without waiting for the ticker.
func (r *Registry) Sweep(ctx context.Context) {
	r.mu.RLock()
	actors := make([]*room.Actor, 0, len(r.rooms))
	for _, a := range r.rooms {
		actors = append(actors, a)
	}
	r.mu.RUnlock()

	graceCutoff := time.Now().Add(-r.cfg.GracePeriod)
	idleCutoff := time.Now().Add(-r.cfg.IdleTimeout)

	for _, a := range actors {
		vacated, err := a.ExpireGrace(ctx, graceCutoff)
		if err != nil {
			continue
		}
		for _, pid := range vacated {
			r.UnbindPlayer(pid)
			logger.Info("registry: grace period expired", "room_id", a.ID(), "player_id", pid)
		}
		if len(vacated) > 0 && r.disbandIfEmpty(ctx, a.ID()) {
			continue
		}
		if a.ConnectedCount() == 0 && a.LastActivity().Before(idleCutoff) {
			r.disband(a.ID(), "idle")
		}
	}
}

// Shutdown stops the sweeps and disbands every room, persisting final states.
func (r *Registry) Shutdown() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.sweepWG.Wait()

	r.mu.Lock()
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.disband(id, "shutdown")
	}
}
