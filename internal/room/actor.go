// Package room implements the per-room actor: the sole owner and mutator of
// one room's authoritative game state. All mutations flow through a single
// goroutine, so no two actions for the same room are ever validated
// concurrently, while different rooms proceed fully in parallel.
package room

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"time"

	"cardroom/internal/domain"
	"cardroom/internal/engine"
	"cardroom/internal/logger"
	"cardroom/internal/repository"
)

// Broadcaster receives the ordered event stream of a room right after each
// action commits. The call happens on the actor goroutine, so implementations
// must not block.
type Broadcaster interface {
	BroadcastEvents(roomID string, events []domain.Event)
}

// Options tune one actor.
type Options struct {
	QueueSize      int           // inbound action queue capacity
	PersistTimeout time.Duration // per-write deadline against the gateway
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = 5 * time.Second
	}
	return o
}

type submitResult struct {
	events []domain.Event
	err    error
}

type command interface{ isCommand() }

type submitCmd struct {
	action domain.Action
	reply  chan submitResult
}

type connCmd struct {
	playerID  string
	connected bool
	reply     chan error
}

type snapshotCmd struct {
	viewerID string
	reply    chan *domain.GameState
}

type infoCmd struct {
	reply chan Info
}

type expireCmd struct {
	cutoff time.Time
	reply  chan []string
}

func (submitCmd) isCommand()   {}
func (connCmd) isCommand()     {}
func (snapshotCmd) isCommand() {}
func (infoCmd) isCommand()     {}
func (expireCmd) isCommand()   {}

// Info is a read-only room summary for listings.
type Info struct {
	ID        string              `json:"id"`
	Name      string              `json:"name,omitempty"`
	OwnerID   string              `json:"owner_id"`
	Settings  domain.RoomSettings `json:"settings"`
	Phase     domain.Phase        `json:"phase"`
	Version   int64               `json:"version"`
	Players   []domain.Player     `json:"players"`
	CreatedAt time.Time           `json:"created_at"`
}

// Actor owns one GameRoom. Create with New, then Run on its own goroutine.
type Actor struct {
	room *domain.GameRoom
	eng  *engine.Engine
	gw   repository.Gateway
	rng  *rand.Rand
	opts Options

	broadcaster Broadcaster

	inbox chan command
	quit  chan struct{}
	done  chan struct{}

	// loop-owned: when each disconnected player was last seen
	disconnectedAt map[string]time.Time

	lastActivity atomic.Int64 // unix nano
	connected    atomic.Int64
}

// New builds an actor around an existing room value. The room (including its
// state) is owned by the actor from here on.
func New(r *domain.GameRoom, gw repository.Gateway, b Broadcaster, opts Options) *Actor {
	a := &Actor{
		room:           r,
		eng:            engine.New(r.OwnerID, r.Settings),
		gw:             gw,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		opts:           opts.withDefaults(),
		broadcaster:    b,
		inbox:          make(chan command, opts.withDefaults().QueueSize),
		quit:           make(chan struct{}),
		done:           make(chan struct{}),
		disconnectedAt: make(map[string]time.Time),
	}
	a.lastActivity.Store(time.Now().UnixNano())
	return a
}

// SeedRand replaces the shuffle source; tests use it for determinism.
func (a *Actor) SeedRand(seed int64) {
	a.rng = rand.New(rand.NewSource(seed))
}

// ID returns the room id.
func (a *Actor) ID() string { return a.room.ID }

// OwnerID returns the owning player's id.
func (a *Actor) OwnerID() string { return a.room.OwnerID }

// LastActivity reports when the room last accepted an action.
func (a *Actor) LastActivity() time.Time {
	return time.Unix(0, a.lastActivity.Load())
}

// ConnectedCount reports how many seated players are currently connected.
func (a *Actor) ConnectedCount() int {
	return int(a.connected.Load())
}

// Run drains the command queue until Stop is called. Must run on its own
// goroutine, exactly once.
func (a *Actor) Run() {
	defer close(a.done)
	for {
		select {
		case cmd := <-a.inbox:
			a.handle(cmd)
		case <-a.quit:
			// Resolve whatever is still queued before exiting; enqueued
			// actions are never silently dropped.
			for {
				select {
				case cmd := <-a.inbox:
					a.handle(cmd)
				default:
					a.finalSave()
					return
				}
			}
		}
	}
}

// Stop shuts the actor down after resolving queued commands.
func (a *Actor) Stop() {
	select {
	case <-a.quit:
	default:
		close(a.quit)
	}
	<-a.done
}

// Submit queues an action and waits for its outcome. Only the wait is bound
// by ctx: once enqueued, the action always resolves to acceptance or
// rejection even if the submitter gives up.
func (a *Actor) Submit(ctx context.Context, action domain.Action) ([]domain.Event, error) {
	cmd := submitCmd{action: action, reply: make(chan submitResult, 1)}
	if err := a.enqueue(ctx, cmd); err != nil {
		return nil, err
	}
	select {
	case res := <-cmd.reply:
		return res.events, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// MarkConnected flips a seated player back to connected. Connection liveness
// is bookkeeping, not a game mutation: no version bump, no persistence.
func (a *Actor) MarkConnected(ctx context.Context, playerID string) error {
	return a.markConn(ctx, playerID, true)
}

// MarkDisconnected records a dropped connection and starts the grace window.
func (a *Actor) MarkDisconnected(ctx context.Context, playerID string) error {
	return a.markConn(ctx, playerID, false)
}

func (a *Actor) markConn(ctx context.Context, playerID string, connected bool) error {
	cmd := connCmd{playerID: playerID, connected: connected, reply: make(chan error, 1)}
	if err := a.enqueue(ctx, cmd); err != nil {
		return err
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the current state redacted for the viewer, or the full
// state when viewerID is empty. Two snapshots without intervening actions are
// identical.
func (a *Actor) Snapshot(ctx context.Context, viewerID string) (*domain.GameState, error) {
	cmd := snapshotCmd{viewerID: viewerID, reply: make(chan *domain.GameState, 1)}
	if err := a.enqueue(ctx, cmd); err != nil {
		return nil, err
	}
	select {
	case s := <-cmd.reply:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Describe returns a listing summary.
func (a *Actor) Describe(ctx context.Context) (Info, error) {
	cmd := infoCmd{reply: make(chan Info, 1)}
	if err := a.enqueue(ctx, cmd); err != nil {
		return Info{}, err
	}
	select {
	case info := <-cmd.reply:
		return info, nil
	case <-ctx.Done():
		return Info{}, ctx.Err()
	}
}

// ExpireGrace converts players disconnected since before cutoff into leaves.
// Returns the ids of the vacated seats.
func (a *Actor) ExpireGrace(ctx context.Context, cutoff time.Time) ([]string, error) {
	cmd := expireCmd{cutoff: cutoff, reply: make(chan []string, 1)}
	if err := a.enqueue(ctx, cmd); err != nil {
		return nil, err
	}
	select {
	case ids := <-cmd.reply:
		return ids, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *Actor) enqueue(ctx context.Context, cmd command) error {
	select {
	case <-a.quit:
		return domain.ErrRoomClosed
	default:
	}
	// The bounded queue is the back-pressure point: when this room's inbox is
	// saturated, submitters wait here until their ctx gives up.
	select {
	case a.inbox <- cmd:
		return nil
	case <-a.quit:
		return domain.ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Actor) handle(cmd command) {
	switch c := cmd.(type) {
	case submitCmd:
		events, err := a.apply(c.action)
		c.reply <- submitResult{events: events, err: err}
	case connCmd:
		c.reply <- a.setConnection(c.playerID, c.connected)
	case snapshotCmd:
		if c.viewerID == "" {
			c.reply <- a.room.State.Clone()
		} else {
			c.reply <- a.room.State.View(c.viewerID)
		}
	case infoCmd:
		c.reply <- a.describe()
	case expireCmd:
		c.reply <- a.expireGrace(c.cutoff)
	}
}

// apply runs one action through the engine and the persistence gateway.
// Accepted actions are committed in memory only after the durable write
// succeeds; on any persistence failure the pre-action state stays authoritative.
func (a *Actor) apply(action domain.Action) ([]domain.Event, error) {
	state := a.room.State
	next, events, err := a.eng.Apply(state, action, a.rng)
	if err != nil {
		observeAction(action.Kind(), "rejected")
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.opts.PersistTimeout)
	defer cancel()

	if err := a.gw.Save(ctx, a.room.ID, next, state.Version); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			// Someone else owns a newer revision. Re-read the authoritative
			// state and reject the in-flight action so the client can retry.
			if fresh, lerr := a.gw.Load(ctx, a.room.ID); lerr == nil {
				a.room.State = fresh
			}
			observeAction(action.Kind(), "conflict")
			logger.Warn("room: version conflict", "room_id", a.room.ID, "action", action.Kind())
			return nil, err
		}
		// Storage failure: roll back to the last good in-memory state and
		// report; the room stays live with a bounded non-durability window.
		observeAction(action.Kind(), "storage_error")
		logger.Error("room: persist failed", "room_id", a.room.ID, "action", action.Kind(), "error", err)
		return nil, err
	}

	a.room.State = next
	a.room.LastActivityAt = time.Now()
	a.lastActivity.Store(a.room.LastActivityAt.UnixNano())
	a.connected.Store(int64(next.ConnectedCount()))
	if action.Kind() == domain.ActionLeave {
		delete(a.disconnectedAt, action.Actor())
	}
	observeAction(action.Kind(), "accepted")

	for _, ev := range events {
		if err := a.gw.AppendEvent(ctx, a.room.ID, ev); err != nil {
			logger.Warn("room: event audit append failed", "room_id", a.room.ID, "kind", ev.Kind(), "error", err)
		}
	}
	if a.broadcaster != nil {
		a.broadcaster.BroadcastEvents(a.room.ID, events)
	}
	return events, nil
}

func (a *Actor) setConnection(playerID string, connected bool) error {
	p := a.room.State.FindPlayer(playerID)
	if p == nil || !p.Seated() {
		return domain.ErrNotFound
	}
	if connected {
		p.ConnectionState = domain.ConnStateConnected
		delete(a.disconnectedAt, playerID)
	} else {
		p.ConnectionState = domain.ConnStateDisconnected
		a.disconnectedAt[playerID] = time.Now()
	}
	a.connected.Store(int64(a.room.State.ConnectedCount()))
	return nil
}

func (a *Actor) expireGrace(cutoff time.Time) []string {
	var expired []string
	for playerID, since := range a.disconnectedAt {
		if since.After(cutoff) {
			continue
		}
		delete(a.disconnectedAt, playerID)
		if _, err := a.apply(domain.NewLeave(playerID, true)); err != nil {
			logger.Warn("room: grace-expiry leave rejected",
				"room_id", a.room.ID, "player_id", playerID, "error", err)
			continue
		}
		expired = append(expired, playerID)
	}
	return expired
}

func (a *Actor) describe() Info {
	s := a.room.State
	players := make([]domain.Player, len(s.Players))
	for i, p := range s.Players {
		p.Hand = nil
		p.HandSize = len(s.Players[i].Hand)
		players[i] = p
	}
	return Info{
		ID:        a.room.ID,
		Name:      a.room.Name,
		OwnerID:   a.room.OwnerID,
		Settings:  a.eng.Settings(),
		Phase:     s.Phase,
		Version:   s.Version,
		Players:   players,
		CreatedAt: a.room.CreatedAt,
	}
}

// finalSave makes a last best-effort write so a disbanded room's terminal
// state survives the process.
func (a *Actor) finalSave() {
	ctx, cancel := context.WithTimeout(context.Background(), a.opts.PersistTimeout)
	defer cancel()
	if err := a.gw.Save(ctx, a.room.ID, a.room.State, a.room.State.Version); err != nil {
		logger.Warn("room: final save failed", "room_id", a.room.ID, "error", err)
	}
}
