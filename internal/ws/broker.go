// Package ws is the connection broker: it owns one live channel per
// authenticated connection, fans room events out to subscribers in accepted
// order and resynchronizes reconnecting clients via bounded replay or a full
// snapshot.
package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"cardroom/internal/domain"
	"cardroom/internal/logger"
	"cardroom/internal/registry"
)

// Options tune the broker.
type Options struct {
	Retention     int           // per-room replay ring size, default 256
	SubmitTimeout time.Duration // how long a submitter waits on its action
}

func (o Options) withDefaults() Options {
	if o.Retention <= 0 {
		o.Retention = 256
	}
	if o.SubmitTimeout <= 0 {
		o.SubmitTimeout = 5 * time.Second
	}
	return o
}

// Broker tracks live clients and per-room subscriptions. It implements
// room.Broadcaster; BroadcastEvents is invoked on each room's actor goroutine
// right after an action commits, which is what keeps every client's stream in
// version order.
type Broker struct {
	reg  *registry.Registry
	opts Options

	mu       sync.RWMutex
	clients  map[string]*Client            // playerID -> live client
	roomSubs map[string]map[string]*Client // roomID -> playerID -> client
	rings    map[string]*eventRing
}

// NewBroker builds an empty broker over the registry.
func NewBroker(reg *registry.Registry, opts Options) *Broker {
	return &Broker{
		reg:      reg,
		opts:     opts.withDefaults(),
		clients:  make(map[string]*Client),
		roomSubs: make(map[string]map[string]*Client),
		rings:    make(map[string]*eventRing),
	}
}

// BroadcastEvents delivers one action's events to every subscriber of the
// room, redacted per recipient, preserving acceptance order.
func (b *Broker) BroadcastEvents(roomID string, events []domain.Event) {
	if len(events) == 0 {
		return
	}
	b.ring(roomID).append(events...)

	b.mu.RLock()
	subs := make([]*Client, 0, len(b.roomSubs[roomID]))
	for _, c := range b.roomSubs[roomID] {
		subs = append(subs, c)
	}
	b.mu.RUnlock()

	for _, c := range subs {
		for _, ev := range events {
			c.deliver(ev)
		}
		eventsDelivered.Add(float64(len(events)))
	}
}

// Send delivers a frame to one player if they are connected.
func (b *Broker) Send(playerID string, frame []byte) {
	b.mu.RLock()
	c, ok := b.clients[playerID]
	b.mu.RUnlock()
	if ok {
		c.enqueue(frame)
	}
}

// register wires a client into the maps, replacing any stale connection for
// the same player.
func (b *Broker) register(c *Client) {
	b.mu.Lock()
	if old, ok := b.clients[c.PlayerID]; ok && old != c {
		old.closeAsync("superseded by a new connection")
		if subs, ok := b.roomSubs[old.RoomID]; ok {
			delete(subs, old.PlayerID)
		}
	}
	b.clients[c.PlayerID] = c
	subs, ok := b.roomSubs[c.RoomID]
	if !ok {
		subs = make(map[string]*Client)
		b.roomSubs[c.RoomID] = subs
	}
	subs[c.PlayerID] = c
	b.mu.Unlock()
	wsConnections.Inc()
}

// OnDisconnect marks the player disconnected in their room and starts the
// grace window. The seat is kept; only an explicit leave or grace expiry
// vacates it.
func (b *Broker) OnDisconnect(c *Client) {
	b.mu.Lock()
	current, ok := b.clients[c.PlayerID]
	if ok && current == c {
		delete(b.clients, c.PlayerID)
		if subs, ok := b.roomSubs[c.RoomID]; ok {
			delete(subs, c.PlayerID)
			if len(subs) == 0 {
				delete(b.roomSubs, c.RoomID)
			}
		}
	}
	b.mu.Unlock()
	wsConnections.Dec()
	if !ok || current != c {
		return
	}

	a, err := b.reg.Get(c.RoomID)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.opts.SubmitTimeout)
	defer cancel()
	if err := a.MarkDisconnected(ctx, c.PlayerID); err != nil {
		// Not found is normal here: the player already left the seat.
		if !errors.Is(err, domain.ErrNotFound) {
			logger.Warn("ws: mark disconnected failed", "room_id", c.RoomID, "player_id", c.PlayerID, "error", err)
		}
		return
	}
	logger.Info("ws: player disconnected", "room_id", c.RoomID, "player_id", c.PlayerID)
}

// resync catches a reconnecting client up: gapless replay from the ring when
// the client's last known version is close enough, otherwise the full
// redacted snapshot. Returns the version the client is caught up to; events
// broadcast concurrently sit in the client's backlog until endSync flushes
// everything newer than that.
func (b *Broker) resync(c *Client, sinceVersion int64, view *domain.GameState) int64 {
	if sinceVersion > 0 {
		if events, ok := b.ring(c.RoomID).since(sinceVersion); ok {
			for _, ev := range events {
				c.enqueueEvent(ev)
			}
			logger.Debug("ws: replayed events", "room_id", c.RoomID, "player_id", c.PlayerID,
				"since", sinceVersion, "count", len(events))
			if n := len(events); n > 0 {
				return events[n-1].Version()
			}
			return sinceVersion
		}
	}

	if frame, err := encodeSnapshot(view); err == nil {
		c.enqueue(frame)
	}
	return view.Version
}

func (b *Broker) ring(roomID string) *eventRing {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rings[roomID]
	if !ok {
		r = newEventRing(b.opts.Retention)
		b.rings[roomID] = r
	}
	return r
}

// DropRoom discards broker bookkeeping for a disbanded room.
func (b *Broker) DropRoom(roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.rings, roomID)
	delete(b.roomSubs, roomID)
}

// CloseAll tears every live connection down; part of process shutdown.
func (b *Broker) CloseAll() {
	b.mu.Lock()
	clients := make([]*Client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.Unlock()
	for _, c := range clients {
		c.closeAsync("server shutting down")
	}
}
