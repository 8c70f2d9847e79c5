package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"cardroom/internal/domain"
	"cardroom/internal/logger"
	"cardroom/internal/room"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 30 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Client is one authenticated websocket bound to one room. The read pump
// decodes action envelopes and submits them to the room actor; the write pump
// is the only goroutine that touches the connection for writes.
type Client struct {
	PlayerID    string
	DisplayName string
	RoomID      string

	conn   *websocket.Conn
	send   chan []byte
	actor  *room.Actor
	broker *Broker
	done   chan struct{}

	// While the attach handshake replays history, live broadcasts are held in
	// backlog so the stream stays in version order across the boundary.
	mu      sync.Mutex
	syncing bool
	backlog []domain.Event
}

func newClient(playerID, displayName string, conn *websocket.Conn, a *room.Actor, b *Broker) *Client {
	return &Client{
		PlayerID:    playerID,
		DisplayName: displayName,
		RoomID:      a.ID(),
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		actor:       a,
		broker:      b,
		done:        make(chan struct{}),
	}
}

// run starts both pumps and blocks until the connection drops.
func (c *Client) run() {
	go c.writePump()
	c.readPump()
	<-c.done
}

func (c *Client) readPump() {
	defer func() {
		c.broker.OnDisconnect(c)
		_ = c.conn.Close()
		close(c.done)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("ws: read error", "player_id", c.PlayerID, "error", err)
			}
			return
		}
		c.handleFrame(raw)
	}
}

// handleFrame turns one inbound frame into an actor submission. The actor
// identity always comes from the verified token, never from the frame.
func (c *Client) handleFrame(raw []byte) {
	action, err := domain.DecodeAction(c.PlayerID, raw)
	if err != nil {
		c.enqueue(encodeError("bad_message", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.broker.opts.SubmitTimeout)
	defer cancel()
	events, err := c.actor.Submit(ctx, action)
	if err != nil {
		c.enqueue(encodeFailure(err))
		return
	}
	// Accepted events reach this client through the broadcast path, same as
	// every other subscriber, so the stream stays in version order.

	// A leave also releases the registry binding, mirroring the HTTP leave
	// endpoint: the player may join another room right away, and an emptied
	// room disbands now instead of waiting for the idle sweep.
	for _, ev := range events {
		if left, ok := ev.(domain.PlayerLeftEvent); ok && left.PlayerID == c.PlayerID {
			c.broker.reg.UnbindPlayer(c.PlayerID)
			c.broker.reg.DisbandIfEmpty(ctx, c.RoomID)
			c.closeAsync("left the room")
			return
		}
	}
}

// encodeFailure maps an actor error onto a client-facing error frame.
func encodeFailure(err error) []byte {
	var rv *domain.RuleViolationError
	switch {
	case errors.As(err, &rv):
		return encodeError(string(rv.Code), rv.Reason)
	case errors.Is(err, domain.ErrVersionConflict):
		return encodeError("version_conflict", "state changed underneath the action, retry")
	case errors.Is(err, domain.ErrRoomClosed):
		return encodeError("room_closed", "the room has been closed")
	case domain.IsStorageError(err):
		return encodeError("storage_unavailable", "the action could not be persisted, retry")
	default:
		return encodeError("internal", "the action could not be processed")
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// deliver encodes one broadcast event for this client and enqueues it. During
// the attach handshake the event is held back instead; endSync flushes it
// after the replay, so the client never observes versions out of order.
func (c *Client) deliver(ev domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.syncing {
		c.backlog = append(c.backlog, ev)
		return
	}
	c.enqueueEvent(ev)
}

// beginSync starts holding live broadcasts back. Must be called before the
// client is registered for fan-out.
func (c *Client) beginSync() {
	c.mu.Lock()
	c.syncing = true
	c.mu.Unlock()
}

// endSync flushes events broadcast during the handshake, skipping anything
// the replay or snapshot already covered, and resumes direct delivery.
func (c *Client) endSync(caughtUpTo int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ev := range c.backlog {
		if ev.Version() > caughtUpTo {
			c.enqueueEvent(ev)
		}
	}
	c.backlog = nil
	c.syncing = false
}

func (c *Client) enqueueEvent(ev domain.Event) {
	frame, err := encodeEvent(ev, c.PlayerID)
	if err != nil {
		logger.Error("ws: encode event failed", "kind", ev.Kind(), "error", err)
		return
	}
	c.enqueue(frame)
}

// enqueue drops the frame when the client's buffer is full rather than
// blocking the caller; a slow reader will be resynced on reconnect.
func (c *Client) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	default:
		logger.Warn("ws: send buffer full, dropping frame", "player_id", c.PlayerID, "room_id", c.RoomID)
	}
}

// closeAsync asks the peer to go away and tears the connection down.
// WriteControl is safe to call concurrently with the write pump.
func (c *Client) closeAsync(reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = c.conn.Close()
}
