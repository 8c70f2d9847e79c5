package ws

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"cardroom/internal/domain"
	"cardroom/internal/logger"
	"cardroom/internal/registry"
	"cardroom/internal/service"
)

// HandleWS upgrades an authenticated connection and attaches it to a room.
// A first connection joins the room; a returning player reconnects, is marked
// connected again and gets caught up via replay or snapshot. The optional
// "since" query carries the last version the client saw.
func HandleWS(reg *registry.Registry, broker *Broker) gin.HandlerFunc {
	allowedOrigin := os.Getenv("ALLOWED_ORIGIN")
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}

	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
			return
		}
		playerID, displayName, err := service.ParseJWT(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		roomID := c.Query("room")
		if roomID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "room required"})
			return
		}
		actor, err := reg.Get(roomID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		sinceVersion, _ := strconv.ParseInt(c.Query("since"), 10, 64)

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws: upgrade failed", "error", err)
			return
		}

		client := newClient(playerID, displayName, conn, actor, broker)
		go broker.attach(client, sinceVersion)
	}
}

// attach runs the join-or-reconnect handshake and then the client's pumps.
func (b *Broker) attach(c *Client, sinceVersion int64) {
	ctx, cancel := context.WithTimeout(context.Background(), b.opts.SubmitTimeout)
	defer cancel()

	state, err := c.actor.Snapshot(ctx, "")
	if err != nil {
		c.closeAsync("room unavailable")
		return
	}

	reconnect := false
	if p := state.FindPlayer(c.PlayerID); p != nil && p.Seated() {
		reconnect = true
	}

	// Register before touching the actor so the join's own broadcast (or any
	// concurrent action) already reaches this connection. Until endSync runs,
	// live broadcasts pile up in the client's backlog so the catch-up frames
	// always come first.
	c.beginSync()
	b.register(c)

	if reconnect {
		if err := c.actor.MarkConnected(ctx, c.PlayerID); err != nil {
			b.reject(c, encodeFailure(err), "reconnect failed")
			return
		}
	} else {
		if cur, err := b.reg.RoomOf(c.PlayerID); err == nil && cur != c.RoomID {
			b.reject(c, encodeError("already_in_room", "player already belongs to another room"), "join rejected")
			return
		}
		if _, err := c.actor.Submit(ctx, domain.NewJoin(c.PlayerID, c.DisplayName)); err != nil {
			b.reject(c, encodeFailure(err), "join rejected")
			return
		}
		if err := b.reg.BindPlayer(c.PlayerID, c.RoomID); err != nil {
			// Lost the binding race after the seat was taken; vacate it again.
			_, _ = c.actor.Submit(ctx, domain.NewLeave(c.PlayerID, false))
			b.reject(c, encodeError("already_in_room", err.Error()), "join rejected")
			return
		}
	}

	view, err := c.actor.Snapshot(ctx, c.PlayerID)
	if err != nil {
		c.closeAsync("room unavailable")
		b.OnDisconnect(c)
		return
	}
	welcome, err := encodeFrame(MsgWelcome, "", WelcomePayload{
		RoomID:   c.RoomID,
		PlayerID: c.PlayerID,
		Version:  view.Version,
	})
	if err == nil {
		c.enqueue(welcome)
	}

	if reconnect {
		c.endSync(b.resync(c, sinceVersion, view))
		logger.Info("ws: player reconnected", "room_id", c.RoomID, "player_id", c.PlayerID)
	} else {
		if frame, err := encodeSnapshot(view); err == nil {
			c.enqueue(frame)
		}
		c.endSync(view.Version)
		logger.Info("ws: player joined", "room_id", c.RoomID, "player_id", c.PlayerID)
	}

	c.run()
}

// reject delivers an error frame before the pumps start, then drops the
// half-attached client. The direct write is safe: the write pump is not
// running yet.
func (b *Broker) reject(c *Client, frame []byte, reason string) {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.TextMessage, frame)
	c.closeAsync(reason)
	b.OnDisconnect(c)
}
