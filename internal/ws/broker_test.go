package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"cardroom/internal/domain"
	"cardroom/internal/registry"
	"cardroom/internal/repository"
)

func newTestBroker(t *testing.T) (*registry.Registry, *Broker) {
	t.Helper()
	reg := registry.New(repository.NewMemoryGateway(), nil, registry.Config{})
	b := NewBroker(reg, Options{})
	reg.SetBroadcaster(b)
	t.Cleanup(reg.Shutdown)
	return reg, b
}

// wsPair dials a real websocket against an in-process server and returns both
// ends, so client code paths run over an actual connection.
func wsPair(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	conns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			t.Error(err)
			return
		}
		conns <- conn
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	server = <-conns
	t.Cleanup(func() { _ = server.Close() })
	return server, client
}

// frameVersions drains the client's send buffer and returns the version of
// each queued event frame, in order.
func frameVersions(t *testing.T, ch chan []byte) []int64 {
	t.Helper()
	var out []int64
	for {
		select {
		case raw := <-ch:
			var m Message
			require.NoError(t, json.Unmarshal(raw, &m))
			require.Equal(t, MsgEvent, m.Type)
			var p struct {
				Version int64 `json:"version"`
			}
			require.NoError(t, json.Unmarshal(m.Payload, &p))
			out = append(out, p.Version)
		default:
			return out
		}
	}
}

func TestSyncGateKeepsStreamInVersionOrder(t *testing.T) {
	c := &Client{PlayerID: "p2", send: make(chan []byte, 8)}

	c.beginSync()
	c.deliver(turnEvent(6)) // live fan-out racing the catch-up
	c.deliver(turnEvent(5)) // already covered by the replay below
	c.enqueueEvent(turnEvent(4))
	c.enqueueEvent(turnEvent(5))
	c.endSync(5)
	c.deliver(turnEvent(7))

	require.Equal(t, []int64{4, 5, 6, 7}, frameVersions(t, c.send))
}

func TestLeaveOverSocketReleasesBinding(t *testing.T) {
	reg, b := newTestBroker(t)
	ctx := context.Background()

	a, err := reg.CreateRoom("p1", "solo", domain.DefaultSettings())
	require.NoError(t, err)
	_, err = a.Submit(ctx, domain.NewJoin("p1", "Alice"))
	require.NoError(t, err)
	require.NoError(t, reg.BindPlayer("p1", a.ID()))

	server, _ := wsPair(t)
	c := newClient("p1", "Alice", server, a, b)
	b.register(c)

	c.handleFrame([]byte(`{"type":"leave"}`))

	// The binding is released right away, not left to the idle sweep: the
	// player can join another room and the emptied room is disbanded.
	_, err = reg.RoomOf("p1")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = reg.Get(a.ID())
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, reg.BindPlayer("p1", "elsewhere"))
}

func TestAttachRejectsPlayerBoundToAnotherRoom(t *testing.T) {
	reg, b := newTestBroker(t)
	ctx := context.Background()

	first, err := reg.CreateRoom("p1", "first", domain.DefaultSettings())
	require.NoError(t, err)
	_, err = first.Submit(ctx, domain.NewJoin("p1", "Alice"))
	require.NoError(t, err)
	require.NoError(t, reg.BindPlayer("p1", first.ID()))

	second, err := reg.CreateRoom("p2", "second", domain.DefaultSettings())
	require.NoError(t, err)

	server, client := wsPair(t)
	c := newClient("p1", "Alice", server, second, b)
	go b.attach(c, 0)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := client.ReadMessage()
	require.NoError(t, err)
	var m Message
	require.NoError(t, json.Unmarshal(raw, &m))
	require.Equal(t, MsgError, m.Type)
	var p ErrorPayload
	require.NoError(t, json.Unmarshal(m.Payload, &p))
	require.Equal(t, "already_in_room", p.Code)

	// The join was never submitted, so no seat was taken in the second room.
	state, err := second.Snapshot(ctx, "")
	require.NoError(t, err)
	require.Nil(t, state.FindPlayer("p1"))
}
