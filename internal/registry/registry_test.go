package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cardroom/internal/domain"
	"cardroom/internal/repository"
)

func newTestRegistry(t *testing.T, cfg Config) *Registry {
	t.Helper()
	r := New(repository.NewMemoryGateway(), nil, cfg)
	t.Cleanup(r.Shutdown)
	return r
}

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

func TestCreateAndResolveRoom(t *testing.T) {
	r := newTestRegistry(t, Config{})
	c := ctx(t)

	a, err := r.CreateRoom("p1", "test room", domain.DefaultSettings())
	require.NoError(t, err)
	require.Equal(t, "p1", a.OwnerID())

	got, err := r.Get(a.ID())
	require.NoError(t, err)
	require.Same(t, a, got)

	_, err = r.Get("no-such-room")
	require.ErrorIs(t, err, domain.ErrNotFound)

	infos := r.List(c)
	require.Len(t, infos, 1)
	require.Equal(t, a.ID(), infos[0].ID)
	require.Equal(t, "test room", infos[0].Name)
	require.Equal(t, domain.PhaseWaiting, infos[0].Phase)
}

func TestPlayerBelongsToOneRoom(t *testing.T) {
	r := newTestRegistry(t, Config{})

	a1, err := r.CreateRoom("p1", "one", domain.DefaultSettings())
	require.NoError(t, err)
	a2, err := r.CreateRoom("p9", "two", domain.DefaultSettings())
	require.NoError(t, err)

	require.NoError(t, r.BindPlayer("p1", a1.ID()))
	require.NoError(t, r.BindPlayer("p1", a1.ID())) // idempotent
	require.Error(t, r.BindPlayer("p1", a2.ID()))

	roomID, err := r.RoomOf("p1")
	require.NoError(t, err)
	require.Equal(t, a1.ID(), roomID)

	r.UnbindPlayer("p1")
	_, err = r.RoomOf("p1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRemovePlayerDisbandsEmptyRoom(t *testing.T) {
	r := newTestRegistry(t, Config{})
	c := ctx(t)

	a, err := r.CreateRoom("p1", "", domain.DefaultSettings())
	require.NoError(t, err)

	_, err = a.Submit(c, domain.NewJoin("p1", "A"))
	require.NoError(t, err)
	require.NoError(t, r.BindPlayer("p1", a.ID()))

	require.NoError(t, r.RemovePlayer(c, "p1"))

	_, err = r.RoomOf("p1")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = r.Get(a.ID())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSweepExpiresGraceAndLeaves(t *testing.T) {
	r := newTestRegistry(t, Config{GracePeriod: time.Millisecond})
	c := ctx(t)

	a, err := r.CreateRoom("p1", "", domain.DefaultSettings())
	require.NoError(t, err)
	for _, pid := range []string{"p1", "p2"} {
		_, err = a.Submit(c, domain.NewJoin(pid, pid))
		require.NoError(t, err)
		require.NoError(t, r.BindPlayer(pid, a.ID()))
	}

	require.NoError(t, a.MarkDisconnected(c, "p2"))
	time.Sleep(5 * time.Millisecond)

	r.Sweep(c)

	// p2's seat was vacated and the binding cleared; p1 keeps the room alive.
	_, err = r.RoomOf("p2")
	require.ErrorIs(t, err, domain.ErrNotFound)
	got, err := r.Get(a.ID())
	require.NoError(t, err)

	s, err := got.Snapshot(c, "")
	require.NoError(t, err)
	require.Equal(t, domain.ConnStateLeft, s.Players[1].ConnectionState)
	require.Equal(t, int64(3), s.Version) // two joins + the forced leave
}

func TestSweepDisbandsIdleRoom(t *testing.T) {
	r := newTestRegistry(t, Config{IdleTimeout: time.Millisecond})
	c := ctx(t)

	a, err := r.CreateRoom("p1", "", domain.DefaultSettings())
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	r.Sweep(c)

	_, err = r.Get(a.ID())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestShutdownClosesRooms(t *testing.T) {
	r := New(repository.NewMemoryGateway(), nil, Config{})

	a, err := r.CreateRoom("p1", "", domain.DefaultSettings())
	require.NoError(t, err)

	r.Shutdown()

	_, err = r.Get(a.ID())
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = a.Submit(context.Background(), domain.NewJoin("p1", "A"))
	require.ErrorIs(t, err, domain.ErrRoomClosed)

	_, err = r.CreateRoom("p2", "", domain.DefaultSettings())
	require.ErrorIs(t, err, domain.ErrRoomClosed)
}
