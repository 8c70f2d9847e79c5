package ws

import (
	"sync"

	"cardroom/internal/domain"
)

// eventRing keeps the most recent events of one room so a briefly
// disconnected client can be caught up without a full snapshot. It is an
// optimization only: when the gap exceeds the retention window, the broker
// falls back to a snapshot, which is always sufficient.
type eventRing struct {
	mu  sync.Mutex
	buf []domain.Event
	max int
}

func newEventRing(max int) *eventRing {
	if max <= 0 {
		max = 256
	}
	return &eventRing{max: max}
}

func (r *eventRing) append(events ...domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, events...)
	n := len(r.buf) - r.max
	if n <= 0 {
		return
	}
	// Every event of one accepted action shares that action's version; the
	// group must be dropped whole, or a replay starting inside it would hand
	// the client a partial delta while still looking gapless.
	for n < len(r.buf) && r.buf[n].Version() == r.buf[n-1].Version() {
		n++
	}
	r.buf = append(r.buf[:0:0], r.buf[n:]...)
}

// since returns the buffered events with version > v, in order. ok is false
// when the ring no longer reaches back far enough to guarantee a gapless
// replay.
func (r *eventRing) since(v int64) (events []domain.Event, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buf) == 0 {
		return nil, false
	}
	if r.buf[0].Version() > v+1 {
		return nil, false
	}
	for _, ev := range r.buf {
		if ev.Version() > v {
			events = append(events, ev)
		}
	}
	return events, true
}
