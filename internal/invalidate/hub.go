package invalidate

import (
	"sync"
	"time"
)

// Event is pushed to live listeners of a round.
type Event struct {
	RoundID    int64     `json:"round_id"`
	Generation uint64    `json:"generation"`
	At         time.Time `json:"at"`
}

// Hub fans events out to per-round subscribers. Slow subscribers miss events
// rather than block the publisher.
type Hub struct {
	mu   sync.RWMutex
	subs map[int64]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int64]map[chan Event]struct{})}
}

// Subscribe returns a channel of events for roundID and a func that releases it.
func (h *Hub) Subscribe(roundID int64) (<-chan Event, func()) {
	ch := make(chan Event, 4)
	h.mu.Lock()
	set := h.subs[roundID]
	if set == nil {
		set = make(map[chan Event]struct{})
		h.subs[roundID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[roundID], ch)
			if len(h.subs[roundID]) == 0 {
				delete(h.subs, roundID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[ev.RoundID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Listeners reports the number of subscribers for roundID.
func (h *Hub) Listeners(roundID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[roundID])
}
