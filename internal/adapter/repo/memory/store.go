package memory

import (
	"sort"
	"sync"

	"trackhistory/internal/domain/history"
)

type Store struct {
	mu     sync.RWMutex
	txMu   sync.Mutex
	events []history.Event
}

func NewStore() *Store {
	return &Store{}
}

// Seed appends events as if they had been recorded upstream.
func (s *Store) Seed(events ...history.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
}

// window returns the events of the selected devices inside [q.Start, q.End]
// preceded by the latest selected event before q.Start, when there is one.
func (s *Store) window(q history.Query) []history.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	selected := make(map[int64]bool, len(q.Devices))
	for _, id := range q.Devices {
		selected[id] = true
	}

	var out []history.Event
	carry, hasCarry := history.Event{}, false
	for _, evt := range s.events {
		if !selected[evt.DeviceID] {
			continue
		}
		switch {
		case evt.Timestamp < q.Start:
			if !hasCarry || evt.Timestamp >= carry.Timestamp {
				carry, hasCarry = evt, true
			}
		case evt.Timestamp <= q.End:
			out = append(out, evt)
		}
	}
	if hasCarry {
		out = append([]history.Event{carry}, out...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}
