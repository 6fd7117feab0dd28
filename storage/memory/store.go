// memory based implementation for testing purposes
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/cyp0633/eventcal/event"
	"github.com/cyp0633/eventcal/storage"
)

// Store implements storage.Store interface using an in-memory map
type Store struct {
	mu     sync.RWMutex
	events map[string]event.Event
}

// New creates a new in-memory storage
func New() *Store {
	return &Store{
		events: make(map[string]event.Event),
	}
}

func clone(ev event.Event) event.Event {
	if ev.Meta != nil {
		meta := make(map[string]string, len(ev.Meta))
		for k, v := range ev.Meta {
			meta[k] = v
		}
		ev.Meta = meta
	}
	return ev
}

// QueryEvents returns matching events ordered by id
func (s *Store) QueryEvents(_ context.Context, filter storage.Filter) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []event.Event
	for _, ev := range s.events {
		if filter.Matches(ev) {
			out = append(out, clone(ev))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetEvent(_ context.Context, id string) (event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[id]
	if !ok {
		return event.Event{}, storage.ErrNotFound
	}
	return clone(ev), nil
}

func (s *Store) SaveEvent(_ context.Context, ev *event.Event) error {
	if ev == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	s.events[ev.ID] = clone(*ev)
	return nil
}

func (s *Store) DeleteEvents(_ context.Context, filter storage.Filter) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, ev := range s.events {
		if filter.Matches(ev) {
			ids = append(ids, id)
			delete(s.events, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
