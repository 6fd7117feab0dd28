package storage

import (
	"context"
	"errors"

	"github.com/samber/mo"

	"github.com/cyp0633/eventcal/event"
)

// Store connects your backend storage (e.g. database) with the event list.
// Date filtering is never pushed down: recurring events can only be placed
// in time after expansion.
type Store interface {
	// QueryEvents returns every event matching filter.
	QueryEvents(ctx context.Context, filter Filter) ([]event.Event, error)
	// GetEvent finds an event by id. Missing events return ErrNotFound.
	GetEvent(ctx context.Context, id string) (event.Event, error)
	// SaveEvent creates or updates an event. A new event gets its ID set.
	SaveEvent(ctx context.Context, ev *event.Event) error
	// DeleteEvents removes every event matching filter and returns their ids.
	DeleteEvents(ctx context.Context, filter Filter) ([]string, error)
}

var (
	// ErrNotFound is returned when a requested event doesn't exist
	ErrNotFound = errors.New("event not found")
	// ErrInvalidInput is returned when the input parameters are invalid
	ErrInvalidInput = errors.New("invalid input parameters")
	// ErrStorageUnavailable is returned when the storage backend is unavailable
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Find looks an event up by id; any lookup failure is reported as None.
func Find(ctx context.Context, s Store, id string) mo.Option[event.Event] {
	ev, err := s.GetEvent(ctx, id)
	if err != nil {
		return mo.None[event.Event]()
	}
	return mo.Some(ev)
}

// FindOrDefault is Find with the empty event sentinel as the fallback, so
// callers never handle a missing event specially.
func FindOrDefault(ctx context.Context, s Store, id string) event.Event {
	return Find(ctx, s, id).OrElse(event.Default())
}
