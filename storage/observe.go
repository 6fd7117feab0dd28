package storage

import (
	"context"

	"github.com/cyp0633/eventcal/event"
)

// Listener is told that stored events changed.
type Listener func(ctx context.Context)

type observed struct {
	Store
	listeners []Listener
}

// Observe wraps s so that every successful write notifies listeners, e.g.
// to drop cached event lists.
func Observe(s Store, listeners ...Listener) Store {
	return &observed{Store: s, listeners: listeners}
}

func (o *observed) notify(ctx context.Context) {
	for _, l := range o.listeners {
		l(ctx)
	}
}

func (o *observed) SaveEvent(ctx context.Context, ev *event.Event) error {
	if err := o.Store.SaveEvent(ctx, ev); err != nil {
		return err
	}
	o.notify(ctx)
	return nil
}

func (o *observed) DeleteEvents(ctx context.Context, filter Filter) ([]string, error) {
	ids, err := o.Store.DeleteEvents(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		o.notify(ctx)
	}
	return ids, nil
}
