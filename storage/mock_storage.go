package storage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/cyp0633/eventcal/event"
)

// MockStore implements the Store interface for testing
type MockStore struct {
	mock.Mock
}

// QueryEvents implements the Store interface
func (m *MockStore) QueryEvents(ctx context.Context, filter Filter) ([]event.Event, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]event.Event), args.Error(1)
}

// GetEvent implements the Store interface
func (m *MockStore) GetEvent(ctx context.Context, id string) (event.Event, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(event.Event), args.Error(1)
}

// SaveEvent implements the Store interface
func (m *MockStore) SaveEvent(ctx context.Context, ev *event.Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// DeleteEvents implements the Store interface
func (m *MockStore) DeleteEvents(ctx context.Context, filter Filter) ([]string, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// --- Helper methods for creating test data ---

// NewMockEvent creates a non-recurring floating test event
func NewMockEvent(id, title, start, end string) event.Event {
	return event.Event{
		ID:         id,
		ObjectID:   "post-" + id,
		ObjectType: "post",
		Title:      title,
		Status:     "publish",
		Start:      start,
		End:        end,
	}
}

// NewMockRecurringEvent creates a recurring floating test event
func NewMockRecurringEvent(id, title, start, end string, freq event.Recurrence, count int) event.Event {
	ev := NewMockEvent(id, title, start, end)
	ev.Recurrence = freq
	ev.RecurrenceCount = count
	return ev
}

// SetupEvents makes every QueryEvents call return events
func (m *MockStore) SetupEvents(events []event.Event) {
	m.On("QueryEvents", mock.Anything, mock.Anything).Return(events, nil)
}
