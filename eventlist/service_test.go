package eventlist

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cyp0633/eventcal/cache"
	"github.com/cyp0633/eventcal/event"
	"github.com/cyp0633/eventcal/internal/metrics"
	"github.com/cyp0633/eventcal/storage"
	"github.com/cyp0633/eventcal/storage/memory"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newMemoryCache(t *testing.T) *cache.MemoryStore {
	t.Helper()
	c, err := cache.NewMemoryStore(cache.Config{MaxEntries: 100})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func newTestService(t *testing.T, store storage.Store, now time.Time) (*Service, *fixedClock, *metrics.Metrics) {
	t.Helper()
	clock := &fixedClock{now: now}
	m := metrics.New(nil)
	svc := NewService(store, newMemoryCache(t), WithClock(clock.Now), WithMetrics(m))
	return svc, clock, m
}

func ids(list []event.Occurrence) []string {
	out := make([]string, 0, len(list))
	for _, o := range list {
		out = append(out, o.Event.ID)
	}
	return out
}

func starts(list []event.Occurrence) []string {
	out := make([]string, 0, len(list))
	for _, o := range list {
		out = append(out, o.Event.Start)
	}
	return out
}

func TestService_CacheDeterminism(t *testing.T) {
	store := &storage.MockStore{}
	store.SetupEvents([]event.Event{
		storage.NewMockRecurringEvent("1", "Standup", "2024-06-01 09:00:00", "2024-06-01 10:00:00", event.Daily, 0),
	})
	svc, clock, m := newTestService(t, store, time.Date(2024, 6, 15, 12, 7, 0, 0, time.UTC))
	ctx := context.Background()

	first, err := svc.List(ctx, DisplayArgs{}, storage.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2024-06-16 09:00:00",
		"2024-06-17 09:00:00",
		"2024-06-18 09:00:00",
		"2024-06-19 09:00:00",
		"2024-06-20 09:00:00",
	}, starts(first))

	clock.Set(time.Date(2024, 6, 15, 12, 14, 59, 0, time.UTC))
	second, err := svc.List(ctx, DisplayArgs{}, storage.Filter{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	store.AssertNumberOfCalls(t, "QueryEvents", 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("hit")))

	clock.Set(time.Date(2024, 6, 15, 12, 15, 0, 0, time.UTC))
	_, err = svc.List(ctx, DisplayArgs{}, storage.Filter{})
	require.NoError(t, err)
	store.AssertNumberOfCalls(t, "QueryEvents", 2)
}

func TestService_EmptyListIsCached(t *testing.T) {
	store := &storage.MockStore{}
	store.SetupEvents([]event.Event{})
	svc, _, _ := newTestService(t, store, time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		list, err := svc.List(ctx, DisplayArgs{}, storage.Filter{Status: "publish"})
		require.NoError(t, err)
		assert.Empty(t, list)
	}
	store.AssertNumberOfCalls(t, "QueryEvents", 1)
}

func TestService_Classification(t *testing.T) {
	store := &storage.MockStore{}
	store.SetupEvents([]event.Event{
		storage.NewMockEvent("past", "Past", "2024-06-10 09:00:00", "2024-06-10 10:00:00"),
		storage.NewMockEvent("running", "Running", "2024-06-15 11:00:00", "2024-06-15 13:00:00"),
		storage.NewMockEvent("now", "Starts now", "2024-06-15 12:00:00", "2024-06-15 12:30:00"),
		storage.NewMockEvent("later", "Later", "2024-06-20 09:00:00", "2024-06-20 10:00:00"),
	})
	svc, _, _ := newTestService(t, store, time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	tests := []struct {
		name    string
		display []string
		want    []string
	}{
		{"past", []string{DisplayPast}, []string{"past"}},
		{"upcoming", []string{DisplayUpcoming}, []string{"now", "later"}},
		{"in progress", []string{DisplayInProgress}, []string{"now", "running"}},
		{"upcoming and in progress listed once", []string{DisplayUpcoming, DisplayInProgress}, []string{"now", "running", "later"}},
		{"everything", []string{DisplayPast, DisplayUpcoming, DisplayInProgress}, []string{"past", "now", "running", "later"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := svc.List(ctx, DisplayArgs{Display: tt.display, Number: 10}, storage.Filter{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(list))
		})
	}
}

func TestService_OrderAndCap(t *testing.T) {
	store := &storage.MockStore{}
	store.SetupEvents([]event.Event{
		storage.NewMockRecurringEvent("1", "Daily", "2024-06-01 09:00:00", "2024-06-01 10:00:00", event.Daily, 0),
	})
	svc, _, m := newTestService(t, store, time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	list, err := svc.List(ctx, DisplayArgs{Order: "desc", Number: 250}, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, list, MaxNumber)
	for i := 1; i < len(list); i++ {
		assert.True(t, list[i-1].EndAt.After(list[i].EndAt))
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Truncations))
}

func TestService_PastListsKeepMostRecent(t *testing.T) {
	store := &storage.MockStore{}
	store.SetupEvents([]event.Event{
		storage.NewMockRecurringEvent("1", "Daily", "2022-01-01 09:00:00", "2022-01-01 10:00:00", event.Daily, 0),
	})
	svc, _, m := newTestService(t, store, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))

	list, err := svc.List(context.Background(), DisplayArgs{Display: []string{DisplayPast}, Order: OrderDesc}, storage.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2025-06-14 09:00:00",
		"2025-06-13 09:00:00",
		"2025-06-12 09:00:00",
		"2025-06-11 09:00:00",
		"2025-06-10 09:00:00",
	}, starts(list))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Truncations))
}

func TestService_SharedAssemblyReturnsCopies(t *testing.T) {
	release := make(chan time.Time)
	store := &storage.MockStore{}
	store.On("QueryEvents", mock.Anything, mock.Anything).WaitUntil(release).Return([]event.Event{
		storage.NewMockEvent("1", "Launch", "2024-06-20 09:00:00", "2024-06-20 10:00:00"),
	}, nil)
	svc, _, _ := newTestService(t, store, time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([][]event.Occurrence, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			list, err := svc.List(ctx, DisplayArgs{}, storage.Filter{})
			assert.NoError(t, err)
			results[i] = list
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Len(t, results[0], 1)
	require.Len(t, results[1], 1)
	results[0][0].Event.Title = "Changed"
	assert.Equal(t, "Launch", results[1][0].Event.Title)
	store.AssertNumberOfCalls(t, "QueryEvents", 1)
}

func TestService_DisplayOrderSharesCacheKey(t *testing.T) {
	store := &storage.MockStore{}
	store.SetupEvents([]event.Event{
		storage.NewMockEvent("1", "Launch", "2024-06-20 09:00:00", "2024-06-20 10:00:00"),
	})
	svc, _, _ := newTestService(t, store, time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for _, display := range [][]string{
		{DisplayPast, DisplayUpcoming},
		{DisplayUpcoming, DisplayPast},
		{"UPCOMING", "past", DisplayUpcoming},
	} {
		list, err := svc.List(ctx, DisplayArgs{Display: display}, storage.Filter{})
		require.NoError(t, err)
		assert.Equal(t, []string{"1"}, ids(list))
	}
	store.AssertNumberOfCalls(t, "QueryEvents", 1)
}

func TestService_DisplayZone(t *testing.T) {
	store := &storage.MockStore{}
	store.SetupEvents([]event.Event{
		storage.NewMockEvent("1", "Breakfast", "2024-06-15 10:00:00", "2024-06-15 11:00:00"),
	})
	svc, _, _ := newTestService(t, store, time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	list, err := svc.List(ctx, DisplayArgs{Timezone: "UTC"}, storage.Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = svc.List(ctx, DisplayArgs{Timezone: "America/New_York"}, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, time.Date(2024, 6, 15, 14, 0, 0, 0, time.UTC), list[0].StartAt)
}

func TestService_SkipsUnreadableEvents(t *testing.T) {
	store := &storage.MockStore{}
	store.SetupEvents([]event.Event{
		storage.NewMockEvent("bad", "Bad", "not a date", "2024-06-20 10:00:00"),
		storage.NewMockEvent("good", "Good", "2024-06-20 09:00:00", "2024-06-20 10:00:00"),
	})
	svc, _, _ := newTestService(t, store, time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC))

	list, err := svc.List(context.Background(), DisplayArgs{}, storage.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, ids(list))
}

func TestService_StorageErrorIsNotCached(t *testing.T) {
	store := &storage.MockStore{}
	store.On("QueryEvents", mock.Anything, mock.Anything).Return(nil, storage.ErrStorageUnavailable)
	svc, _, _ := newTestService(t, store, time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := svc.List(ctx, DisplayArgs{}, storage.Filter{})
	assert.ErrorIs(t, err, storage.ErrStorageUnavailable)
	_, err = svc.List(ctx, DisplayArgs{}, storage.Filter{})
	assert.ErrorIs(t, err, storage.ErrStorageUnavailable)
	store.AssertNumberOfCalls(t, "QueryEvents", 2)
}

func TestService_InvalidArgs(t *testing.T) {
	store := &storage.MockStore{}
	svc, _, _ := newTestService(t, store, time.Now())
	ctx := context.Background()

	for _, args := range []DisplayArgs{
		{Order: "SIDEWAYS"},
		{Display: []string{"someday"}},
		{Timezone: "Mars/Olympus_Mons"},
		{Spread: "a while"},
		{Number: -1},
		{StartOfWeek: 7},
	} {
		_, err := svc.List(ctx, args, storage.Filter{})
		assert.Error(t, err, "%+v", args)
	}
	store.AssertNotCalled(t, "QueryEvents", mock.Anything, mock.Anything)
}

func TestService_InvalidateOnChange(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	svc, _, m := newTestService(t, mem, time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC))
	store := storage.Observe(mem, svc.Listener())

	list, err := svc.List(ctx, DisplayArgs{}, storage.Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	ev := storage.NewMockEvent("1", "Launch", "2024-06-20 09:00:00", "2024-06-20 10:00:00")
	require.NoError(t, store.SaveEvent(ctx, &ev))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Invalidations))

	list, err = svc.List(ctx, DisplayArgs{}, storage.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(list))

	_, err = store.DeleteEvents(ctx, storage.Filter{IDs: []string{"1"}})
	require.NoError(t, err)
	list, err = svc.List(ctx, DisplayArgs{}, storage.Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestService_ConcurrentLists(t *testing.T) {
	store := &storage.MockStore{}
	store.SetupEvents([]event.Event{
		storage.NewMockRecurringEvent("1", "Weekly", "2024-06-03 09:00:00", "2024-06-03 10:00:00", event.Weekly, 0),
	})
	svc, _, _ := newTestService(t, store, time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([][]event.Occurrence, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			list, err := svc.List(ctx, DisplayArgs{}, storage.Filter{})
			assert.NoError(t, err)
			results[i] = list
		}(i)
	}
	wg.Wait()

	for _, list := range results {
		assert.Equal(t, starts(results[0]), starts(list))
	}
	assert.Equal(t, "2024-06-17 09:00:00", results[0][0].Event.Start)
}

func TestService_GetDefault(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, memory.New(), time.Now())

	ev := svc.Get(ctx, "missing")
	assert.True(t, ev.IsEmpty())
	assert.True(t, ev.IsAllDay())
}
