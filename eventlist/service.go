// Package eventlist assembles cached lists of event occurrences: candidate
// events are fetched from storage, expanded over a window around now,
// classified as past, upcoming or in progress, then sorted by end time.
package eventlist

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/cyp0633/eventcal/cache"
	"github.com/cyp0633/eventcal/event"
	"github.com/cyp0633/eventcal/internal/log"
	"github.com/cyp0633/eventcal/internal/metrics"
	"github.com/cyp0633/eventcal/recurrence"
	"github.com/cyp0633/eventcal/storage"
	"github.com/cyp0633/eventcal/timezone"
)

// DefaultKeyPrefix namespaces list keys inside the cache store.
const DefaultKeyPrefix = "eventcal_list_"

// Service builds event lists. It is safe for concurrent use; concurrent
// misses on the same key share one assembly.
type Service struct {
	store   storage.Store
	cache   cache.Store
	group   singleflight.Group
	now     func() time.Time
	logger  logrus.FieldLogger
	metrics *metrics.Metrics
	prefix  string
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithKeyPrefix changes DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *Service) {
		s.prefix = prefix
	}
}

// NewService creates a list service reading events from store and caching
// lists in c.
func NewService(store storage.Store, c cache.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		cache:  c,
		now:    time.Now,
		logger: log.Discard(),
		prefix: DefaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	return s
}

// request is a fully resolved list call; its JSON form is the cache key.
type request struct {
	Args   DisplayArgs    `json:"args"`
	Filter storage.Filter `json:"filter"`
	Now    int64          `json:"now"`

	now    time.Time
	spread Span
}

func (s *Service) resolve(args DisplayArgs, filter storage.Filter) (request, error) {
	args = args.Normalize()
	if err := args.Validate(); err != nil {
		return request{}, fmt.Errorf("display args: %w", err)
	}
	// Both parse; Validate checked them.
	spread, _ := ParseSpan(args.Spread)
	expires, _ := ParseSpan(args.Expires)

	now := expires.Round(s.now())
	return request{
		Args:   args,
		Filter: filter,
		Now:    now.Unix(),
		now:    now,
		spread: spread,
	}, nil
}

// List returns the occurrences selected by args among the events matching
// filter. Calls with equal arguments inside one expiry bucket are served
// from the cache, including empty lists.
func (s *Service) List(ctx context.Context, args DisplayArgs, filter storage.Filter) ([]event.Occurrence, error) {
	req, err := s.resolve(args, filter)
	if err != nil {
		return nil, err
	}
	key, err := cache.Key(s.prefix, req)
	if err != nil {
		return nil, err
	}
	logger := s.logger.WithField("key", key)

	if list, ok := s.lookup(ctx, logger, key); ok {
		s.metrics.CacheHit()
		logger.Debug("event list cache hit")
		return list, nil
	}
	s.metrics.CacheMiss()
	logger.Debug("event list cache miss")

	v, err, _ := s.group.Do(key, func() (any, error) {
		list, err := s.assemble(ctx, logger, req)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(list)
		if err != nil {
			return nil, fmt.Errorf("encode event list: %w", err)
		}
		if err := s.cache.Set(ctx, key, payload); err != nil {
			logger.WithError(err).Warn("failed to cache event list")
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]event.Occurrence)), nil
}

func (s *Service) lookup(ctx context.Context, logger logrus.FieldLogger, key string) ([]event.Occurrence, bool) {
	payload, found, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.WithError(err).Warn("event list cache unavailable")
		return nil, false
	}
	if !found {
		return nil, false
	}
	var list []event.Occurrence
	if err := json.Unmarshal(payload, &list); err != nil {
		logger.WithError(err).Warn("discarding corrupt cached event list")
		return nil, false
	}
	return list, true
}

// window is the search range around now: back by the spread when past
// occurrences are wanted, forward by it when upcoming ones are.
func (r request) window() recurrence.Window {
	win := recurrence.Window{After: r.now, Before: r.now}
	if r.Args.Wants(DisplayPast) {
		win.After = r.spread.Before(r.now)
	}
	if r.Args.Wants(DisplayUpcoming) {
		win.Before = r.spread.After(r.now)
	}
	return win
}

// classify reports whether o falls in any requested class. Each
// occurrence is listed once even when it matches several.
func (r request) classify(o event.Occurrence) bool {
	return (r.Args.Wants(DisplayPast) && o.IsPast(r.now)) ||
		(r.Args.Wants(DisplayUpcoming) && o.IsUpcoming(r.now)) ||
		(r.Args.Wants(DisplayInProgress) && o.IsInProgress(r.now))
}

func (s *Service) assemble(ctx context.Context, logger logrus.FieldLogger, req request) ([]event.Occurrence, error) {
	started := time.Now()

	events, err := s.store.QueryEvents(ctx, req.Filter)
	if err != nil {
		logger.WithError(err).Error("failed to query events")
		return nil, fmt.Errorf("query events: %w", err)
	}

	engine := recurrence.NewEngineWithConfig(recurrence.EngineConfig{
		Location:  timezone.ZoneOrUTC(req.Args.Timezone),
		WeekStart: time.Weekday(req.Args.StartOfWeek),
		Pruning:   true,
	})
	win := req.window()
	expand := engine.Expand
	if !req.Args.Wants(DisplayUpcoming) {
		// The window ends at now, so the most recent steps are the ones
		// worth keeping under the ceiling.
		expand = engine.ExpandLatest
	}

	list := []event.Occurrence{}
	for _, ev := range events {
		if _, _, err := engine.Resolve(ev); err != nil {
			logger.WithError(err).WithField("event_id", ev.ID).Warn("skipping unreadable event")
			continue
		}
		res := expand(ev, win)
		if res.Truncated {
			s.metrics.Truncations.Inc()
			logger.WithFields(logrus.Fields{
				"event_id": ev.ID,
				"cap":      recurrence.MaxOccurrences,
			}).Warn("expansion truncated")
		}
		for _, o := range res.Occurrences {
			if !req.classify(o) {
				continue
			}
			o.StartAt = o.StartAt.UTC()
			o.EndAt = o.EndAt.UTC()
			list = append(list, o)
		}
	}
	s.metrics.ObserveAssembly(started, len(list))

	sortByEnd(list, req.Args.Order)
	if len(list) > req.Args.Number {
		list = list[:req.Args.Number]
	}
	return list, nil
}

func sortByEnd(list []event.Occurrence, order string) {
	less := func(a, b event.Occurrence) bool {
		if !a.EndAt.Equal(b.EndAt) {
			return a.EndAt.Before(b.EndAt)
		}
		if !a.StartAt.Equal(b.StartAt) {
			return a.StartAt.Before(b.StartAt)
		}
		return a.RecurrenceID < b.RecurrenceID
	}
	sort.SliceStable(list, func(i, j int) bool {
		if order == OrderDesc {
			return less(list[j], list[i])
		}
		return less(list[i], list[j])
	})
}

// Invalidate drops every cached list. Hook it to content changes with
// Listener.
func (s *Service) Invalidate(ctx context.Context) error {
	if err := s.cache.Flush(ctx); err != nil {
		return fmt.Errorf("flush event list cache: %w", err)
	}
	s.metrics.Invalidations.Inc()
	s.logger.Info("event list cache invalidated")
	return nil
}

// Listener adapts Invalidate for storage.Observe.
func (s *Service) Listener() storage.Listener {
	return func(ctx context.Context) {
		if err := s.Invalidate(ctx); err != nil {
			s.logger.WithError(err).Error("failed to invalidate event list cache")
		}
	}
}

// Get returns the stored event id, or the all-day default sentinel when it
// does not exist.
func (s *Service) Get(ctx context.Context, id string) event.Event {
	return storage.FindOrDefault(ctx, s.store, id)
}
