package recurrence

import (
	"time"
)

// EngineConfig holds the read-only site preferences the engine expands with.
type EngineConfig struct {
	// Location is the zone floating and all-day boundaries are read in.
	// Nil means UTC.
	Location *time.Location

	// WeekStart anchors weekly steps with an interval above one and the
	// week view window.
	WeekStart time.Weekday

	// Pruning skips expansion of recurring events that provably cannot
	// reach a window.
	Pruning bool
}

// DefaultEngineConfig reads floating times as UTC with Monday weeks.
var DefaultEngineConfig = EngineConfig{
	Location:  time.UTC,
	WeekStart: time.Monday,
	Pruning:   true,
}

// NewEngineWithConfig creates a recurrence engine with custom configuration
func NewEngineWithConfig(config EngineConfig) *Engine {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.WeekStart < time.Sunday || config.WeekStart > time.Saturday {
		config.WeekStart = time.Monday
	}
	return &Engine{config: config}
}
