package storage

import (
	"strings"

	"github.com/cyp0633/eventcal/event"
)

// Filter selects events by their linkage and status. Empty fields match
// anything.
type Filter struct {
	IDs           []string `json:"ids,omitempty"`
	ObjectID      string   `json:"object_id,omitempty"`
	ObjectType    string   `json:"object_type,omitempty"`
	ObjectSubtype string   `json:"object_subtype,omitempty"`
	Status        string   `json:"status,omitempty"`
	// Search is a case-insensitive substring of title or content.
	Search string `json:"search,omitempty"`
}

// Matches reports whether ev satisfies every set field of f.
func (f Filter) Matches(ev event.Event) bool {
	if len(f.IDs) > 0 && !contains(f.IDs, ev.ID) {
		return false
	}
	if f.ObjectID != "" && f.ObjectID != ev.ObjectID {
		return false
	}
	if f.ObjectType != "" && f.ObjectType != ev.ObjectType {
		return false
	}
	if f.ObjectSubtype != "" && f.ObjectSubtype != ev.ObjectSubtype {
		return false
	}
	if f.Status != "" && f.Status != ev.Status {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(ev.Title), needle) &&
			!strings.Contains(strings.ToLower(ev.Content), needle) {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
