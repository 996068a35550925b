package model

import "time"

// Event type constants
const (
	EventTypePersonal        = "personal"
	EventTypeShared          = "shared"
	EventTypeSystem          = "system"
	EventTypeAncestorWorship = "ancestor_worship"
)

// Event is a calendar event whose lunar recurrence has already been resolved
// to a concrete Gregorian occurrence date by the lunar-date library.
type Event struct {
	ID              int64     `json:"id"`
	OwnerID         *int64    `json:"owner_id"` // nil for system events
	Title           string    `json:"title"`
	EventType       string    `json:"event_type"`
	OccursOn        time.Time `json:"occurs_on"` // date of occurrence, midnight server-local
	LunarDay        int       `json:"lunar_day"`
	LunarMonth      int       `json:"lunar_month"`
	AncestorName    string    `json:"ancestor_name,omitempty"`
	AncestorPrecall string    `json:"ancestor_precall,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
