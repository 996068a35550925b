package model

import "time"

type NotificationPreference struct {
	ID                    int64      `json:"id"`
	UserID                int64      `json:"user_id"`
	Enabled               bool       `json:"enabled"`
	NotificationTime      string     `json:"notification_time"` // "HH:MM", server-local
	PersonalEvents        bool       `json:"personal_events"`
	SharedEvents          bool       `json:"shared_events"`
	SystemEvents          bool       `json:"system_events"`
	AncestorWorshipEvents bool       `json:"ancestor_worship_events"`
	LastNotifiedAt        *time.Time `json:"last_notified_at"`
	BadgeCount            int        `json:"badge_count"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// CategoryEnabled reports whether the preference allows the given event type.
func (p *NotificationPreference) CategoryEnabled(eventType string) bool {
	switch eventType {
	case EventTypePersonal:
		return p.PersonalEvents
	case EventTypeShared:
		return p.SharedEvents
	case EventTypeSystem:
		return p.SystemEvents
	case EventTypeAncestorWorship:
		return p.AncestorWorshipEvents
	default:
		return false
	}
}
