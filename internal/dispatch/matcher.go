package dispatch

import (
	"fmt"

	"github.com/lichviet/notify/internal/model"
)

// MatchDue returns the preferences that are due at the given wall-clock
// minute: enabled, with notification_time equal to "HH:MM" exactly. The
// match is a pure filter with no side effects; repeat-delivery protection
// for the same calendar day lives in the selector, not here.
func MatchDue(prefs []model.NotificationPreference, hour, minute int) []model.NotificationPreference {
	want := fmt.Sprintf("%02d:%02d", hour, minute)

	var due []model.NotificationPreference
	for _, p := range prefs {
		if !p.Enabled {
			continue
		}
		if p.NotificationTime != want {
			continue
		}
		due = append(due, p)
	}
	return due
}
