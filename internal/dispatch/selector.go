package dispatch

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lichviet/notify/internal/model"
	"github.com/lichviet/notify/internal/push"
)

// filterByCategories drops events whose category the user has toggled off.
func filterByCategories(pref model.NotificationPreference, events []model.Event) []model.Event {
	var kept []model.Event
	for _, e := range events {
		if pref.CategoryEnabled(e.EventType) {
			kept = append(kept, e)
		}
	}
	return kept
}

// notifiedToday reports whether the user already received a notification on
// the calendar day containing now. The comparison is by date, not exact
// timestamp, so a duplicate or delayed run on the same day is a no-op even
// when the minute differs from the earlier successful send.
func notifiedToday(pref model.NotificationPreference, now time.Time, loc *time.Location) bool {
	if pref.LastNotifiedAt == nil {
		return false
	}
	return sameCalendarDay(*pref.LastNotifiedAt, now, loc)
}

func sameCalendarDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// dayStart truncates now to midnight in the engine's location.
func dayStart(now time.Time, loc *time.Location) time.Time {
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// buildPayload constructs the push message summarizing the selected events.
func buildPayload(events []model.Event, now time.Time, loc *time.Location) push.Payload {
	p := push.Payload{
		Title: "Lunar Calendar Reminder",
		URL:   "/calendar",
		Tag:   "daily-" + now.In(loc).Format("2006-01-02"),
	}

	if len(events) == 1 {
		p.Body = describeEvent(events[0])
		return p
	}

	titles := make([]string, 0, 3)
	for _, e := range events {
		if len(titles) == 3 {
			break
		}
		titles = append(titles, e.Title)
	}
	p.Body = fmt.Sprintf("You have %d events today: %s", len(events), strings.Join(titles, ", "))
	if len(events) > 3 {
		p.Body += ", …"
	}
	return p
}

func describeEvent(e model.Event) string {
	body := e.Title
	if e.EventType == model.EventTypeAncestorWorship && e.AncestorName != "" {
		body = fmt.Sprintf("Ancestor worship: %s", e.AncestorName)
	}
	if e.LunarDay > 0 && e.LunarMonth > 0 {
		body += fmt.Sprintf(" (lunar %d/%d)", e.LunarDay, e.LunarMonth)
	}
	return body
}

// joinEventIDs renders the ids included in a payload for the audit row.
func joinEventIDs(events []model.Event) string {
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = strconv.FormatInt(e.ID, 10)
	}
	return strings.Join(ids, ",")
}
