package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lichviet/notify/internal/model"
)

type PreferenceStore struct {
	db *sql.DB
}

func NewPreferenceStore(db *sql.DB) *PreferenceStore {
	return &PreferenceStore{db: db}
}

const preferenceColumns = `id, user_id, enabled, notification_time, personal_events, shared_events,
	 system_events, ancestor_worship_events, last_notified_at, badge_count, created_at, updated_at`

// Set upserts the preference row for a user. Each user owns exactly one row.
func (s *PreferenceStore) Set(userID int64, enabled bool, notificationTime string, personal, shared, system, ancestor bool) (*model.NotificationPreference, error) {
	_, err := s.db.Exec(
		`INSERT INTO notification_preferences
		 (user_id, enabled, notification_time, personal_events, shared_events, system_events, ancestor_worship_events)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   enabled = excluded.enabled,
		   notification_time = excluded.notification_time,
		   personal_events = excluded.personal_events,
		   shared_events = excluded.shared_events,
		   system_events = excluded.system_events,
		   ancestor_worship_events = excluded.ancestor_worship_events,
		   updated_at = CURRENT_TIMESTAMP`,
		userID, boolToInt(enabled), notificationTime, boolToInt(personal), boolToInt(shared), boolToInt(system), boolToInt(ancestor),
	)
	if err != nil {
		return nil, fmt.Errorf("set notification preference: %w", err)
	}
	return s.GetByUser(userID)
}

func (s *PreferenceStore) GetByUser(userID int64) (*model.NotificationPreference, error) {
	row := s.db.QueryRow(
		`SELECT `+preferenceColumns+` FROM notification_preferences WHERE user_id = ?`, userID,
	)
	pref, err := scanPreference(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification preference: %w", err)
	}
	return pref, nil
}

// ListEnabled returns all preferences with enabled = true.
func (s *PreferenceStore) ListEnabled() ([]model.NotificationPreference, error) {
	rows, err := s.db.Query(
		`SELECT ` + preferenceColumns + ` FROM notification_preferences WHERE enabled = 1 ORDER BY user_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list enabled preferences: %w", err)
	}
	defer rows.Close()

	var prefs []model.NotificationPreference
	for rows.Next() {
		pref, err := scanPreference(rows)
		if err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		prefs = append(prefs, *pref)
	}
	return prefs, rows.Err()
}

// MarkNotified records a successful delivery: advances last_notified_at and
// adds the number of newly-notified events to the badge in a single update,
// so a concurrent badge clear cannot interleave mid-write.
func (s *PreferenceStore) MarkNotified(userID int64, at time.Time, newEvents int) error {
	_, err := s.db.Exec(
		`UPDATE notification_preferences
		 SET last_notified_at = ?, badge_count = badge_count + ?, updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ?`,
		at.UTC(), newEvents, userID,
	)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

// ClearBadge resets the badge counter. Invoked by the user-facing clear
// action, not by the dispatch engine.
func (s *PreferenceStore) ClearBadge(userID int64) error {
	_, err := s.db.Exec(
		`UPDATE notification_preferences SET badge_count = 0, updated_at = CURRENT_TIMESTAMP WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("clear badge: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPreference(row rowScanner) (*model.NotificationPreference, error) {
	var p model.NotificationPreference
	var enabled, personal, shared, system, ancestor int
	var lastNotified sql.NullTime

	err := row.Scan(&p.ID, &p.UserID, &enabled, &p.NotificationTime, &personal, &shared,
		&system, &ancestor, &lastNotified, &p.BadgeCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	p.Enabled = enabled != 0
	p.PersonalEvents = personal != 0
	p.SharedEvents = shared != 0
	p.SystemEvents = system != 0
	p.AncestorWorshipEvents = ancestor != 0
	if lastNotified.Valid {
		t := lastNotified.Time
		p.LastNotifiedAt = &t
	}
	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
