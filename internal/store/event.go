package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lichviet/notify/internal/model"
)

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

func (s *EventStore) Create(ownerID *int64, title, eventType string, occursOn time.Time, lunarDay, lunarMonth int, ancestorName, ancestorPrecall string) (*model.Event, error) {
	var owner sql.NullInt64
	if ownerID != nil {
		owner = sql.NullInt64{Int64: *ownerID, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO events (owner_id, title, event_type, occurs_on, lunar_day, lunar_month, ancestor_name, ancestor_precall)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		owner, title, eventType, occursOn.UTC(), lunarDay, lunarMonth, ancestorName, ancestorPrecall,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *EventStore) GetByID(id int64) (*model.Event, error) {
	row := s.db.QueryRow(
		`SELECT id, owner_id, title, event_type, occurs_on, lunar_day, lunar_month, ancestor_name, ancestor_precall, created_at
		 FROM events WHERE id = ?`, id,
	)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query event: %w", err)
	}
	return e, nil
}

// Share grants another user visibility of an event.
func (s *EventStore) Share(eventID, userID int64) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO event_shares (event_id, user_id) VALUES (?, ?)`,
		eventID, userID,
	)
	if err != nil {
		return fmt.Errorf("share event: %w", err)
	}
	return nil
}

// ListForUserOnDate returns every event visible to the user that occurs
// within the given window: events the user owns, events shared with them,
// and global system events. Occurrence dates are already resolved from any
// lunar recurrence rule before the rows are written.
func (s *EventStore) ListForUserOnDate(userID int64, dayStart time.Time, days int) ([]model.Event, error) {
	if days < 1 {
		days = 1
	}
	start := dayStart.UTC()
	end := start.AddDate(0, 0, days)

	rows, err := s.db.Query(
		`SELECT e.id, e.owner_id, e.title, e.event_type, e.occurs_on, e.lunar_day, e.lunar_month,
		        e.ancestor_name, e.ancestor_precall, e.created_at
		 FROM events e
		 LEFT JOIN event_shares es ON es.event_id = e.id AND es.user_id = ?
		 WHERE e.occurs_on >= ? AND e.occurs_on < ?
		   AND (e.owner_id = ? OR es.user_id IS NOT NULL OR e.event_type = 'system')
		 ORDER BY e.occurs_on, e.id`,
		userID, start, end, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events for user: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (s *EventStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

func scanEvent(row rowScanner) (*model.Event, error) {
	var e model.Event
	var owner sql.NullInt64

	err := row.Scan(&e.ID, &owner, &e.Title, &e.EventType, &e.OccursOn, &e.LunarDay, &e.LunarMonth,
		&e.AncestorName, &e.AncestorPrecall, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if owner.Valid {
		e.OwnerID = &owner.Int64
	}
	return &e, nil
}
