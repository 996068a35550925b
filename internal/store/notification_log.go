package store

import (
	"database/sql"
	"fmt"

	"github.com/lichviet/notify/internal/model"
)

type NotificationLogStore struct {
	db *sql.DB
}

func NewNotificationLogStore(db *sql.DB) *NotificationLogStore {
	return &NotificationLogStore{db: db}
}

// Insert appends one audit row for a delivery attempt. Rows are never
// updated or deleted by the engine.
func (s *NotificationLogStore) Insert(entry model.NotificationLog) error {
	_, err := s.db.Exec(
		`INSERT INTO notification_logs (run_id, user_id, sent_at, success, status_code, error_class, error, event_ids, title)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID, entry.UserID, entry.SentAt.UTC(), boolToInt(entry.Success), entry.StatusCode,
		entry.ErrorClass, entry.Error, entry.EventIDs, entry.Title,
	)
	if err != nil {
		return fmt.Errorf("insert notification log: %w", err)
	}
	return nil
}

// ListByUser returns a user's delivery history, newest first.
func (s *NotificationLogStore) ListByUser(userID int64, limit int) ([]model.NotificationLog, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, run_id, user_id, sent_at, success, status_code, error_class, error, event_ids, title
		 FROM notification_logs WHERE user_id = ? ORDER BY sent_at DESC, id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notification logs: %w", err)
	}
	defer rows.Close()
	return scanLogs(rows)
}

// ListByRun returns every attempt recorded under one run id.
func (s *NotificationLogStore) ListByRun(runID string) ([]model.NotificationLog, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, user_id, sent_at, success, status_code, error_class, error, event_ids, title
		 FROM notification_logs WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list notification logs by run: %w", err)
	}
	defer rows.Close()
	return scanLogs(rows)
}

func (s *NotificationLogStore) CountByUser(userID int64) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM notification_logs WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count notification logs: %w", err)
	}
	return count, nil
}

func scanLogs(rows *sql.Rows) ([]model.NotificationLog, error) {
	var logs []model.NotificationLog
	for rows.Next() {
		var l model.NotificationLog
		var success int
		if err := rows.Scan(&l.ID, &l.RunID, &l.UserID, &l.SentAt, &success, &l.StatusCode,
			&l.ErrorClass, &l.Error, &l.EventIDs, &l.Title); err != nil {
			return nil, fmt.Errorf("scan notification log: %w", err)
		}
		l.Success = success != 0
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
