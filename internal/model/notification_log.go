package model

import "time"

// Error class constants recorded on notification log rows.
const (
	ErrorClassOK        = "ok"
	ErrorClassGone      = "gone"
	ErrorClassTransient = "transient"
)

// NotificationLog is an append-only audit record, one per delivery attempt.
type NotificationLog struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	UserID     int64     `json:"user_id"`
	SentAt     time.Time `json:"sent_at"`
	Success    bool      `json:"success"`
	StatusCode int       `json:"status_code"`
	ErrorClass string    `json:"error_class"`
	Error      string    `json:"error,omitempty"`
	EventIDs   string    `json:"event_ids"` // comma-joined ids included in the payload
	Title      string    `json:"title"`
}
