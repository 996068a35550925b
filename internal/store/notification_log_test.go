package store

import (
	"testing"
	"time"

	"github.com/lichviet/notify/internal/model"
)

func TestNotificationLogInsertAndList(t *testing.T) {
	db := openTestDB(t)
	ls := NewNotificationLogStore(db)
	uid := createTestUser(t, db, "a@example.com")

	first := model.NotificationLog{
		RunID:      "run-1",
		UserID:     uid,
		SentAt:     time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC),
		Success:    true,
		StatusCode: 201,
		ErrorClass: model.ErrorClassOK,
		EventIDs:   "1,2",
		Title:      "Lunar Calendar Reminder",
	}
	if err := ls.Insert(first); err != nil {
		t.Fatalf("insert log: %v", err)
	}

	second := model.NotificationLog{
		RunID:      "run-2",
		UserID:     uid,
		SentAt:     time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC),
		Success:    false,
		StatusCode: 503,
		ErrorClass: model.ErrorClassTransient,
		Error:      "push service returned 503",
	}
	if err := ls.Insert(second); err != nil {
		t.Fatalf("insert log: %v", err)
	}

	logs, err := ls.ListByUser(uid, 10)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("len = %d, want 2", len(logs))
	}
	// Newest first.
	if logs[0].RunID != "run-2" {
		t.Errorf("first entry run = %q, want run-2", logs[0].RunID)
	}
	if logs[0].Success || logs[0].ErrorClass != model.ErrorClassTransient {
		t.Errorf("failure entry = %+v", logs[0])
	}
	if !logs[1].Success || logs[1].EventIDs != "1,2" {
		t.Errorf("success entry = %+v", logs[1])
	}
}

func TestNotificationLogListByRun(t *testing.T) {
	db := openTestDB(t)
	ls := NewNotificationLogStore(db)
	uid := createTestUser(t, db, "a@example.com")
	other := createTestUser(t, db, "b@example.com")

	ls.Insert(model.NotificationLog{RunID: "run-1", UserID: uid, SentAt: time.Now(), Success: true, ErrorClass: model.ErrorClassOK})
	ls.Insert(model.NotificationLog{RunID: "run-1", UserID: other, SentAt: time.Now(), Success: true, ErrorClass: model.ErrorClassOK})
	ls.Insert(model.NotificationLog{RunID: "run-2", UserID: uid, SentAt: time.Now(), Success: true, ErrorClass: model.ErrorClassOK})

	logs, err := ls.ListByRun("run-1")
	if err != nil {
		t.Fatalf("list by run: %v", err)
	}
	if len(logs) != 2 {
		t.Errorf("len = %d, want 2", len(logs))
	}
}

func TestNotificationLogCount(t *testing.T) {
	db := openTestDB(t)
	ls := NewNotificationLogStore(db)
	uid := createTestUser(t, db, "a@example.com")

	count, err := ls.CountByUser(uid)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}

	ls.Insert(model.NotificationLog{RunID: "run-1", UserID: uid, SentAt: time.Now(), Success: true, ErrorClass: model.ErrorClassOK})

	count, _ = ls.CountByUser(uid)
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}
