package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lichviet/notify/internal/database"
	"github.com/lichviet/notify/internal/dispatch"
	"github.com/lichviet/notify/internal/push"
	"github.com/lichviet/notify/internal/store"
)

func setupTestServer(t *testing.T, cronToken string) *Server {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	pub, priv, err := push.GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}
	pushSvc := push.NewService(push.Config{VAPIDPublicKey: pub, VAPIDPrivateKey: priv})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := dispatch.NewRunner(
		store.NewPreferenceStore(db),
		store.NewSubscriptionStore(db),
		store.NewEventStore(db),
		store.NewNotificationLogStore(db),
		pushSvc,
		dispatch.Config{Workers: 1},
		logger,
	)

	return New(runner, pushSvc, cronToken, logger)
}

func TestCronEndpointRuns(t *testing.T) {
	srv := setupTestServer(t, "")

	req := httptest.NewRequest(http.MethodPost, "/api/cron/notify?hour=8&minute=0", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}

	var summary dispatch.Summary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Processed != 0 || summary.Sent != 0 || summary.Errors != 0 {
		t.Errorf("summary = %+v, want all zero on empty database", summary)
	}
}

func TestCronEndpointTokenAuth(t *testing.T) {
	srv := setupTestServer(t, "secret")
	router := srv.Router()

	req := httptest.NewRequest(http.MethodPost, "/api/cron/notify", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/cron/notify", nil)
	req.Header.Set("X-Cron-Token", "wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/cron/notify", nil)
	req.Header.Set("X-Cron-Token", "secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", rec.Code)
	}
}

func TestCronEndpointRejectsBadTime(t *testing.T) {
	srv := setupTestServer(t, "")
	router := srv.Router()

	for _, query := range []string{"hour=24&minute=0", "hour=8&minute=60", "hour=x&minute=0", "hour=8"} {
		req := httptest.NewRequest(http.MethodPost, "/api/cron/notify?"+query, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", query, rec.Code)
		}
	}
}

func TestVAPIDPublicKeyEndpoint(t *testing.T) {
	srv := setupTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/push/vapid-public-key", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["public_key"] == "" {
		t.Error("expected non-empty public key")
	}
}

func TestHealthz(t *testing.T) {
	srv := setupTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestMetricsExposed(t *testing.T) {
	srv := setupTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
