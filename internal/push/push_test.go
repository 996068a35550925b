package push

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lichviet/notify/internal/model"
)

func testService(t *testing.T) *Service {
	t.Helper()
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}
	return NewService(Config{VAPIDPublicKey: pub, VAPIDPrivateKey: priv, Subscriber: "mailto:test@example.com"})
}

// testSubscription builds a subscription with valid key material pointing
// at the given endpoint, so payload encryption succeeds and the HTTP call
// actually goes out.
func testSubscription(t *testing.T, endpoint string) *model.PushSubscription {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate subscription key: %v", err)
	}
	p256dh := base64.RawURLEncoding.EncodeToString(elliptic.Marshal(elliptic.P256(), key.PublicKey.X, key.PublicKey.Y))

	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		t.Fatalf("generate auth secret: %v", err)
	}

	return &model.PushSubscription{
		UserID:    1,
		Endpoint:  endpoint,
		P256dhKey: p256dh,
		AuthKey:   base64.RawURLEncoding.EncodeToString(auth),
	}
}

func TestSendClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		want     Outcome
		wantErr  bool
		wantGone bool
	}{
		{"created", http.StatusCreated, OutcomeSuccess, false, false},
		{"ok", http.StatusOK, OutcomeSuccess, false, false},
		{"gone", http.StatusGone, OutcomeGone, true, true},
		{"not found", http.StatusNotFound, OutcomeGone, true, true},
		{"rate limited", http.StatusTooManyRequests, OutcomeTransient, true, false},
		{"server error", http.StatusInternalServerError, OutcomeTransient, true, false},
		{"bad request", http.StatusBadRequest, OutcomeTransient, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()

			svc := testService(t)
			sub := testSubscription(t, ts.URL)

			result := svc.Send(context.Background(), sub, Payload{Title: "Test", Body: "Body"})
			if result.Outcome != tt.want {
				t.Errorf("outcome = %v, want %v", result.Outcome, tt.want)
			}
			if result.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", result.StatusCode, tt.status)
			}
			if (result.Err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", result.Err, tt.wantErr)
			}
			if tt.wantGone && !errors.Is(result.Err, ErrGone) {
				t.Errorf("err = %v, want ErrGone", result.Err)
			}
		})
	}
}

func TestSendNetworkErrorIsTransient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close() // nothing listens anymore

	svc := testService(t)
	sub := testSubscription(t, url)

	result := svc.Send(context.Background(), sub, Payload{Title: "Test"})
	if result.Outcome != OutcomeTransient {
		t.Errorf("outcome = %v, want transient", result.Outcome)
	}
	if result.StatusCode != 0 {
		t.Errorf("status = %d, want 0 (request never reached a push service)", result.StatusCode)
	}
	if result.Err == nil {
		t.Error("expected a non-nil error")
	}
}

func TestSendHonorsContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	svc := testService(t)
	sub := testSubscription(t, ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	result := svc.Send(ctx, sub, Payload{Title: "Test"})
	if result.Outcome != OutcomeTransient {
		t.Errorf("outcome = %v, want transient on timeout", result.Outcome)
	}
}

func TestOutcomeErrorClass(t *testing.T) {
	if OutcomeSuccess.ErrorClass() != model.ErrorClassOK {
		t.Errorf("success class = %q", OutcomeSuccess.ErrorClass())
	}
	if OutcomeGone.ErrorClass() != model.ErrorClassGone {
		t.Errorf("gone class = %q", OutcomeGone.ErrorClass())
	}
	if OutcomeTransient.ErrorClass() != model.ErrorClassTransient {
		t.Errorf("transient class = %q", OutcomeTransient.ErrorClass())
	}
}

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}

	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) != 32 {
		t.Errorf("private key length = %d, want 32", len(privBytes))
	}

	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}
