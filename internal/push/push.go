package push

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/lichviet/notify/internal/model"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrGone is returned when the push service reports the subscription as
// permanently invalid (404/410). The subscription row must be deleted.
var ErrGone = errors.New("push subscription gone")

// Outcome classifies a delivery attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeGone
	OutcomeTransient
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeGone:
		return "gone"
	default:
		return "transient"
	}
}

// ErrorClass maps the outcome to the audit log error class.
func (o Outcome) ErrorClass() string {
	switch o {
	case OutcomeSuccess:
		return model.ErrorClassOK
	case OutcomeGone:
		return model.ErrorClassGone
	default:
		return model.ErrorClassTransient
	}
}

// Result is the classified outcome of one delivery attempt. StatusCode is
// zero when the request never reached the push service.
type Result struct {
	Outcome    Outcome
	StatusCode int
	Err        error
}

// Payload is the JSON sent to the push service.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
	Badge int    `json:"badge,omitempty"`
}

// Config holds VAPID configuration.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
}

// Service sends web push notifications.
type Service struct {
	publicKey  string
	privateKey string
	subscriber string
}

// NewService creates a push service with VAPID keys. Subscriber is the
// mailto: contact sent to the push service with each request.
func NewService(cfg Config) *Service {
	subscriber := cfg.Subscriber
	if subscriber == "" {
		subscriber = "mailto:admin@lichviet.app"
	}
	return &Service{
		publicKey:  cfg.VAPIDPublicKey,
		privateKey: cfg.VAPIDPrivateKey,
		subscriber: subscriber,
	}
}

// VAPIDPublicKey returns the VAPID public key for client-side subscription.
func (s *Service) VAPIDPublicKey() string {
	return s.publicKey
}

// Send delivers one push message and classifies the result. The context
// bounds the network call; callers give each delivery its own timeout so a
// stuck endpoint cannot eat the whole batch budget.
func (s *Service) Send(ctx context.Context, sub *model.PushSubscription, payload Payload) Result {
	data, err := json.Marshal(payload)
	if err != nil {
		return Result{Outcome: OutcomeTransient, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		Subscriber:      s.subscriber,
		TTL:             86400,
	})
	if err != nil {
		return Result{Outcome: OutcomeTransient, Err: fmt.Errorf("send push: %w", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return Result{Outcome: OutcomeGone, StatusCode: resp.StatusCode, Err: ErrGone}
	case resp.StatusCode >= 400:
		// 429 and 5xx are retried naturally on the next scheduled run.
		return Result{
			Outcome:    OutcomeTransient,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("push service returned %d", resp.StatusCode),
		}
	default:
		return Result{Outcome: OutcomeSuccess, StatusCode: resp.StatusCode}
	}
}

// GenerateVAPIDKeys generates a new ECDSA P-256 key pair for VAPID.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate ECDSA key: %w", err)
	}

	pubBytes := elliptic.Marshal(elliptic.P256(), key.PublicKey.X, key.PublicKey.Y)
	publicKey = base64.RawURLEncoding.EncodeToString(pubBytes)
	privateKey = base64.RawURLEncoding.EncodeToString(key.D.Bytes())

	return publicKey, privateKey, nil
}
