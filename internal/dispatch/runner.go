package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/lichviet/notify/internal/metrics"
	"github.com/lichviet/notify/internal/model"
	"github.com/lichviet/notify/internal/push"
)

// PreferenceStore is the slice of the persistence layer the runner reads
// preferences from and writes delivery state back to.
type PreferenceStore interface {
	ListEnabled() ([]model.NotificationPreference, error)
	MarkNotified(userID int64, at time.Time, newEvents int) error
}

// SubscriptionStore reads a user's subscription and removes it when the
// push service reports it gone.
type SubscriptionStore interface {
	GetByUser(userID int64) (*model.PushSubscription, error)
	DeleteByUser(userID int64) error
}

// EventSource supplies events already resolved to concrete occurrence
// dates. The runner performs no calendar-system math of its own.
type EventSource interface {
	ListForUserOnDate(userID int64, dayStart time.Time, days int) ([]model.Event, error)
}

// LogStore appends audit rows.
type LogStore interface {
	Insert(entry model.NotificationLog) error
}

// Sender delivers one push message and classifies the outcome.
type Sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload push.Payload) push.Result
}

// Summary aggregates one run.
type Summary struct {
	RunID     string `json:"run_id"`
	Processed int    `json:"processed"`
	Sent      int    `json:"notifications_sent"`
	Errors    int    `json:"errors"`
}

// Config tunes a Runner.
type Config struct {
	Workers       int           // bounded concurrency for per-user work
	RunDeadline   time.Duration // wall-clock budget for a whole run
	SendTimeout   time.Duration // per-delivery budget, shorter than RunDeadline
	LookaheadDays int           // event window length; 1 means "occurs today"
	Location      *time.Location
}

// Runner orchestrates one dispatch batch: match due users, select events,
// deliver, record state and audit rows. Per-user failures never abort the
// batch.
type Runner struct {
	prefs  PreferenceStore
	subs   SubscriptionStore
	events EventSource
	logs   LogStore
	sender Sender
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

func NewRunner(prefs PreferenceStore, subs SubscriptionStore, events EventSource, logs LogStore, sender Sender, cfg Config, logger *slog.Logger) *Runner {
	if cfg.Workers < 1 {
		cfg.Workers = 8
	}
	if cfg.RunDeadline <= 0 {
		cfg.RunDeadline = 50 * time.Second
	}
	if cfg.SendTimeout <= 0 || cfg.SendTimeout > cfg.RunDeadline {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.LookaheadDays < 1 {
		cfg.LookaheadDays = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Runner{
		prefs:  prefs,
		subs:   subs,
		events: events,
		logs:   logs,
		sender: sender,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// RunNow executes one batch for the current wall-clock minute.
func (r *Runner) RunNow(ctx context.Context) (Summary, error) {
	now := r.now().In(r.cfg.Location)
	return r.Run(ctx, now.Hour(), now.Minute())
}

// Run executes one batch for the given wall-clock hour and minute and
// returns the aggregate. Safe to invoke repeatedly, including overlapping
// invocations: same-day dedup rests on each user's durable last_notified_at
// date, not on in-process state.
func (r *Runner) Run(ctx context.Context, hour, minute int) (Summary, error) {
	runID := uuid.NewString()
	now := r.now()
	started := time.Now()
	metrics.RunsTotal.Inc()

	all, err := r.prefs.ListEnabled()
	if err != nil {
		return Summary{RunID: runID}, fmt.Errorf("list enabled preferences: %w", err)
	}

	due := MatchDue(all, hour, minute)
	summary := Summary{RunID: runID, Processed: len(due)}
	if len(due) == 0 {
		return summary, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.RunDeadline)
	defer cancel()

	var sent, errCount atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Workers)
	for _, pref := range due {
		// Deadline reached: stop starting new per-user work and return
		// the partial aggregate. Not an error.
		if ctx.Err() != nil {
			r.logger.Warn("run deadline reached, returning partial aggregate", "run_id", runID)
			break
		}
		g.Go(func() error {
			r.processUser(ctx, runID, pref, now, &sent, &errCount)
			return nil
		})
	}
	g.Wait()

	summary.Sent = int(sent.Load())
	summary.Errors = int(errCount.Load())
	metrics.UsersProcessed.Add(float64(summary.Processed))
	metrics.RunDuration.Observe(time.Since(started).Seconds())
	r.logger.Info("dispatch run finished",
		"run_id", runID,
		"processed", summary.Processed,
		"sent", summary.Sent,
		"errors", summary.Errors)
	return summary, nil
}

// processUser walks one user through the selector, delivery, state update
// and audit stages. Every failure is absorbed here.
func (r *Runner) processUser(ctx context.Context, runID string, pref model.NotificationPreference, now time.Time, sent, errCount *atomic.Int64) {
	log := r.logger.With("run_id", runID, "user_id", pref.UserID)

	defer func() {
		if rec := recover(); rec != nil {
			errCount.Add(1)
			log.Error("panic while processing user", "panic", rec)
		}
	}()

	if notifiedToday(pref, now, r.cfg.Location) {
		log.Debug("already notified today, skipping")
		return
	}

	sub, err := r.subs.GetByUser(pref.UserID)
	if err != nil {
		errCount.Add(1)
		log.Error("load subscription", "error", err)
		return
	}
	if sub == nil {
		// No subscription is "nothing to send", not an error. Happens
		// after a dead endpoint was cleaned up and before resubscribe.
		log.Debug("no push subscription, skipping")
		return
	}

	events, err := r.events.ListForUserOnDate(pref.UserID, dayStart(now, r.cfg.Location), r.cfg.LookaheadDays)
	if err != nil {
		errCount.Add(1)
		log.Error("load events", "error", err)
		return
	}

	selected := filterByCategories(pref, events)
	if len(selected) == 0 {
		// Normal outcome: no delivery attempt, no audit row.
		log.Debug("no notification-worthy events, skipping")
		return
	}

	payload := buildPayload(selected, now, r.cfg.Location)

	sendCtx, cancel := context.WithTimeout(ctx, r.cfg.SendTimeout)
	result := r.sender.Send(sendCtx, sub, payload)
	cancel()

	switch result.Outcome {
	case push.OutcomeSuccess:
		sent.Add(1)
		metrics.PushSent.Inc()
		if err := r.prefs.MarkNotified(pref.UserID, now, len(selected)); err != nil {
			// The push already went out; losing this write only risks a
			// duplicate on the next run's date check.
			log.Error("advance last_notified_at", "error", err)
		}
		log.Info("notification sent", "events", len(selected), "status", result.StatusCode)
	case push.OutcomeGone:
		errCount.Add(1)
		metrics.PushErrors.WithLabelValues("gone").Inc()
		if err := r.subs.DeleteByUser(pref.UserID); err != nil {
			log.Error("delete dead subscription", "error", err)
		}
		log.Info("subscription gone, removed", "status", result.StatusCode)
	default:
		errCount.Add(1)
		metrics.PushErrors.WithLabelValues("transient").Inc()
		log.Warn("transient delivery failure", "status", result.StatusCode, "error", result.Err)
	}

	r.recordAttempt(ctx, model.NotificationLog{
		RunID:      runID,
		UserID:     pref.UserID,
		SentAt:     now,
		Success:    result.Outcome == push.OutcomeSuccess,
		StatusCode: result.StatusCode,
		ErrorClass: result.Outcome.ErrorClass(),
		Error:      errString(result.Err),
		EventIDs:   joinEventIDs(selected),
		Title:      payload.Title,
	}, log)
}

// recordAttempt appends the audit row. Logging is best-effort observability:
// a failed insert is retried briefly, then dropped with a warning. It never
// rolls back the delivery or the state update.
func (r *Runner) recordAttempt(ctx context.Context, entry model.NotificationLog, log *slog.Logger) {
	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(50*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := r.logs.Insert(entry); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		log.Warn("drop audit log entry", "error", err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
