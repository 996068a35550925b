package server

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lichviet/notify/internal/dispatch"
	"github.com/lichviet/notify/internal/middleware"
	"github.com/lichviet/notify/internal/push"
)

// Server exposes the external trigger surface: the cron endpoint that runs
// one dispatch batch, plus health and metrics.
type Server struct {
	runner    *dispatch.Runner
	pushSvc   *push.Service
	cronToken string
	logger    *slog.Logger
}

func New(runner *dispatch.Runner, pushSvc *push.Service, cronToken string, logger *slog.Logger) *Server {
	return &Server{
		runner:    runner,
		pushSvc:   pushSvc,
		cronToken: cronToken,
		logger:    logger,
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/cron/notify", s.handleCron)
	mux.HandleFunc("GET /api/push/vapid-public-key", s.handleVAPIDKey)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return middleware.RequestLogger(s.logger)(mux)
}

// handleCron runs one batch. The external scheduler hits this endpoint on
// whatever cadence it likes; repeated or overlapping calls are safe because
// same-day dedup is durable, not in-process.
func (s *Server) handleCron(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid cron token"})
		return
	}

	hourStr := r.URL.Query().Get("hour")
	minuteStr := r.URL.Query().Get("minute")

	var summary dispatch.Summary
	var err error
	if hourStr == "" && minuteStr == "" {
		summary, err = s.runner.RunNow(r.Context())
	} else {
		hour, herr := strconv.Atoi(hourStr)
		minute, merr := strconv.Atoi(minuteStr)
		if herr != nil || merr != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "hour and minute must be a valid time of day"})
			return
		}
		summary, err = s.runner.Run(r.Context(), hour, minute)
	}
	if err != nil {
		// Whole-run failures (configuration, unreadable preferences) are
		// distinguishable from "ran but sent zero notifications".
		s.logger.Error("dispatch run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleVAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"public_key": s.pushSvc.VAPIDPublicKey()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) authorized(r *http.Request) bool {
	if s.cronToken == "" {
		return true
	}
	got := r.Header.Get("X-Cron-Token")
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.cronToken)) == 1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
