package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lichviet/notify/internal/config"
	"github.com/lichviet/notify/internal/database"
	"github.com/lichviet/notify/internal/dispatch"
	"github.com/lichviet/notify/internal/logging"
	"github.com/lichviet/notify/internal/push"
	"github.com/lichviet/notify/internal/server"
	"github.com/lichviet/notify/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	serve := flag.Bool("serve", false, "run the HTTP trigger server instead of a one-shot batch")
	genKeys := flag.Bool("genkeys", false, "generate a VAPID key pair and exit")
	flag.Parse()

	if *genKeys {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			log.Fatalf("generate VAPID keys: %v", err)
		}
		fmt.Printf("NOTIFY_VAPID_PUBLIC_KEY=%s\nNOTIFY_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup(cfg.LogLevel)

	// Missing delivery credentials make every send impossible; fail before
	// touching any user.
	if err := cfg.Validate(); err != nil {
		log.Fatalf("configuration: %v", err)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	pushSvc := push.NewService(push.Config{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		Subscriber:      cfg.Subscriber,
	})

	runner := dispatch.NewRunner(
		store.NewPreferenceStore(db),
		store.NewSubscriptionStore(db),
		store.NewEventStore(db),
		store.NewNotificationLogStore(db),
		pushSvc,
		dispatch.Config{
			Workers:     cfg.Workers,
			RunDeadline: cfg.RunDeadline,
			SendTimeout: cfg.SendTimeout,
		},
		logger.With("component", "dispatch"),
	)

	if !*serve {
		summary, err := runner.RunNow(context.Background())
		if err != nil {
			log.Fatalf("dispatch run: %v", err)
		}
		fmt.Printf("processed=%d sent=%d errors=%d\n", summary.Processed, summary.Sent, summary.Errors)
		return
	}

	srv := server.New(runner, pushSvc, cfg.CronToken, logger.With("component", "server"))
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.RunDeadline + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("notifier trigger server running", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
