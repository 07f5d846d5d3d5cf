package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/jobtrack/internal/config"
	"github.com/dukerupert/jobtrack/internal/database"
	"github.com/dukerupert/jobtrack/internal/email"
	"github.com/dukerupert/jobtrack/internal/logging"
	"github.com/dukerupert/jobtrack/internal/queue"
	"github.com/dukerupert/jobtrack/internal/reminder"
	"github.com/dukerupert/jobtrack/internal/server"
	"github.com/dukerupert/jobtrack/internal/store"
	ws "github.com/dukerupert/jobtrack/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var sender email.Sender
	if cfg.Email.PostmarkToken != "" {
		sender = email.NewClient(cfg.Email.PostmarkToken, cfg.Email.From,
			email.WithRateLimit(cfg.Email.RatePerSec, 1))
	} else {
		logger.Warn("no Postmark token configured; emails will be logged only")
		sender = email.NewLogSender(logger.With("component", "email"))
	}

	q := queue.New(queue.Config{
		Workers:    cfg.Queue.Workers,
		QueueSize:  cfg.Queue.Size,
		MaxRetries: cfg.Queue.MaxRetries,
		RetryDelay: cfg.Queue.RetryDelay,
		Timeout:    cfg.Queue.Timeout,
	}, logger.With("component", "queue"))

	dispatcher, err := reminder.NewDispatcher(
		store.NewInterviewStore(db),
		store.NewDeliveryStore(db),
		sender,
		logger.With("component", "dispatcher"),
		reminder.WithLocation(cfg.Reminders.Location),
		reminder.WithBaseURL(cfg.BaseURL),
	)
	if err != nil {
		logger.Error("failed to create dispatcher", "error", err)
		os.Exit(1)
	}
	dispatchQueue := reminder.NewDispatchQueue(q, dispatcher, logger.With("component", "dispatch_queue"))

	scanner := reminder.NewScanner(
		store.NewPreferenceStore(db),
		store.NewInterviewStore(db),
		dispatchQueue,
		cfg.Reminders.Location,
		logger.With("component", "scanner"),
	)
	trigger, err := reminder.NewTrigger(scanner, cfg.Reminders.Schedule, cfg.Reminders.Location, logger.With("component", "trigger"))
	if err != nil {
		logger.Error("failed to create reminder trigger", "error", err)
		os.Exit(1)
	}

	hub := ws.NewHub(logger.With("component", "websocket"))
	srv := server.New(db, hub, trigger, dispatchQueue, q, server.Config{
		AdminTokenHash:    cfg.AdminTokenHash,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	}, logger)
	if cfg.AdminTokenHash == "" {
		logger.Warn("no admin token hash configured; /api routes will reject all requests")
	}

	q.OnEvent(srv.PublishQueueEvent)
	dispatchQueue.OnResult(srv.PublishResult)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	q.Start(ctx)
	trigger.Start(ctx)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Background cleanup goroutine
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup(10 * time.Minute)
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("jobtrack starting", "addr", ":"+cfg.Port, "schedule", cfg.Reminders.Schedule,
			"timezone", cfg.Reminders.Location.String())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	trigger.Stop(shutdownCtx)
	q.Stop(shutdownCtx)
	stop()
}
