package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/pauljones0/circular-deals-bot/internal/config"
	"github.com/pauljones0/circular-deals-bot/internal/logging"
	"github.com/pauljones0/circular-deals-bot/internal/notifier"
	"github.com/pauljones0/circular-deals-bot/internal/processor"
	"github.com/pauljones0/circular-deals-bot/internal/scraper"
	"github.com/pauljones0/circular-deals-bot/internal/storage"
	"github.com/pauljones0/circular-deals-bot/internal/util"
)

type Server struct {
	cfg          *config.Config
	locator      processor.StoreLocator
	stores       processor.StoreRepository
	orchestrator *processor.Orchestrator

	// Only one sync runs at a time; overlapping triggers join it.
	group singleflight.Group
}

func main() {
	slog.Info("Starting circular deals sync server...")
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	logCloser, err := logging.Setup(logging.Options{
		Level: cfg.LogLevel,
		JSON:  cfg.IsProduction(),
		File:  cfg.LogFile,
	})
	if err != nil {
		slog.Error("Critical error configuring logging", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	ctx := context.Background()
	store, err := storage.New(ctx, cfg.ProjectID)
	if err != nil {
		slog.Error("Critical error initializing Firestore client", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	startupRetry := util.RetryPolicy{Operation: "firestore ping", MaxRetries: 3, BaseDelay: time.Second}
	if err := startupRetry.Do(ctx, store.Ping); err != nil {
		slog.Error("Critical error reaching Firestore", "error", err)
		os.Exit(1)
	}

	sender, err := newSender(ctx, cfg)
	if err != nil {
		slog.Error("Critical error initializing Telegram client", "error", err)
		os.Exit(1)
	}

	dispatcher := notifier.NewDispatcher(sender, store, cfg.NotificationDelay)
	orchestrator := processor.New(scraper.New(cfg), store, store, dispatcher, processor.OptionsFromConfig(cfg))

	srv := &Server{
		cfg:          cfg,
		stores:       store,
		orchestrator: orchestrator,
	}
	if cfg.StoreLocatorURL != "" {
		srv.locator = scraper.NewStoreLocator(cfg.StoreLocatorURL, scraper.LoadConfig(), cfg.HTTPTimeout)
	}

	var scheduler *cron.Cron
	if cfg.SyncSchedule != "" {
		logger := cronLogger{}
		scheduler = cron.New(
			cron.WithLogger(logger),
			cron.WithChain(
				cron.Recover(logger),
				cron.SkipIfStillRunning(logger),
			),
		)
		if _, err := scheduler.AddFunc(cfg.SyncSchedule, func() {
			if err := srv.runSync(); err != nil {
				slog.Error("Scheduled sync failed", "error", err)
			}
		}); err != nil {
			slog.Error("Critical error parsing SYNC_SCHEDULE", "schedule", cfg.SyncSchedule, "error", err)
			os.Exit(1)
		}
		scheduler.Start()
		slog.Info("Scheduled sync enabled", "schedule", cfg.SyncSchedule)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", srv.SyncHandler)
	mux.HandleFunc("/sync", srv.SyncHandler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"status":"ok"}`)
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh
		slog.Info("Received signal, shutting down gracefully...", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if scheduler != nil {
			select {
			case <-scheduler.Stop().Done():
			case <-shutdownCtx.Done():
				slog.Warn("Scheduled sync still running at shutdown")
			}
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
	}()

	slog.Info("Listening on port", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Failed to listen and serve", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped.")
}

// newSender returns the Telegram client in production and a logging preview
// sender everywhere else.
func newSender(ctx context.Context, cfg *config.Config) (notifier.Sender, error) {
	if !cfg.IsProduction() || !cfg.NotificationsEnabled || cfg.TelegramBotToken == "" {
		slog.Info("Notifications will be previewed in the log", "environment", cfg.Environment)
		return notifier.PreviewSender{}, nil
	}

	var client *notifier.TelegramClient
	retry := util.RetryPolicy{Operation: "telegram getMe", MaxRetries: 3, BaseDelay: time.Second}
	err := retry.Do(ctx, func(context.Context) error {
		c, err := notifier.NewTelegramClient(cfg.TelegramBotToken)
		if err != nil {
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// runSync executes one sync job. Concurrent callers share the running job's
// result instead of starting a second one.
func (s *Server) runSync() error {
	_, err, shared := s.group.Do("sync", func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SyncTimeout)
		defer cancel()
		job := processor.NewSyncJob(s.locator, s.stores, s.orchestrator, s.cfg.StoreIDs)
		err := processor.Execute(ctx, job)
		return job.Summary(), err
	})
	if shared {
		slog.Info("Sync trigger joined a running sync")
	}
	return err
}

func (s *Server) SyncHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Run the sync asynchronously; a full cycle outlives any request timeout.
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Panic in sync", "panic", r)
			}
		}()
		if err := s.runSync(); err != nil {
			slog.Error("Error running sync", "error", err)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintln(w, "Catalog sync started.")
}

// cronLogger routes scheduler logs through slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
