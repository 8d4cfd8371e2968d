package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/schedpulse/schedpulse/internal/app"
	"github.com/schedpulse/schedpulse/internal/config"
	"github.com/schedpulse/schedpulse/internal/domain"
	"github.com/schedpulse/schedpulse/internal/logging"
	"github.com/schedpulse/schedpulse/internal/notify"
	"github.com/schedpulse/schedpulse/internal/offline"
	"github.com/schedpulse/schedpulse/internal/remote"
	"github.com/schedpulse/schedpulse/internal/schedule"
	"github.com/schedpulse/schedpulse/internal/server"
	syncfeed "github.com/schedpulse/schedpulse/internal/sync"
	"github.com/schedpulse/schedpulse/internal/userdata"
	"github.com/schedpulse/schedpulse/internal/websocket"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupUserData opens the durable local user-data view, falling back to an
// in-memory view when no data directory is configured or the store is broken.
func setupUserData(cfg *config.Config) (domain.UserDataStore, func()) {
	if cfg.DataDir == "" {
		slog.Info("No data directory configured, user data is in-memory only")
		return userdata.NewMemoryStore(), func() {}
	}

	store, err := userdata.Open(filepath.Join(cfg.DataDir, "userdata"))
	if err != nil {
		slog.Error("Could not open user data store, falling back to in-memory", "error", err)
		return userdata.NewMemoryStore(), func() {}
	}
	return store, func() {
		if err := store.Close(); err != nil {
			slog.Error("Failed to close user data store", "error", err)
		}
	}
}

func runGracefulShutdown(srv *server.Server, service *app.Service, hub *websocket.Hub, cancel context.CancelFunc, cleanup func()) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		// Stop background loops, wait for an in-flight replay, then close stores.
		cancel()
		service.Wait()
		hub.Stop()
		cleanup()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tokens := app.NewTokenStore()

	backend, err := remote.New(cfg.BackendURL, tokens)
	if err != nil {
		slog.Error("Failed to create backend client", "error", err)
		os.Exit(1)
	}

	// Local durable state: offline mutation queue and user-data view.
	var queueDir string
	if cfg.DataDir != "" {
		queueDir = filepath.Join(cfg.DataDir, "offline-queue")
	}
	queue := offline.NewManager(queueDir)
	local, closeLocal := setupUserData(cfg)

	hub := websocket.NewHub()
	notifier := notify.NewHubNotifier(hub)
	replayer := offline.NewReplayer(queue, backend, notifier)

	fetcher := schedule.NewFetcher(backend, clock, cfg.ScheduleRefresh)
	go fetcher.Run(ctx)

	reconciler := userdata.NewReconciler(local, backend, queue, hub, clock, cfg.ReconcileInterval)
	go reconciler.Start(ctx)

	service := app.NewService(tokens, backend, local, fetcher, queue, replayer, notifier)

	// Realtime feed from the backend, if configured: remote user-data changes
	// update the local view, schedule bumps trigger an early refresh.
	if cfg.SyncURL != "" {
		feed := syncfeed.NewClient(cfg.SyncURL, syncfeed.Handlers{
			OnUserData: func(data domain.UserData) {
				if pending, err := queue.Pending(); err == nil && len(pending) > 0 {
					slog.Debug("Ignoring remote user data, offline mutations pending")
					return
				}
				if err := local.ReplaceAll(data); err != nil {
					slog.Error("Failed to apply remote user data", "error", err)
					return
				}
				hub.PublishUserData(data)
			},
			OnScheduleChanged: func() {
				if err := fetcher.Refresh(ctx); err != nil {
					slog.Warn("Schedule refresh after change event failed", "error", err)
				}
			},
		})
		go feed.Run(ctx)
	}

	srv := server.NewServer(cfg, service, hub)

	cleanup := func() {
		closeLocal()
		if err := queue.Close(); err != nil {
			slog.Error("Failed to close offline queue", "error", err)
		}
	}
	done := runGracefulShutdown(srv, service, hub, cancel, cleanup)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
