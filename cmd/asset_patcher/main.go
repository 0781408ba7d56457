package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/italolelis/asset_patcher/internal/cleanup"
	"github.com/italolelis/asset_patcher/internal/config"
	"github.com/italolelis/asset_patcher/internal/delivery/backends"
	"github.com/italolelis/asset_patcher/internal/history"
	"github.com/italolelis/asset_patcher/internal/http/rest"
	"github.com/italolelis/asset_patcher/internal/logctx"
	"github.com/italolelis/asset_patcher/internal/notifier"
	"github.com/italolelis/asset_patcher/internal/patch"
	"github.com/italolelis/asset_patcher/internal/storage/sqlite"
	"github.com/italolelis/asset_patcher/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var version = "dev"

var errShutdown = errors.New("service shutting down")

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	handler := logctx.NewTraceHandler(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("asset patcher starting...", "log_level", cfg.LogLevel, "version", version)

	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := tel.Shutdown(ctx); err != nil {
			logger.Error("failed to shutdown telemetry", "err", err)
		}
	}()

	// =========================================================================
	// Start Database
	database, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		logger.Error("DB error", "err", err)

		return err
	}
	defer database.Close()

	runs := sqlite.NewInstrumentedRunRepository(database, tel)

	// =========================================================================
	// Start Delivery Backend
	backend, err := backends.New(ctx, cfg, tel)
	if err != nil {
		return fmt.Errorf("failed to build delivery backend: %w", err)
	}

	// =========================================================================
	// Start Orchestrator
	// Observers outlive the signal context so the shutdown abort is still
	// persisted and announced.
	observerCtx := context.WithoutCancel(ctx)

	observers := patch.Observers{history.NewRecorder(observerCtx, runs)}

	var runNotifier *notifier.RunNotifier
	if cfg.DiscordWebhookURL != "" {
		runNotifier = notifier.NewRunNotifier(observerCtx, &notifier.DiscordNotifier{
			WebhookURL: cfg.DiscordWebhookURL,
			Client:     &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport), Timeout: 10 * time.Second},
		})
		observers = append(observers, runNotifier)
	}

	autoConfirmer := patch.NewAutoConfirmer(ctx)
	if cfg.AutoConfirm {
		observers = append(observers, autoConfirmer)
	}

	orchestrator := patch.NewOrchestrator(backend, cfg.Groups,
		patch.WithObserver(observers),
		patch.WithTelemetry(tel),
		patch.WithMaxParallel(cfg.MaxParallel),
	)
	autoConfirmer.Bind(orchestrator)

	// =========================================================================
	// Start API Service

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	server := setupServer(ctx, orchestrator, runs, tel, cfg)

	go func() {
		logger.Info("Initializing API support", "host", cfg.Web.BindAddress)
		serverErrors <- server.ListenAndServe()
	}()

	// =========================================================================
	// Start Cleanup
	setupCleanup(ctx, runs, cfg)

	// The patch screen checks for updates as soon as it opens.
	go func() {
		if _, err := orchestrator.Start(ctx); err != nil {
			logger.Warn("initial patch check failed", "err", err)
		}
	}()

	logger.Info("patch service ready",
		"backend", cfg.Backend,
		"groups", cfg.Groups,
		"tick_interval", cfg.TickInterval.String(),
		"auto_confirm", cfg.AutoConfirm,
	)

	// =========================================================================
	// Start Main Loop
	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-serverErrors:
			orchestrator.Abort(ctx, err)

			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
			logger.Info("start shutdown")

			orchestrator.Abort(context.WithoutCancel(ctx), errShutdown)

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Web.ShutdownTimeout)
			defer cancel()

			if err := server.Shutdown(ctx); err != nil {
				logger.Error("failed to gracefully shutdown the server", "err", err)

				if err = server.Close(); err != nil {
					return fmt.Errorf("could not stop server gracefully: %w", err)
				}
			}

			if runNotifier != nil {
				runNotifier.Wait()
			}

			return nil
		case <-ticker.C:
			tick(ctx, orchestrator, tel)
		}
	}
}

type runTicker interface {
	Tick(ctx context.Context) (patch.Snapshot, error)
}

// tick advances the current run, recovering from panics so one bad tick
// cannot take the service down.
func tick(ctx context.Context, orchestrator runTicker, tel *telemetry.Telemetry) {
	logger := logctx.LoggerFromContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("tick panicked", "panic", r)
			tel.RecordSystemError(ctx, "orchestrator", "panic")
		}
	}()

	if _, err := orchestrator.Tick(ctx); err != nil {
		logger.Debug("tick ended the run", "err", err)
	}
}

// setupServer prepares the handlers and services to create the http rest server.
func setupServer(
	ctx context.Context,
	orchestrator *patch.Orchestrator,
	runs *sqlite.InstrumentedRunRepository,
	tel *telemetry.Telemetry,
	cfg *config.Config,
) *http.Server {
	pHandler := rest.NewPatchHandler(cfg.API.Username, cfg.API.Password, orchestrator, runs)

	r := chi.NewRouter()
	r.Use(telemetry.RequestID)
	r.Use(telemetry.NewHTTPMiddleware(tel).Middleware)
	r.Use(telemetry.HTTPLogging)

	r.Handle("/metrics", tel.Handler())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Mount("/", pHandler.Routes())

	return &http.Server{
		Addr:         cfg.Web.BindAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      otelhttp.NewHandler(r, "patch_api"),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}

func setupCleanup(ctx context.Context, runs *sqlite.InstrumentedRunRepository, cfg *config.Config) {
	logger := logctx.LoggerFromContext(ctx)

	cleanupTicker := time.NewTicker(cfg.CleanupInterval)

	go func() {
		defer cleanupTicker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("cleanup goroutine shutting down.")

				return
			case now := <-cleanupTicker.C:
				if _, err := cleanup.DeleteExpiredRuns(ctx, runs, now, cfg.KeepHistoryFor); err != nil {
					logger.Error("failed to delete expired runs", "err", err)
				}

				if err := cleanup.DeleteStalePartials(ctx, cfg.CacheDir, now, cfg.KeepHistoryFor); err != nil {
					logger.Error("failed to delete stale partial downloads", "err", err)
				}
			}
		}
	}()
}
