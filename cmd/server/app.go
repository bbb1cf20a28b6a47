package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/lumenlearn/lumen-api/internal/config"
	"github.com/lumenlearn/lumen-api/internal/dashboard"
	"github.com/lumenlearn/lumen-api/internal/delivery"
	"github.com/lumenlearn/lumen-api/internal/events"
	"github.com/lumenlearn/lumen-api/internal/jobs"
	"github.com/lumenlearn/lumen-api/internal/platform/postgres"
	"github.com/lumenlearn/lumen-api/internal/platform/providers"
	"github.com/lumenlearn/lumen-api/internal/queue"
	"github.com/lumenlearn/lumen-api/internal/service/auth"
	"github.com/lumenlearn/lumen-api/internal/singleflight"
)

// application holds the wired service graph: storage, the queue engine,
// delivery tracking, the dashboard and the HTTP server.
type application struct {
	cfg    *config.Config
	logger *slog.Logger

	db          *sql.DB
	redisClient *redis.Client

	manager    *queue.Manager
	tracker    *delivery.Tracker
	aggregator *dashboard.Aggregator
	jwtService auth.JWTService

	server *http.Server
}

// newApplication wires every component from configuration. Construction
// runs schema migrations but starts no workers; Run does that.
func newApplication(cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{cfg: cfg, logger: logger}

	if err := app.setupDatabase(); err != nil {
		return nil, err
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}
	app.jwtService = jwtService

	app.tracker = delivery.NewTracker(postgres.NewPostgresDeliveryStore(app.db, logger), logger)

	emitter := events.NewInMemoryEventEmitter(logger)
	registry := queue.NewRegistry()

	app.manager = queue.NewManager(
		postgres.NewPostgresJobStore(app.db, logger),
		registry,
		emitter,
		queue.ManagerConfig{
			StallCheckInterval: cfg.Queue.StallCheckInterval,
			StallThreshold:     cfg.Queue.StallThreshold,
			HeartbeatInterval:  cfg.Queue.HeartbeatInterval,
		},
		logger,
	)
	for _, qcfg := range jobs.QueueConfigs() {
		if err := app.manager.RegisterQueue(qcfg); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to register queue: %w", err)
		}
	}

	if err := app.registerJobHandlers(registry); err != nil {
		app.Close()
		return nil, err
	}

	app.aggregator = dashboard.NewAggregator(app.manager, cfg.Dashboard, logger)
	emitter.RegisterHandler(app.aggregator)

	app.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      app.setupRouter(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  time.Minute,
	}

	return app, nil
}

// setupDatabase opens the connection pool, verifies connectivity and
// applies pending schema migrations.
func (app *application) setupDatabase() error {
	db, err := sql.Open("pgx", app.cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if err := postgres.RunMigrations(ctx, db, app.logger); err != nil {
		_ = db.Close()
		return err
	}

	app.db = db
	return nil
}

// registerJobHandlers constructs the domain job handlers with their
// provider clients and wires them into the registry.
func (app *application) registerJobHandlers(registry *queue.Registry) error {
	sender, err := app.setupEmailSender()
	if err != nil {
		return err
	}
	renderer, err := app.setupCertificateRenderer()
	if err != nil {
		return err
	}
	transcoder, err := app.setupTranscodeProvider()
	if err != nil {
		return err
	}

	jobs.RegisterAll(registry,
		jobs.NewCertificateHandler(
			postgres.NewPostgresEnrollmentStore(app.db, app.logger),
			postgres.NewPostgresCertificateStore(app.db, app.logger),
			renderer,
			sender,
			app.logger,
		),
		jobs.NewEmailHandler(sender, app.tracker, app.logger),
		jobs.NewBulkEmailHandler(app.manager, app.logger),
		jobs.NewVideoHandler(
			postgres.NewPostgresVideoAssetStore(app.db, app.logger),
			transcoder,
			app.logger,
		),
		jobs.NewAnalyticsHandler(
			postgres.NewPostgresAnalyticsRepository(app.db, app.logger),
			app.setupLocker(),
			app.logger,
		),
	)
	return nil
}

func (app *application) setupEmailSender() (jobs.EmailSender, error) {
	if app.cfg.Providers.EmailBaseURL == "" {
		app.logger.Warn("no email provider configured, outbound email will only be logged")
		return providers.NewLogEmailSender(app.logger), nil
	}
	return providers.NewHTTPEmailSender(app.cfg.Providers, app.logger)
}

func (app *application) setupCertificateRenderer() (jobs.CertificateRenderer, error) {
	if app.cfg.Providers.RenderBaseURL == "" {
		app.logger.Warn("no render service configured, certificates will use local artifacts")
		return providers.NewLocalCertificateRenderer(app.logger), nil
	}
	return providers.NewHTTPCertificateRenderer(app.cfg.Providers, app.logger)
}

func (app *application) setupTranscodeProvider() (jobs.TranscodeProvider, error) {
	if app.cfg.Providers.TranscodeBaseURL == "" {
		app.logger.Warn("no transcode service configured, transcodes will only be logged")
		return providers.NewLogTranscodeProvider(app.logger), nil
	}
	return providers.NewHTTPTranscodeProvider(app.cfg.Providers, app.logger)
}

// setupLocker returns the cross-process advisory locker: Redis when
// configured, otherwise an in-process lock good for a single instance.
func (app *application) setupLocker() singleflight.Locker {
	if app.cfg.Redis.Addr == "" {
		app.logger.Info("no redis configured, using in-process locks")
		return singleflight.NewMemoryLocker()
	}

	app.redisClient = redis.NewClient(&redis.Options{
		Addr:     app.cfg.Redis.Addr,
		Password: app.cfg.Redis.Password,
		DB:       app.cfg.Redis.DB,
	})
	return singleflight.NewRedisLocker(app.redisClient, "lumen")
}

// Run starts the queue engine and the HTTP server, then blocks until the
// context is cancelled or the server fails.
func (app *application) Run(ctx context.Context) error {
	if err := app.manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start queue manager: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("http server listening", slog.String("addr", app.server.Addr))
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		app.shutdown()
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		app.logger.Info("shutdown signal received")
		app.shutdown()
		return nil
	}
}

// shutdown stops the HTTP server first so no new jobs arrive, then drains
// the queue engine within the configured grace period.
func (app *application) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("http server shutdown failed", "error", err)
	}
	if err := app.manager.Shutdown(ctx); err != nil {
		app.logger.Error("queue manager shutdown incomplete", "error", err)
	}
}

// Close releases connections. Safe to call on a partially constructed
// application.
func (app *application) Close() {
	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			app.logger.Error("failed to close redis client", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database", "error", err)
		}
	}
}
