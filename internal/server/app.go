// Package server builds the CMS dependency graph from configuration and runs
// the HTTP server until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/magazine-cms/internal/api"
	"github.com/JakeFAU/magazine-cms/internal/auth"
	"github.com/JakeFAU/magazine-cms/internal/cache"
	"github.com/JakeFAU/magazine-cms/internal/clock/system"
	"github.com/JakeFAU/magazine-cms/internal/config"
	"github.com/JakeFAU/magazine-cms/internal/content"
	"github.com/JakeFAU/magazine-cms/internal/detector"
	"github.com/JakeFAU/magazine-cms/internal/id/uuid"
	"github.com/JakeFAU/magazine-cms/internal/logging"
	"github.com/JakeFAU/magazine-cms/internal/opengraph"
	memorypublisher "github.com/JakeFAU/magazine-cms/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/magazine-cms/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/magazine-cms/internal/storage/gcs"
	localstorage "github.com/JakeFAU/magazine-cms/internal/storage/local"
	memorystorage "github.com/JakeFAU/magazine-cms/internal/storage/memory"
	pgstore "github.com/JakeFAU/magazine-cms/internal/storage/postgres"
	s3storage "github.com/JakeFAU/magazine-cms/internal/storage/s3"
	"github.com/JakeFAU/magazine-cms/internal/telemetry"
)

// contentStore is satisfied by both the Postgres and the in-memory store.
type contentStore interface {
	content.ArticleStore
	content.CategoryStore
	content.AdminStore
}

// App contains the application's dependencies.
type App struct {
	cfg             *config.Config
	logger          *zap.Logger
	apiServer       *api.Server
	pubsubClient    *pubsub.Client
	pubsubPublisher *gcppublisher.Publisher
	storage         *storage.Client
	pgStore         *pgstore.Store
	stopDetector    func() error
	tracerShutdown  telemetry.ShutdownFunc
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) *App {
	logger.Info("creating application",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("environment", cfg.Environment.Name),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("auth_enabled", cfg.Auth.Enabled),
	)
	return &App{cfg: cfg, logger: logger}
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the HTTP server and blocks until the context is canceled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close(shutdownCtx)
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) error {
	a.closeInfrastructure()
	a.closeObservability(ctx)
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure() {
	if a.stopDetector != nil {
		if err := a.stopDetector(); err != nil {
			a.logger.Warn("crawler signature watcher close failed", zap.Error(err))
		}
	}
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
}

func (a *App) closeObservability(ctx context.Context) {
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// NewLogger builds the root logger for cfg and installs it globally.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Telemetry.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := NewApp(cfg, logger)

	_, shutdown, err := telemetry.InitTracerProvider(ctx, cfg.Telemetry, cfg.Environment.Name)
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	app.tracerShutdown = shutdown

	app.logger.Info("building application dependencies")
	clock := system.New()

	blobs, err := setupStorage(ctx, app)
	if err != nil {
		return nil, err
	}
	store, err := setupDatabase(ctx, app)
	if err != nil {
		return nil, err
	}
	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		return nil, err
	}
	authenticator, verifier, err := setupAuth(app)
	if err != nil {
		return nil, err
	}
	classifier, err := setupDetector(app)
	if err != nil {
		return nil, err
	}

	responseCache, err := cache.New(cfg.CacheTTL(), cfg.Cache.MaxEntries, clock)
	if err != nil {
		return nil, fmt.Errorf("cache init failed: %w", err)
	}
	site := opengraph.Site{
		BaseURL:       cfg.Site.BaseURL,
		Name:          cfg.Site.Name,
		Locale:        cfg.Site.Locale,
		FallbackImage: cfg.Site.FallbackImage,
	}

	deps := api.Dependencies{
		Articles:   store,
		Categories: store,
		Admins:     store,
		Blobs:      blobs,
		Publisher:  publisher,
		Cache:      responseCache,
		Responder:  opengraph.NewResponder(classifier, store, responseCache, site, logger.Named("opengraph")),
		Names:      uuid.New(),
		Clock:      clock,
	}
	if reader, ok := blobs.(content.ObjectReader); ok {
		deps.Objects = reader
	}
	if authenticator != nil {
		deps.Authenticator = authenticator
	}
	if verifier != nil {
		deps.Verifier = verifier
	}
	app.apiServer = api.NewServer(deps, *cfg, logger.Named("api"))
	return app, nil
}

func setupStorage(ctx context.Context, app *App) (content.BlobStore, error) {
	cfg := app.cfg.Storage
	switch cfg.Backend {
	case "gcs":
		app.logger.Info("using GCS storage backend", zap.String("bucket", cfg.Bucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storage = client
		blobs, err := gcsstorage.New(client, gcsstorage.Config{Bucket: cfg.Bucket, PublicBaseURL: cfg.PublicBaseURL})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		return blobs, nil
	case "s3":
		app.logger.Info("using S3 storage backend",
			zap.String("endpoint", cfg.S3.Endpoint),
			zap.String("bucket", cfg.Bucket),
		)
		blobs, err := s3storage.New(s3storage.Config{
			Endpoint:      cfg.S3.Endpoint,
			Region:        cfg.S3.Region,
			AccessKey:     cfg.S3.AccessKey,
			SecretKey:     cfg.S3.SecretKey,
			Bucket:        cfg.Bucket,
			PublicBaseURL: cfg.PublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 blob store init failed: %w", err)
		}
		return blobs, nil
	case "local":
		app.logger.Info("using local storage backend", zap.String("path", cfg.Local.BaseDir))
		blobs, err := localstorage.New(localstorage.Config{BaseDir: cfg.Local.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		return blobs, nil
	default:
		app.logger.Warn("using in-memory storage backend, uploads are lost on restart")
		return memorystorage.NewBlobStore(""), nil
	}
}

func setupDatabase(ctx context.Context, app *App) (contentStore, error) {
	if app.cfg.Database.DSN == "" {
		app.logger.Warn("no database DSN configured, using in-memory content store")
		return memorystorage.NewContentStore(), nil
	}
	store, err := pgstore.New(ctx, pgConfig(app.cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("content store init failed: %w", err)
	}
	app.pgStore = store
	app.logger.Info("postgres content store initialized",
		zap.Int32("max_conns", app.cfg.Database.MaxConns),
	)
	return store, nil
}

func setupPublisher(ctx context.Context, app *App) (content.Publisher, error) {
	if app.cfg.PubSub.TopicName == "" || app.cfg.PubSub.ProjectID == "" {
		app.logger.Warn("no Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	var err error
	app.pubsubClient, err = pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubPublisher = gcppublisher.New(app.pubsubClient.Publisher(app.cfg.PubSub.TopicName))
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return app.pubsubPublisher, nil
}

// setupAuth returns nil collaborators when authentication is disabled.
func setupAuth(app *App) (*auth.Client, auth.Verifier, error) {
	cfg := app.cfg.Auth
	if !cfg.Enabled {
		return nil, nil, nil
	}
	client, err := auth.NewClient(auth.ClientConfig{
		BaseURL: cfg.SupabaseURL,
		AnonKey: cfg.AnonKey,
		Timeout: app.cfg.AuthTimeout(),
	}, nil, app.logger.Named("auth"))
	if err != nil {
		return nil, nil, fmt.Errorf("auth client init failed: %w", err)
	}
	chain := auth.Chain{}
	if cfg.JWTSecret != "" {
		jwtVerifier, err := auth.NewJWTVerifier(cfg.JWTSecret)
		if err != nil {
			return nil, nil, fmt.Errorf("jwt verifier init failed: %w", err)
		}
		chain = append(chain, jwtVerifier)
		app.logger.Info("verifying tokens locally with the project JWT secret")
	}
	chain = append(chain, client)
	return client, chain, nil
}

func setupDetector(app *App) (*detector.Detector, error) {
	crawlers := app.cfg.Crawlers
	d := detector.New(detector.SignatureSet{Version: crawlers.Version, Signatures: crawlers.Signatures})
	if crawlers.File == "" {
		app.logger.Info("using built-in crawler signatures",
			zap.String("version", d.Version()),
			zap.Int("count", len(d.Signatures())),
		)
		return d, nil
	}
	stop, err := detector.Watch(crawlers.File, d, app.logger.Named("detector"))
	if err != nil {
		return nil, fmt.Errorf("crawler signatures init failed: %w", err)
	}
	app.stopDetector = stop
	return d, nil
}

// Migrate applies the embedded schema to the configured database.
func Migrate(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.Database.DSN == "" {
		return errors.New("database.dsn is required to migrate")
	}
	store, err := pgstore.New(ctx, pgConfig(cfg.Database))
	if err != nil {
		return fmt.Errorf("content store init failed: %w", err)
	}
	defer store.Close()
	if err := store.Ping(ctx); err != nil {
		return err
	}
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("schema applied")
	return nil
}

func pgConfig(cfg config.DatabaseConfig) pgstore.Config {
	return pgstore.Config{
		DSN:             cfg.DSN,
		MaxConns:        cfg.MaxConns,
		MinConns:        cfg.MinConns,
		MaxConnLifetime: cfg.MaxConnLifetime,
	}
}
