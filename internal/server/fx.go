// Package server builds the application graph and owns its lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobalert-crawler/internal/api"
	"github.com/JakeFAU/jobalert-crawler/internal/clock/system"
	"github.com/JakeFAU/jobalert-crawler/internal/config"
	"github.com/JakeFAU/jobalert-crawler/internal/enricher"
	collyfetcher "github.com/JakeFAU/jobalert-crawler/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/jobalert-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/jobalert-crawler/internal/hash/sha256"
	"github.com/JakeFAU/jobalert-crawler/internal/headless/detector"
	"github.com/JakeFAU/jobalert-crawler/internal/id/uuid"
	"github.com/JakeFAU/jobalert-crawler/internal/logging"
	"github.com/JakeFAU/jobalert-crawler/internal/metrics"
	"github.com/JakeFAU/jobalert-crawler/internal/notify"
	"github.com/JakeFAU/jobalert-crawler/internal/notify/mail"
	"github.com/JakeFAU/jobalert-crawler/internal/notify/push"
	"github.com/JakeFAU/jobalert-crawler/internal/pipeline"
	"github.com/JakeFAU/jobalert-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/jobalert-crawler/internal/posting"
	memorypublisher "github.com/JakeFAU/jobalert-crawler/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/jobalert-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/jobalert-crawler/internal/scheduler"
	gcsstorage "github.com/JakeFAU/jobalert-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/jobalert-crawler/internal/storage/local"
	memorystorage "github.com/JakeFAU/jobalert-crawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/jobalert-crawler/internal/storage/postgres"
	redisstore "github.com/JakeFAU/jobalert-crawler/internal/storage/redis"
	"github.com/JakeFAU/jobalert-crawler/internal/tracker"
)

// listingMarkers identify a listing page whose tables were served statically.
var listingMarkers = []string{"lattbl", "edtbl"}

// App contains the application's dependencies.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	service   *pipeline.Service
	apiServer *api.Server
	scheduler *scheduler.Scheduler
	checks    map[string]api.Pinger

	pool            *pgxpool.Pool
	redis           *goredis.Client
	pubsubClient    *pubsub.Client
	pubsubPublisher *gcppublisher.Publisher
	storage         *storage.Client
	headless        *headlessfetcher.Fetcher
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(logging.Config{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	app := &App{cfg: cfg, logger: logger, checks: map[string]api.Pinger{}}
	app.logger.Info("building application dependencies", zap.Int("port", cfg.Server.Port))

	if err := app.build(ctx); err != nil {
		_ = app.Close(context.Background())
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	clock := system.New()

	archive, err := setupStorage(ctx, a)
	if err != nil {
		return err
	}
	if err := setupDatabase(ctx, a); err != nil {
		return err
	}
	snapshots, directory, err := setupStores(a)
	if err != nil {
		return err
	}
	trackingStore, err := setupTracking(ctx, a)
	if err != nil {
		return err
	}
	publisher, err := setupPublisher(ctx, a)
	if err != nil {
		return err
	}
	mailCh, pushCh, err := setupChannels(ctx, a)
	if err != nil {
		return err
	}
	listingFetcher, detailFetcher, err := setupFetchers(a)
	if err != nil {
		return err
	}

	sources := a.cfg.SourceList()
	if sources == nil {
		sources = pipeline.DefaultSources()
	}
	var pushIface posting.PushChannel
	var topics api.TopicManager
	if pushCh != nil {
		pushIface, topics = pushCh, pushCh
	}

	regions := make([]pipeline.Region, 0, len(a.cfg.Regions))
	for _, r := range a.cfg.Regions {
		regions = append(regions, pipeline.Region{Code: r.Code, Name: r.Name, URL: r.URL})
	}

	a.service, err = pipeline.New(pipeline.Config{
		Sources:            pipeline.ExpandSources(sources, regions),
		ParallelCategories: a.cfg.Scheduler.ParallelCategories,
		EventTopic:         a.cfg.PubSub.TopicName,
	}, pipeline.Deps{
		Fetcher: listingFetcher,
		Enricher: enricher.New(
			enricher.Config{Concurrency: a.cfg.Enricher.Concurrency},
			detailFetcher,
			a.logger.Named("enricher"),
		),
		Store:   snapshots,
		Tracker: tracker.New(trackingStore, clock, a.logger.Named("tracker")),
		Notifier: notify.New(notify.Config{
			ImageURL:       a.cfg.Push.ImageURL,
			TopicBroadcast: a.cfg.Push.TopicBroadcast,
		}, directory, mailCh, pushIface, clock, a.logger.Named("notify")),
		Archive:   archive,
		Publisher: publisher,
		Hasher:    sha256.New(),
		IDs:       uuid.New(),
		Clock:     clock,
	}, a.logger.Named("pipeline"))
	if err != nil {
		return fmt.Errorf("pipeline init failed: %w", err)
	}
	a.logger.Info("pipeline initialized", zap.Strings("categories", a.service.Categories()))

	if a.cfg.Scheduler.Enabled {
		a.scheduler, err = scheduler.New(scheduler.Config{
			Interval: a.cfg.Scheduler.Interval,
			Warmup:   a.cfg.Scheduler.Warmup,
		}, a.service, a.logger)
		if err != nil {
			return fmt.Errorf("scheduler init failed: %w", err)
		}
	}

	apiKey := ""
	if a.cfg.Auth.Enabled {
		apiKey = a.cfg.Auth.APIKey
	}
	a.apiServer = api.NewServer(api.Config{
		APIKey:         apiKey,
		RequestTimeout: a.cfg.Server.RequestTimeout,
	}, a.service, topics, a.checks, a.logger)
	return nil
}

// Service exposes the refresh pipeline.
func (a *App) Service() *pipeline.Service {
	return a.service
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Run starts the scheduler and HTTP server and blocks until ctx is canceled
// or the process receives SIGINT/SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	var runErr error
	select {
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	default:
	}
	return errors.Join(runErr, a.Close(shutdownCtx))
}

// Close gracefully shuts down the application.
func (a *App) Close(_ context.Context) error {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.headless != nil {
		a.headless.Close()
	}
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Close()
	}
	var errs []error
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pubsub client: %w", err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close gcs client: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis client: %w", err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	for _, err := range errs {
		a.logger.Warn("shutdown step failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

func setupStorage(ctx context.Context, app *App) (posting.BlobStore, error) {
	switch app.cfg.Storage.Backend {
	case "gcs":
		app.logger.Info("using GCS archive backend", zap.String("bucket", app.cfg.Storage.Bucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storage = client
		blobStore, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket: app.cfg.Storage.Bucket,
			Prefix: app.cfg.Storage.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.checks["gcs"] = blobStore
		return blobStore, nil
	case "local":
		app.logger.Info("using local archive backend", zap.String("path", app.cfg.Storage.Local.BaseDir))
		blobStore, err := localstorage.New(localstorage.Config{
			BaseDir: app.cfg.Storage.Local.BaseDir,
			Keep:    app.cfg.Storage.Local.Keep,
		})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		return blobStore, nil
	default:
		app.logger.Info("using in-memory archive backend")
		return memorystorage.NewBlobStore(), nil
	}
}

func setupDatabase(ctx context.Context, app *App) error {
	db := app.cfg.Database
	if db.DSN == "" {
		app.logger.Warn("no database DSN configured, snapshots and subscribers stay in memory")
		return nil
	}
	pool, err := pgstore.NewPool(ctx, pgstore.PoolConfig{
		DSN:             db.DSN,
		MaxConns:        db.MaxConns,
		MinConns:        db.MinConns,
		MaxConnLifetime: db.MaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("database init failed: %w", err)
	}
	app.pool = pool
	app.checks["postgres"] = pool
	if db.AutoMigrate {
		if err := pgstore.Migrate(ctx, pool, pgstore.Tables{
			Snapshots:   db.SnapshotTable,
			Tracking:    db.TrackingTable,
			Subscribers: db.SubscriberTable,
		}); err != nil {
			return fmt.Errorf("database migration failed: %w", err)
		}
		app.logger.Info("database schema ensured")
	}
	return nil
}

func setupStores(app *App) (posting.SnapshotStore, posting.Directory, error) {
	if app.pool == nil {
		return memorystorage.NewSnapshotStore(), memorystorage.NewDirectory(), nil
	}
	snapshots, err := pgstore.NewSnapshotStore(app.pool, app.cfg.Database.SnapshotTable)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot store init failed: %w", err)
	}
	directory, err := pgstore.NewDirectory(app.pool, app.cfg.Database.SubscriberTable)
	if err != nil {
		return nil, nil, fmt.Errorf("subscriber directory init failed: %w", err)
	}
	app.logger.Info("postgres stores initialized",
		zap.String("snapshot_table", app.cfg.Database.SnapshotTable),
		zap.String("subscriber_table", app.cfg.Database.SubscriberTable),
	)
	return snapshots, directory, nil
}

func setupTracking(ctx context.Context, app *App) (posting.TrackingStore, error) {
	switch app.cfg.Tracking.Backend {
	case "postgres":
		if app.pool == nil {
			return nil, fmt.Errorf("postgres tracking requires database.dsn")
		}
		store, err := pgstore.NewTrackingStore(app.pool, app.cfg.Database.TrackingTable)
		if err != nil {
			return nil, fmt.Errorf("tracking store init failed: %w", err)
		}
		app.logger.Info("using postgres tracking backend")
		return store, nil
	case "redis":
		client, err := redisstore.NewClient(ctx, app.cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("redis init failed: %w", err)
		}
		app.redis = client
		store := redisstore.NewTrackingStore(client, app.cfg.Redis.KeyPrefix)
		app.checks["redis"] = store
		app.logger.Info("using redis tracking backend")
		return store, nil
	default:
		app.logger.Info("using in-memory tracking backend")
		return memorystorage.NewTrackingStore(), nil
	}
}

func setupPublisher(ctx context.Context, app *App) (posting.Publisher, error) {
	if app.cfg.PubSub.ProjectID == "" || app.cfg.PubSub.TopicName == "" {
		app.logger.Warn("no Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(memorypublisher.DefaultCapacity), nil
	}
	client, err := pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubClient = client
	app.pubsubPublisher = gcppublisher.New(client, app.cfg.PubSub.TopicName)
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return app.pubsubPublisher, nil
}

// setupChannels returns nil interfaces for disabled channels so the fanout
// skips them.
func setupChannels(ctx context.Context, app *App) (posting.MailChannel, *push.Channel, error) {
	var mailCh posting.MailChannel
	if app.cfg.Mail.Enabled {
		m := app.cfg.Mail
		ch, err := mail.New(mail.Config{
			Host:     m.Host,
			Port:     m.Port,
			Username: m.Username,
			Password: m.Password,
			From:     m.From,
			FromName: m.FromName,
			TLS:      m.TLS,
			Timeout:  m.Timeout,
		}, app.logger.Named("mail"))
		if err != nil {
			return nil, nil, fmt.Errorf("mail channel init failed: %w", err)
		}
		mailCh = ch
		app.logger.Info("mail channel enabled", zap.String("host", m.Host))
	}
	if !app.cfg.Push.Enabled {
		return mailCh, nil, nil
	}
	pushCh, err := push.New(ctx, push.Config{
		ProjectID:       app.cfg.Push.ProjectID,
		CredentialsFile: app.cfg.Push.CredentialsFile,
	}, app.logger.Named("push"))
	if err != nil {
		return nil, nil, fmt.Errorf("push channel init failed: %w", err)
	}
	app.logger.Info("push channel enabled", zap.String("project", app.cfg.Push.ProjectID))
	return mailCh, pushCh, nil
}

// setupFetchers returns the listing fetcher, which may promote to headless
// rendering, and the plain detail page fetcher.
func setupFetchers(app *App) (posting.Fetcher, posting.Fetcher, error) {
	rc := app.cfg.Retriever
	var limiter collyfetcher.Limiter
	if rc.RateLimit.Enabled {
		limiter = ratelimit.New(ratelimit.Config{RPS: rc.RateLimit.RPS, Burst: rc.RateLimit.Burst})
		app.logger.Info("rate limiter enabled",
			zap.Float64("rps", rc.RateLimit.RPS),
			zap.Int("burst", rc.RateLimit.Burst),
		)
	}
	static := collyfetcher.New(collyfetcher.Config{
		Timeout:      rc.Timeout,
		UserAgents:   rc.UserAgents,
		MaxIdleConns: rc.MaxIdleConns,
	}, limiter, app.logger.Named("retriever"))

	if !rc.Headless.Enabled {
		return static, static, nil
	}
	headless, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		MaxParallel:       rc.Headless.MaxParallel,
		UserAgent:         static.UserAgent(),
		NavigationTimeout: rc.Headless.NavTimeout,
		SettleDelay:       rc.Headless.SettleDelay,
	}, app.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("headless fetcher init failed: %w", err)
	}
	app.headless = headless
	app.logger.Info("headless promotion enabled", zap.Int("max_parallel", rc.Headless.MaxParallel))
	listing := detector.NewFetcher(static, headless, detector.NewHeuristic(0, listingMarkers...), app.logger)
	return listing, static, nil
}
