package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ognjhunt/blueprintxr/internal/adapter/httpserver"
	"github.com/ognjhunt/blueprintxr/internal/adapter/memory"
	"github.com/ognjhunt/blueprintxr/internal/adapter/metrics"
	"github.com/ognjhunt/blueprintxr/internal/adapter/postgres"
	"github.com/ognjhunt/blueprintxr/internal/adapter/redis"
	"github.com/ognjhunt/blueprintxr/internal/adapter/resilience"
	"github.com/ognjhunt/blueprintxr/internal/adapter/simengine"
	"github.com/ognjhunt/blueprintxr/internal/adapter/sqlite"
	"github.com/ognjhunt/blueprintxr/internal/app"
	"github.com/ognjhunt/blueprintxr/internal/blueprint"
	"github.com/ognjhunt/blueprintxr/internal/domain"
	"github.com/ognjhunt/blueprintxr/internal/platform/config"
	"github.com/ognjhunt/blueprintxr/internal/platform/logging"
)

type metricGroups struct {
	http    *metrics.HTTPMetrics
	screens *metrics.ScreenMetrics
	anchors *metrics.AnchorMetrics
	cache   *metrics.CacheMetrics
	breaker *metrics.BreakerMetrics
	db      *metrics.DBMetrics
	redis   *metrics.RedisMetrics
}

func newMetricGroups(reg prometheus.Registerer) metricGroups {
	return metricGroups{
		http:    metrics.NewHTTPMetrics(reg),
		screens: metrics.NewScreenMetrics(reg),
		anchors: metrics.NewAnchorMetrics(reg),
		cache:   metrics.NewCacheMetrics(reg),
		breaker: metrics.NewBreakerMetrics(reg),
		db:      metrics.NewDBMetrics(reg),
		redis:   metrics.NewRedisMetrics(reg),
	}
}

func runGracefulShutdown(srv *httpserver.Server, stopBackground context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		stopBackground()
		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config, m *metrics.DBMetrics) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, postgres.NewMetricsTracer(m))
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.Migrate(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(ctx context.Context, cfg *config.Config, m metricGroups) *goredis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL,
		redis.NewMetricsHook(m.redis),
		redis.NewCircuitBreakerHook(m.breaker),
	)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupEngine(cfg *config.Config) (*simengine.Engine, func()) {
	if cfg.EngineDBPath == "" {
		slog.Info("Simulated engine keeps persisted anchors in memory")
		return simengine.New(), func() {}
	}

	descriptors, err := sqlite.Open(cfg.EngineDBPath)
	if err != nil {
		slog.Error("Failed to open anchor descriptor store", "path", cfg.EngineDBPath, "error", err)
		os.Exit(1)
	}
	closeFn := func() {
		if err := descriptors.Close(); err != nil {
			slog.Warn("Failed to close anchor descriptor store", "error", err)
		}
	}
	return simengine.New(simengine.WithDescriptors(descriptors)), closeFn
}

func main() {
	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	reg := metrics.NewRegistry()
	m := newMetricGroups(reg)

	background, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	var (
		docs         domain.DocumentStore
		healthChecks []httpserver.HealthCheck
	)
	if cfg.DatabaseURL != "" {
		pool := setupDB(cfg, m.db)
		defer pool.Close()
		docs = postgres.NewDocumentStore(pool)
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory document store")
		docs = memory.NewDocumentStore()
	}

	guarded := resilience.NewDocumentStore(docs, resilience.Settings{
		Name:             "documents",
		FailureThreshold: uint(cfg.BreakerFailureThreshold),
		Delay:            cfg.BreakerOpenTimeout,
		SuccessThreshold: 1,
	}, m.breaker)
	healthChecks = append(healthChecks, httpserver.HealthCheck{
		Name:    "documents",
		Check:   guarded.Ping,
		Breaker: guarded.BreakerState,
	})

	repoOpts := []blueprint.Option{blueprint.WithObserver(m.cache)}
	var rdb *goredis.Client
	origin := uuid.NewString()
	if cfg.RedisURL != "" {
		rdb = setupRedis(background, cfg, m)
		defer func() { _ = rdb.Close() }()
		repoOpts = append(repoOpts, blueprint.WithInvalidator(redis.NewInvalidationPublisher(rdb, origin)))
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}
	repo := blueprint.NewRepository(guarded, repoOpts...)

	if rdb != nil {
		subscriber := redis.NewInvalidationSubscriber(rdb, repo, origin)
		go subscriber.Start(background)
	}

	engine, closeEngine := setupEngine(cfg)
	defer closeEngine()

	coordCfg := app.Config{
		PollInterval:      cfg.TrackingPollInterval,
		PlacementDistance: cfg.PlacementDistance,
		RemoteTimeout:     cfg.RemoteTimeout,
		CreatedBy:         cfg.AnchorCreator,
	}
	screens := httpserver.NewScreens(func(screenID uuid.UUID) *app.Coordinator {
		return app.New(engine, repo, coordCfg,
			app.WithRecorder(m.anchors),
			app.WithLogger(logging.WithScreen(screenID.String())),
		)
	}, cfg.MaxScreens, m.screens)

	srv := httpserver.NewServer(cfg, httpserver.Deps{
		Screens:        screens,
		Containers:     repo,
		Models:         repo,
		HealthChecks:   healthChecks,
		MetricsHTTP:    m.http,
		MetricsScreen:  m.screens,
		MetricsHandler: metrics.Handler(reg),
	})

	done := runGracefulShutdown(srv, stopBackground)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
