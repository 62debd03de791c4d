package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/fizzrank/internal/api"
	"github.com/onnwee/fizzrank/internal/audit"
	"github.com/onnwee/fizzrank/internal/auth"
	"github.com/onnwee/fizzrank/internal/catalog"
	"github.com/onnwee/fizzrank/internal/config"
	"github.com/onnwee/fizzrank/internal/content"
	"github.com/onnwee/fizzrank/internal/db"
	"github.com/onnwee/fizzrank/internal/health"
	"github.com/onnwee/fizzrank/internal/idempotency"
	"github.com/onnwee/fizzrank/internal/jobs"
	"github.com/onnwee/fizzrank/internal/middleware"
	"github.com/onnwee/fizzrank/internal/news"
	"github.com/onnwee/fizzrank/internal/ranking"
	"github.com/onnwee/fizzrank/internal/review"
	"github.com/onnwee/fizzrank/internal/tracing"
	"github.com/onnwee/fizzrank/internal/upload"
)

const (
	serviceName = "fizzrank-api"

	// rateLimitCleanupInterval evicts expired in-memory rate limit windows.
	rateLimitCleanupInterval = time.Minute

	// idempotencyCleanupInterval evicts expired in-memory idempotency records.
	idempotencyCleanupInterval = time.Hour
)

// app holds the wired server and everything that needs an orderly shutdown.
type app struct {
	logger   *slog.Logger
	handler  http.Handler
	news     *news.Service
	warmer   *news.Warmer
	registry *prometheus.Registry

	tracer   *tracing.Provider
	database *sql.DB
	redis    *redis.Client
	jobs     *jobs.Scheduler
}

// newApp wires storage, caches, metrics and the HTTP handler chain from cfg.
// An empty DatabaseURL selects in-memory repositories; an empty RedisURL
// selects in-memory rate limiting.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger}

	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	a.tracer = tp
	logger.Info("tracing configured", "enabled", tp.IsEnabled(), "exporter", cfg.TracingExporter)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := middleware.NewMetrics()
	newsMetrics := news.NewMetrics()
	jobMetrics := jobs.NewMetrics()
	for _, r := range []interface{ Register(prometheus.Registerer) error }{httpMetrics, newsMetrics, jobMetrics} {
		if err := r.Register(reg); err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	a.registry = reg
	a.jobs = jobs.NewScheduler(jobs.SchedulerConfig{Logger: logger, Metrics: jobMetrics})

	var (
		catalogRepo catalog.Repository
		reviewRepo  review.Repository
		articleRepo content.Repository
		auditRepo   audit.Repository
		checkers    []api.NamedChecker
	)
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		a.database = conn
		if err := db.Migrate(ctx, conn, logger); err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("migrate: %w", err)
		}
		catalogRepo = catalog.NewPostgresRepository(conn, logger)
		reviewRepo = review.NewPostgresRepository(conn, logger)
		articleRepo = content.NewPostgresRepository(conn, logger)
		auditRepo = audit.NewPostgresRepository(conn, logger)
		checkers = append(checkers, api.NamedChecker{Name: "database", Checker: health.NewDBChecker(conn)})
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory repositories")
		catalogRepo = catalog.NewInMemoryRepository()
		reviewRepo = review.NewInMemoryRepository()
		articleRepo = content.NewInMemoryRepository()
		auditRepo = audit.NewInMemoryRepository()
		checkers = append(checkers, api.NamedChecker{Name: "database"})
	}

	var (
		store     middleware.RateLimitStore
		idemStore idempotency.Repository
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)
		store = middleware.NewRedisRateLimitStore(a.redis,
			middleware.WithRedisMetrics(httpMetrics),
			middleware.WithRedisLogger(logger))
		idemStore = idempotency.NewRedisRepository(a.redis, idempotency.DefaultExpiry)
		checkers = append(checkers, api.NamedChecker{Name: "redis", Checker: health.NewRedisChecker(a.redis)})
	} else {
		memStore := middleware.NewInMemoryRateLimitStore()
		store = memStore
		a.jobs.Add(jobs.Job{
			Name:     jobs.JobTypeRateLimitCleanup,
			Interval: rateLimitCleanupInterval,
			Run: func(context.Context) error {
				memStore.Cleanup()
				return nil
			},
		})
		idemMem := idempotency.NewInMemoryRepository()
		idemStore = idemMem
		a.jobs.Add(jobs.Job{
			Name:     jobs.JobTypeIdempotencyCleanup,
			Interval: idempotencyCleanupInterval,
			Run: func(context.Context) error {
				_, err := idempotency.CleanupOldKeys(idemMem, idempotency.DefaultExpiry, logger)
				return err
			},
		})
		checkers = append(checkers, api.NamedChecker{Name: "redis"})
	}

	profiles, err := ranking.LoadCalibration(cfg.RankingCalibrationPath)
	if err != nil {
		logger.Warn("ranking calibration not applied", "path", cfg.RankingCalibrationPath, "error", err)
	}
	profiles.BaselineFallback = cfg.RatingBaselineFallback

	a.news = news.NewService(
		news.NewGoogleNewsFetcher(news.Locale{HL: cfg.NewsLocaleHL, GL: cfg.NewsLocaleGL, CEID: cfg.NewsLocaleCEID}),
		news.Config{
			SearchTerms:         cfg.NewsSearchTerms,
			FreshnessWindow:     cfg.NewsFreshness(),
			MaxItems:            cfg.NewsMaxItems,
			FetchTimeout:        cfg.NewsFetchTimeout(),
			SimilarityThreshold: cfg.NewsSimilarityThreshold,
			RetryBackoff:        cfg.NewsRetryBackoff(),
			Logger:              logger,
			Metrics:             newsMetrics,
		})
	if cfg.NewsWarmEnabled {
		a.warmer = news.NewWarmer(a.news, news.WarmerConfig{
			Interval:    warmInterval(cfg.NewsFreshness()),
			Timeout:     time.Minute,
			WarmOnStart: true,
			Logger:      logger,
			JobMetrics:  jobMetrics,
		})
	}

	var (
		uploads  *upload.Service
		imageURL func(string) string
	)
	if cfg.UploadsEnabled() {
		uploads, err = upload.NewService(upload.ServiceConfig{
			BucketName:      cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
			PublicBaseURL:   cfg.S3PublicBaseURL,
			MaxSizeMB:       cfg.S3MaxUploadSizeMB,
		})
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("upload service: %w", err)
		}
		imageURL = uploads.PublicURL
		checkers = append(checkers, api.NamedChecker{Name: "storage", Checker: health.NewHTTPChecker("object storage", cfg.S3Endpoint)})
	}

	jwtService := auth.NewJWTServiceWithOptions(auth.Options{
		CurrentSecret:  cfg.JWTSecret,
		PreviousSecret: cfg.JWTPreviousSecret,
		Leeway:         auth.DefaultLeeway,
	})

	leaderboard := api.NewLeaderboard(catalogRepo, reviewRepo, profiles, logger)
	routes := api.Routes{
		Home:     api.NewHomeHandlers(leaderboard, a.news, articleRepo),
		Catalog:  api.NewCatalogHandlers(catalogRepo, reviewRepo, leaderboard, imageURL),
		Rankings: api.NewRankingHandlers(catalogRepo, leaderboard),
		Reviews:  api.NewReviewHandlers(catalogRepo, reviewRepo),
		Content:  api.NewContentHandlers(articleRepo, catalogRepo, cfg.SiteBaseURL),
		News:     api.NewNewsHandlers(a.news),
		Admin:    api.NewAdminHandlers(catalogRepo, reviewRepo, articleRepo, auditRepo),
		Health: api.NewHealthHandlers(api.HealthHandlersConfig{
			Checkers:       checkers,
			MetricsEnabled: true,
		}),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		WriteLimit: middleware.RateLimiter(store, middleware.DefaultWriteLimit(),
			middleware.UserKeyFunc(), httpMetrics),
		Idempotency: middleware.Idempotency(idemStore, logger, httpMetrics),
	}
	if uploads != nil {
		routes.Uploads = api.NewUploadHandlers(uploads, catalogRepo)
	}
	mux := api.NewRouter(routes)

	// RequestID -> Tracing -> Logging -> HTTPMetrics -> CORS -> RateLimiter -> Authenticate -> mux
	var handler http.Handler = mux
	handler = middleware.Authenticate(jwtService, logger)(handler)
	handler = middleware.RateLimiter(store, middleware.DefaultGlobalLimit(), middleware.IPKeyFunc(), httpMetrics)(handler)
	handler = middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.CORSOrigins, MaxAge: 600})(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Tracing(serviceName)(handler)
	handler = middleware.RequestID(handler)
	a.handler = handler

	return a, nil
}

// warmInterval refreshes ahead of the freshness window so readers rarely
// see an expired snapshot.
func warmInterval(freshness time.Duration) time.Duration {
	if freshness <= 0 {
		return news.DefaultWarmInterval
	}
	if interval := freshness * 5 / 6; interval >= time.Minute {
		return interval
	}
	return time.Minute
}

// start launches the background jobs: the news warmer and cleanup of the
// in-memory rate limit and idempotency stores.
func (a *app) start(ctx context.Context) error {
	if a.jobs.Len() > 0 {
		a.jobs.Start(ctx)
		a.logger.Info("background jobs started", "jobs", a.jobs.Len())
	}
	if a.warmer != nil {
		if err := a.warmer.Start(ctx); err != nil {
			return fmt.Errorf("news warmer: %w", err)
		}
		a.logger.Info("news warmer started")
	}
	return nil
}

// close stops background work and releases connections. It is safe to call
// on a partially initialized app.
func (a *app) close(ctx context.Context) {
	if a.warmer != nil {
		a.warmer.Stop()
	}
	if a.jobs != nil {
		a.jobs.Stop()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("failed to close redis client", "error", err)
		}
	}
	if a.database != nil {
		if err := a.database.Close(); err != nil {
			a.logger.Error("failed to close database", "error", err)
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Error("failed to shut down tracing", "error", err)
		}
	}
}
