package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/spkrepo/pkg/api"
	"github.com/platinummonkey/spkrepo/pkg/async"
	"github.com/platinummonkey/spkrepo/pkg/auth"
	"github.com/platinummonkey/spkrepo/pkg/config"
	"github.com/platinummonkey/spkrepo/pkg/maintenance"
	"github.com/platinummonkey/spkrepo/pkg/middleware"
	"github.com/platinummonkey/spkrepo/pkg/observability"
	"github.com/platinummonkey/spkrepo/pkg/storage"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, os.Stdout)
	logger.WithField("version", version).Info("Starting spkrepo")

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("spkrepo stopped with an error")
	}
	logger.Info("spkrepo stopped")
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	async.SetLogger(logger)
	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)

	otelCfg := cfg.OTelConfig()
	if otelCfg.ServiceVersion == "" {
		otelCfg.ServiceVersion = version
	}
	providers, err := observability.InitOTel(ctx, otelCfg, logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}
	otelMetrics, err := observability.NewOTelMetrics(otel.Meter("github.com/platinummonkey/spkrepo"))
	if err != nil {
		return err
	}

	observers := observability.MultiObserver{otelMetrics}
	if metrics != nil {
		observers = append(observers, metrics)
	}

	storageCfg := cfg.StorageConfig()
	store, err := storage.Open(storageCfg, storage.WithObserver(observers))
	if err != nil {
		return err
	}
	logger.WithField("driver", storageCfg.Driver).Info("Database connected")

	var redisClient *redis.Client
	if storageCfg.RedisURL != "" {
		redisClient, err = storage.NewRedisClient(ctx, storageCfg)
		if err != nil {
			store.Close()
			return err
		}
		logger.Info("Redis connected")
	}

	links, err := newLinkResolver(ctx, storageCfg, logger)
	if err != nil {
		store.Close()
		return err
	}

	issuer, err := auth.NewTokenIssuer([]byte(cfg.Auth.JWTSecret), cfg.Auth.JWTIssuer, cfg.Auth.SessionTTL)
	if err != nil {
		store.Close()
		return err
	}

	proxies, err := auth.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		store.Close()
		return err
	}

	var github *auth.GitHubLinker
	if cfg.Auth.GitHubClientID != "" {
		github, err = auth.NewGitHubLinker(auth.GitHubConfig{
			ClientID:     cfg.Auth.GitHubClientID,
			ClientSecret: cfg.Auth.GitHubClientSecret,
			RedirectURL:  cfg.Auth.GitHubRedirectURL,
		}, issuer)
		if err != nil {
			store.Close()
			return err
		}
	}

	authService := auth.NewService(auth.ServiceConfig{
		ResetTTL:    cfg.Auth.ResetTTL,
		ResetURL:    cfg.Auth.ResetURL,
		MailTimeout: cfg.Mail.Timeout,
	}, newMailer(cfg.Mail, logger), logger)

	server := api.NewServer(ctx, api.Dependencies{
		Store:   store,
		Auth:    authService,
		Issuer:  issuer,
		GitHub:  github,
		Links:   links,
		Limiter: newLimiter(ctx, cfg.RateLimit, redisClient),
		Metrics: metrics,
		OTel:    otelMetrics,
		Logger:  logger,
	}, api.Config{
		RequestTimeout:    cfg.Server.RequestTimeout,
		MaxBodyBytes:      cfg.Server.MaxBodyBytes,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		TrustedProxies:    proxies,
		DownloadWorkers:   cfg.Downloads.Workers,
		DownloadQueueSize: cfg.Downloads.QueueSize,
		DownloadTimeout:   cfg.Downloads.Timeout,
	})

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	checks := []observability.DependencyCheck{observability.DatabaseCheck(store.DB().DB)}
	if redisClient != nil {
		checks = append(checks, observability.RedisCheck(redisClient))
	}
	if pinger, ok := links.(interface{ Ping(context.Context) error }); ok {
		checks = append(checks, observability.DependencyCheck{Name: "object_store", Check: pinger.Ping})
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(version, checks...))
	if metrics != nil {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	var scheduler *maintenance.Scheduler
	if cfg.Maintenance.Enabled {
		scheduler = maintenance.NewScheduler(store, logger,
			maintenance.WithMetrics(metrics),
			maintenance.WithOTelMetrics(otelMetrics),
			maintenance.WithJobTimeout(cfg.Maintenance.JobTimeout),
		)
		err := scheduler.Register(maintenance.Schedules{
			ResetPurge: cfg.Maintenance.ResetPurgeSchedule,
			Gauges:     cfg.Maintenance.GaugeSchedule,
		})
		if err != nil {
			store.Close()
			return err
		}
		scheduler.Start()
		logger.WithField("jobs", scheduler.Entries()).Info("Maintenance scheduler started")
	}

	if err := config.WatchLogLevel(ctx, cfg.File, logger); err != nil {
		logger.WithError(err).Warn("Config file watch disabled")
	}

	// Servers stop first so in-flight requests can still use the pool
	shutdown.Register("api server", apiServer.Shutdown)
	shutdown.Register("health server", healthServer.Shutdown)
	shutdown.Register("download recorder", func(ctx context.Context) error {
		return server.Close(untilDeadline(ctx, 5*time.Second))
	})
	if scheduler != nil {
		shutdown.Register("maintenance scheduler", scheduler.Stop)
	}
	if redisClient != nil {
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
	}
	shutdown.Register("database", func(context.Context) error { return store.Close() })
	shutdown.Register("opentelemetry", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("API server listening")
		return serve(apiServer)
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Health server listening")
		return serve(healthServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		return shutdown.Shutdown(context.Background())
	})

	return g.Wait()
}

// serve runs srv until it is shut down
func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newLinkResolver presigns S3 URLs when a bucket is configured and falls back
// to the static base URL otherwise. Without either, downloads answer 404.
func newLinkResolver(ctx context.Context, cfg storage.Config, logger logrus.FieldLogger) (storage.LinkResolver, error) {
	switch {
	case cfg.S3Bucket != "":
		client, err := storage.NewS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		logger.WithField("bucket", cfg.S3Bucket).Info("Serving downloads from S3")
		return client, nil
	case cfg.DownloadBaseURL != "":
		return storage.StaticLinks{BaseURL: cfg.DownloadBaseURL}, nil
	default:
		logger.Warn("No S3 bucket or download base URL configured, downloads are disabled")
		return nil, nil
	}
}

func newMailer(cfg config.MailConfig, logger logrus.FieldLogger) auth.Mailer {
	if cfg.SMTPAddr == "" {
		return &auth.LogMailer{Logger: logger}
	}
	return &auth.SMTPMailer{
		Addr:     cfg.SMTPAddr,
		From:     cfg.From,
		Username: cfg.Username,
		Password: cfg.Password,
	}
}

// newLimiter shares rate limit counters through Redis when it is available
func newLimiter(ctx context.Context, cfg config.RateLimitConfig, redisClient *redis.Client) middleware.Limiter {
	rl := middleware.RateLimitConfig{
		RequestsPerWindow: cfg.Requests,
		WindowDuration:    cfg.Window,
	}
	if redisClient != nil {
		return middleware.NewDistributedRateLimiter(redisClient, rl, "")
	}
	local := middleware.NewLocalRateLimiter(rl)
	local.StartCleanup(ctx)
	return local
}

func untilDeadline(ctx context.Context, fallback time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		return time.Until(deadline)
	}
	return fallback
}
