// Package observability provides logging setup, Prometheus metrics, OpenTelemetry
// and health checks.
//
// # Logging
//
//	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout)
//	observability.FromContext(r.Context(), logger).WithError(err).Error("query failed")
//
// FromContext adds request_id, user_id, trace_id and span_id when present.
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//
// Metrics implements storage.Observer so every query is counted and timed.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version,
//		observability.DatabaseCheck(store.DB().DB),
//		observability.RedisCheck(redisClient),
//	)
//	observability.RegisterHealthRoutes(healthMux, checker)
//
// A failing critical check (the database) makes readiness answer 503. Optional
// checks such as Redis or the object store only degrade it, as does a
// connection pool with every connection in use.
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability
