// Package observability provides structured logging, Prometheus metrics,
// health probes, and graceful shutdown for the login bridge.
//
// # Structured Logging
//
// Create a lifecycle logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.Info("api server listening", "addr", ":8096")
//
// Context-aware logging:
//
//	logger.WithField("provider", name).WithError(err).Error("challenge failed")
//
// # Prometheus Metrics
//
// Initialize and record metrics:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.ChallengesTotal.WithLabelValues("oidc", "corp").Inc()
//	metrics.PendingLogins.Set(float64(states.Len()))
//
// The exposition endpoint is served by metrics.Handler().
//
// # Health Checks
//
// Configure liveness and readiness probes:
//
//	checker := observability.NewHealthChecker(db)
//	mux.HandleFunc("/healthz", checker.Liveness)
//	mux.HandleFunc("/readyz", checker.Readiness)
//
// # Graceful Shutdown
//
// Register shutdown steps; they run concurrently under one timeout:
//
//	shutdown := observability.NewShutdownManager(logger, 30*time.Second)
//	shutdown.Register(server.Shutdown)
//	shutdown.Shutdown()
//
// # Related Packages
//
//   - pkg/config: observability configuration
//   - pkg/sso: the instrumented login surface
package observability
