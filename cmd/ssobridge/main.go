package main

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mediaserve/ssobridge/pkg/config"
	"github.com/mediaserve/ssobridge/pkg/identity"
	"github.com/mediaserve/ssobridge/pkg/middleware"
	"github.com/mediaserve/ssobridge/pkg/observability"
	"github.com/mediaserve/ssobridge/pkg/sso"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrusLevel(cfg.Observability.LogLevel))

	lifecycle := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(ctx); err != nil {
		cancel()
		log.Fatalf("Failed to reach database: %v", err)
	}
	if err := identity.EnsureSchema(ctx, db); err != nil {
		cancel()
		log.Fatalf("Failed to initialize schema: %v", err)
	}
	cancel()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	states := sso.NewStateStore(cfg.Login.StateTTL)
	states.SetSweepHook(func(removed int) {
		metrics.SweptStatesTotal.Add(float64(removed))
	})

	storage := sso.NewStorage(db)
	factory := sso.NewFactory(storage, states, cfg.Server.BaseURL, log)
	users := identity.NewAuthority(db, log)
	sessions := identity.NewSessionManager(db, cfg.Login.SessionTTL, log)
	bridge := sso.NewBridge(users, sessions, log)
	handlers := sso.NewHandlers(storage, factory, states, bridge, metrics, log)

	adminKey := middleware.NewAdminKeyMiddleware(cfg.Server.AdminKey)

	router := mux.NewRouter()
	handlers.RegisterRoutes(router, adminKey.Handler)

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	health := observability.NewHealthChecker(db)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", health.Liveness)
	healthMux.HandleFunc("/readyz", health.Readiness)
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Login.SessionCleanupSchedule, func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), time.Minute)
		defer cleanupCancel()
		if _, err := sessions.CleanupExpiredSessions(cleanupCtx); err != nil {
			log.WithError(err).Warn("session cleanup failed")
		}
	})
	if err != nil {
		log.Fatalf("Invalid session cleanup schedule: %v", err)
	}
	scheduler.Start()

	shutdown := observability.NewShutdownManager(lifecycle, cfg.Server.ShutdownTimeout)
	shutdown.Register(apiServer.Shutdown)
	shutdown.Register(healthServer.Shutdown)
	shutdown.Register(func(context.Context) error {
		scheduler.Stop()
		return nil
	})
	shutdown.Register(func(context.Context) error {
		return db.Close()
	})

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		lifecycle.Info("api server listening", "addr", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		lifecycle.Info("health server listening", "addr", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		lifecycle.Info("shutting down")
		shutdown.Shutdown()
		return nil
	})

	if err := group.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func logrusLevel(level observability.LogLevel) logrus.Level {
	switch level {
	case observability.DebugLevel:
		return logrus.DebugLevel
	case observability.WarnLevel:
		return logrus.WarnLevel
	case observability.ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
