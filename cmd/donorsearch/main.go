package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/config"
	dbRedis "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/db/redis"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/events"
	logpkg "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/logger"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/metrics"
	sessionrepo "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/repository/session"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/repository/wakeup"
	chiTransport "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/transport/chi"
	healthuc "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/usecase/health"
	planneruc "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/usecase/planner"
	searchuc "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/usecase/search"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/version"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/worker"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting donor search scheduler",
		append(version.Fields(),
			zap.String("env", env),
			zap.Int("http_port", cfg.HTTP.Port),
			zap.Strings("db_addrs", cfg.Database.Addrs),
			zap.String("target_strategy", cfg.Scheduler.TargetStrategy),
			zap.String("delay_strategy", cfg.Scheduler.DelayStrategy),
			zap.Bool("worker", cfg.Worker.Enabled),
		)...,
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	if err := metrics.RegisterHTTPMetrics(prometheus.DefaultRegisterer); err != nil {
		logger.Fatal("Failed to register HTTP metrics", zap.Error(err))
	}
	schedMetrics := metrics.NewScheduler()
	if err := schedMetrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Fatal("Failed to register scheduler metrics", zap.Error(err))
	}

	// Pass nil interface (not a typed nil pointer) when no broker is configured.
	var (
		publisher events.Publisher = events.Noop{}
		broker    healthuc.BrokerChecker
	)
	if cfg.NATS.URL != "" {
		nats, err := events.NewNATSPublisher(events.NATSConfig{
			URL:           cfg.NATS.URL,
			Name:          cfg.NATS.Name,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		publisher, broker = nats, nats
		logger.Info("Publishing events", zap.String("nats_url", cfg.NATS.URL))
	}
	defer publisher.Close()

	planner, err := planneruc.FromConfig(cfg.Scheduler, time.Now, logger)
	if err != nil {
		logger.Fatal("Invalid scheduler configuration", zap.Error(err))
	}
	planner.WithMetrics(schedMetrics)

	sessions := sessionrepo.New(store, cfg.Storage.KeyPrefix)
	wakeups := wakeup.New(store, cfg.Storage.KeyPrefix)

	searchSvc := searchuc.New(sessions, wakeups, planner, publisher, searchuc.Settings{
		PrefixLength:            cfg.Scheduler.NeighborSearchGeohashPrefixLength,
		MaxInitiatingRetryCount: cfg.Scheduler.MaxInitiatingRetryCount,
		LockTTL:                 time.Duration(cfg.Storage.LockTTLSeconds) * time.Second,
	}, logger).WithMetrics(schedMetrics)

	healthSvc := healthuc.New(store, broker)

	server := chiTransport.NewServer(planner, searchSvc, healthSvc, chiTransport.NeighborLimits{
		MaxLevel: cfg.Scheduler.MaxGeohashNeighborSearchLevel,
		MaxCells: cfg.Scheduler.MaxGeohashesPerExecution,
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	workerDone := make(chan struct{})
	if cfg.Worker.Enabled {
		w := worker.New(wakeups, sessions, planner, publisher, worker.Config{
			BatchSize: cfg.Worker.BatchSize,
			Interval:  time.Duration(cfg.Worker.PollIntervalSec) * time.Second,
			Lease:     time.Duration(cfg.Worker.LeaseSeconds) * time.Second,
		}, logger.Named("worker")).WithMetrics(schedMetrics)

		go func() {
			defer close(workerDone)
			_ = w.Run(ctx)
		}()
	} else {
		close(workerDone)
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	<-workerDone

	logger.Info("Server stopped gracefully")
}
