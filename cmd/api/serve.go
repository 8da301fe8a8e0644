package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/diogomassis/rinha-dispatch/cmd/handlers"
	"github.com/diogomassis/rinha-dispatch/internal/logger"
	"github.com/diogomassis/rinha-dispatch/internal/models"
	"github.com/diogomassis/rinha-dispatch/internal/persistence"
	"github.com/diogomassis/rinha-dispatch/internal/server"
	"github.com/diogomassis/rinha-dispatch/internal/services/cache"
	chooserchecker "github.com/diogomassis/rinha-dispatch/internal/services/chooser-checker"
	"github.com/diogomassis/rinha-dispatch/internal/services/health"
	"github.com/diogomassis/rinha-dispatch/internal/services/orchestrator"
	"github.com/diogomassis/rinha-dispatch/internal/services/payments"
	servicespersistence "github.com/diogomassis/rinha-dispatch/internal/services/persistence"
	"github.com/diogomassis/rinha-dispatch/internal/services/processor"
	"github.com/diogomassis/rinha-dispatch/internal/services/requeuer"
	"github.com/diogomassis/rinha-dispatch/internal/services/worker"
)

const archiveMaxConns = 30

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP front door, health monitor and dispatch workers",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := cache.NewRinhaRedisClient(cfg)
	if err := redisClient.Ping(ctx); err != nil {
		return err
	}
	defer redisClient.Close()

	client := redisClient.Client()
	queue := cache.NewRinhaRedisQueueService(client, cfg.QueueOrdering)
	recorder := cache.NewRinhaRedisPersistenceService(client, cfg.DedupTTL, logger.Component(log, "recorder"))
	mirror := cache.NewHealthMirror(client, cfg.HealthCacheTTL)

	defaultProcessor := processor.NewHTTPPaymentProcessor(models.ProcessorDefault, cfg.PaymentDefaultEndpoint, cfg.ProcessorDefaultTimeout)
	fallbackProcessor := processor.NewHTTPPaymentProcessor(models.ProcessorFallback, cfg.PaymentFallbackEndpoint, cfg.ProcessorFallbackTimeout)

	state := health.NewHealthState()
	monitor := health.NewMonitor(state, health.MonitorConfig{
		Interval:     cfg.HealthCheckInterval,
		Stagger:      cfg.HealthCheckStagger,
		ProbeTimeout: cfg.HealthProbeTimeout,
	}, mirror, logger.Component(log, "health"), defaultProcessor, fallbackProcessor)

	paymentOrchestrator := orchestrator.NewRinhaPaymentOrchestrator(
		chooserchecker.New(state),
		recorder,
		orchestrator.Config{MaxAttempts: cfg.MaxAttempts, RetryBackoff: cfg.RetryBackoff},
		logger.Component(log, "orchestrator"),
		defaultProcessor, fallbackProcessor,
	)
	if cfg.DeadLetterEnabled {
		paymentOrchestrator.WithDeadLetter(queue)
	}
	if cfg.DatabaseURL != "" {
		db, err := persistence.NewPool(ctx, cfg.DatabaseURL, archiveMaxConns)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := persistence.EnsureSchema(ctx, db); err != nil {
			return err
		}
		paymentOrchestrator.WithArchiver(servicespersistence.NewPaymentPersistenceService(db))
	}

	workers, err := worker.NewRinhaWorkerBuilder().
		WithNumWorkers(cfg.WorkerConcurrency).
		WithQueue(queue).
		WithDispatcher(paymentOrchestrator).
		WithIdleSleep(cfg.DequeueIdleSleep).
		WithLogger(logger.Component(log, "worker")).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build worker pool: %w", err)
	}

	var grpcListener net.Listener
	if cfg.GrpcAddr != "" {
		grpcListener, err = net.Listen("tcp", cfg.GrpcAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.GrpcAddr, err)
		}
	}

	// The monitor is stopped explicitly once the workers have drained.
	monitor.Start(context.WithoutCancel(ctx))
	workers.Start(ctx)

	var deadLetters *requeuer.RinhaRequeuer
	if cfg.DeadLetterEnabled {
		deadLetters = requeuer.NewRinhaRequeuer(queue, cfg.RequeueInterval, logger.Component(log, "requeuer"))
		deadLetters.Start()
	}

	paymentService := payments.NewService(queue, recorder, logger.Component(log, "payments"))
	app := handlers.NewApp(handlers.New(paymentService, state, cfg.InstanceName, logger.Component(log, "api")))

	serveCtx, cancelServe := context.WithCancel(ctx)
	defer cancelServe()
	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("port", cfg.BackendPort).Msg("http server listening")
		errCh <- app.Listen(":" + cfg.BackendPort)
	}()

	if grpcListener != nil {
		grpcServer := server.NewGRPCServer(state)
		go func() {
			errCh <- server.Serve(serveCtx, grpcServer, grpcListener, logger.Component(log, "grpc"))
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case serveErr = <-errCh:
		log.Error().Err(serveErr).Msg("server stopped unexpectedly")
	}

	if err := app.ShutdownWithTimeout(cfg.ShutdownGrace); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
	cancelServe()
	if err := workers.Stop(cfg.ShutdownGrace); err != nil {
		log.Warn().Err(err).Msg("worker pool did not drain cleanly")
	}
	if deadLetters != nil {
		deadLetters.Stop()
	}
	if err := monitor.Stop(cfg.HealthProbeTimeout); err != nil {
		log.Warn().Err(err).Msg("health monitor did not stop cleanly")
	}
	log.Info().Msg("shutdown complete")

	if serveErr != nil && !errors.Is(serveErr, net.ErrClosed) {
		return serveErr
	}
	return nil
}
