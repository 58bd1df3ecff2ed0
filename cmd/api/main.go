package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"github.com/redis/go-redis/v9"
	"github.com/soheilhy/cmux"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/nyashahama/parenting-anxiety-backend/internal/api"
	"github.com/nyashahama/parenting-anxiety-backend/internal/auth"
	"github.com/nyashahama/parenting-anxiety-backend/internal/config"
	"github.com/nyashahama/parenting-anxiety-backend/internal/db"
	"github.com/nyashahama/parenting-anxiety-backend/internal/export"
	"github.com/nyashahama/parenting-anxiety-backend/internal/otp"
	"github.com/nyashahama/parenting-anxiety-backend/internal/scoring"
	"github.com/nyashahama/parenting-anxiety-backend/internal/sms"
	"github.com/nyashahama/parenting-anxiety-backend/internal/store"
	"github.com/nyashahama/parenting-anxiety-backend/internal/worker"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port)

	// ── Content ───────────────────────────────────────────────────────────────
	// Catalog and thresholds are validated together; a bad deploy fails here.
	engine, err := scoring.LoadEngine(cfg.ContentDir)
	if err != nil {
		return fmt.Errorf("content: %w", err)
	}
	logger.Info("content loaded",
		"questions", len(engine.Questions()),
		"categories", len(engine.Categories()),
	)

	// ── Database ──────────────────────────────────────────────────────────────
	pool, queries, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	// ── Store (atomic multi-step writes) ──────────────────────────────────────
	st := store.New(pool, queries)

	// ── Redis (OTP codes) ─────────────────────────────────────────────────────
	rdb, err := openRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer rdb.Close()
	logger.Info("redis connected")

	// ── SMS ───────────────────────────────────────────────────────────────────
	var sender sms.Sender
	if cfg.SolapiAPIKey != "" {
		sender = sms.NewSolapiClient(cfg.SolapiAPIKey, cfg.SolapiAPISecret, cfg.SolapiSender, cfg.SolapiURL)
		logger.Info("sms: using SOLAPI")
	} else {
		sender = sms.NewLogSender(logger)
		logger.Warn("sms: SOLAPI not configured, codes are logged only")
	}

	// ── Identity ──────────────────────────────────────────────────────────────
	otpService := otp.NewService(otp.NewRedisStore(rdb), sender, otp.Config{
		TTL:         cfg.OTPTTL,
		MaxAttempts: cfg.OTPMaxAttempts,
		DevMode:     cfg.OTPDevMode,
	}, logger)

	tokens, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	// ── Export ────────────────────────────────────────────────────────────────
	var publisher export.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = export.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		logger.Info("export: publishing to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		publisher = export.NewLogPublisher(logger)
		logger.Warn("export: KAFKA_BROKERS not set, rows are logged only")
	}
	defer publisher.Close()

	// ── Worker ────────────────────────────────────────────────────────────────
	job := worker.NewJob(queries, st, publisher, engine.Config().GlobalComposite.Categories, logger)
	runner := worker.NewRunner(job, st, queries, worker.RunnerConfig{
		Workers:      cfg.WorkerCount,
		PollInterval: cfg.PollInterval,
		JobTimeout:   cfg.JobTimeout,
		MaxRetries:   cfg.MaxRetries,
	}, logger)

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.NewServer(
		queries,
		st,
		engine,
		otpService,
		tokens,
		runner, // *Runner satisfies worker.Enqueuer
		api.Config{
			BaseURL:       cfg.BaseURL,
			Env:           cfg.Env,
			ShareTTL:      cfg.ShareTTL,
			AllowedOrigin: cfg.AllowedOrigin,
		},
		logger,
	)

	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// ── gRPC health ───────────────────────────────────────────────────────────
	// Served on the same port as HTTP so orchestrators can use native gRPC
	// health probes.
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// ── Listener mux ──────────────────────────────────────────────────────────
	lis, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	mux := cmux.New(lis)
	grpcL := mux.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpL := mux.Match(cmux.Any())

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	// Root context cancelled by OS signal. Worker and HTTP server both respect it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start the worker pool in a background goroutine. It blocks until ctx is done.
	workerDone := make(chan struct{})
	go func() {
		runner.Start(ctx)
		close(workerDone)
	}()

	serverErr := make(chan error, 3)
	go func() {
		if err := grpcServer.Serve(grpcL); err != nil && !isClosed(err) {
			serverErr <- fmt.Errorf("grpc: %w", err)
		}
	}()
	go func() {
		if err := srv.Serve(httpL); err != nil && !errors.Is(err, http.ErrServerClosed) && !isClosed(err) {
			serverErr <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		logger.Info("server listening", "addr", lis.Addr().String())
		if err := mux.Serve(); err != nil && !isClosed(err) {
			serverErr <- fmt.Errorf("mux: %w", err)
		}
	}()

	// Block until either a signal arrives or a server dies unexpectedly.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	// Report NOT_SERVING first so probes stop routing traffic here.
	healthServer.Shutdown()

	// Give in-flight HTTP requests up to 20 seconds to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	grpcServer.GracefulStop()
	mux.Close()

	// Let running export jobs finish their current attempt.
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn("worker did not stop before the shutdown deadline")
	}

	logger.Info("shutdown complete")
	return nil
}

// openDB opens the connection pool and verifies it is reachable.
func openDB(dsn string) (*sql.DB, *db.Queries, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open: %w", err)
	}

	// Tune the connection pool.
	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(10)
	pool.SetConnMaxLifetime(5 * time.Minute)
	pool.SetConnMaxIdleTime(2 * time.Minute)

	// Verify the connection is reachable before proceeding.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}

	return pool, db.New(pool), nil
}

// openRedis parses a redis:// URL and pings the server.
func openRedis(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return client, nil
}

// isClosed reports whether err only signals that the listener was closed
// during shutdown.
func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, cmux.ErrListenerClosed) ||
		errors.Is(err, cmux.ErrServerClosed) ||
		errors.Is(err, grpc.ErrServerStopped)
}
