package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/gridrace/internal/adapters/http/api"
	"github.com/okian/gridrace/internal/adapters/store"
	service "github.com/okian/gridrace/internal/app"
	"github.com/okian/gridrace/internal/config"
	"github.com/okian/gridrace/internal/domain/schedule"
	"github.com/okian/gridrace/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize logging
	if err := logger.Init(); err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Load the contest master data: start time, period, checkpoints,
	// task schedule and seed users.
	sched, seedUsers, err := schedule.Load(ctx, cfg.MasterData, cfg.BootstrapOffsetMS)
	if err != nil {
		log.Error(ctx, "failed to load master data", logger.String("path", cfg.MasterData), logger.Error(err))
		return
	}
	log.Info(ctx, "master data loaded",
		logger.String("path", cfg.MasterData),
		logger.Int64("start_at", sched.StartAt()),
		logger.Int64("period", sched.Period()),
		logger.Int("tasks", len(sched.Tasks())),
	)

	st := store.NewMemory(ctx, sched,
		store.WithSeedUsers(seedUsers),
		store.WithGeneratedUsers(cfg.GeneratedUsers),
	)

	// Background scoring and ranking distribution.
	if cfg.Mode == config.ModeScore || cfg.Mode == config.ModeBoth {
		engine := service.NewEngine(sched, st)
		go engine.Run(ctx)
	}

	if cfg.Mode == config.ModeScore {
		// Scoring-only process: no HTTP surface, run until signalled.
		<-ctx.Done()
		log.Info(ctx, "scoring stopped")
		return
	}

	svc := service.New(sched, st, service.WithLogger(log))

	// HTTP mux and routes.
	mux := http.NewServeMux()
	apiServer := api.NewServer(svc)
	apiServer.Register(ctx, mux)

	// No WriteTimeout: SSE streams stay open for the whole contest period.
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}
