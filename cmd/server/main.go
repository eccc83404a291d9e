package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/david/opportunity-radar/internal/api"
	"github.com/david/opportunity-radar/internal/app"
	"github.com/david/opportunity-radar/internal/auth"
	"github.com/david/opportunity-radar/internal/config"
	"github.com/david/opportunity-radar/internal/logger"
	"github.com/david/opportunity-radar/internal/metrics"
	"github.com/david/opportunity-radar/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(os.Stderr, "info").Error("load config", "error", err)
		os.Exit(1)
	}
	log := logger.SetupDefault(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	a, err := app.New(ctx, cfg, log, collector)
	if err != nil {
		log.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	authSvc, err := auth.NewService(a.Store, cfg.JWTSecret, log)
	if err != nil {
		log.Error("auth setup", "error", err)
		os.Exit(1)
	}

	srv, err := api.NewServer(api.Deps{
		Store:       a.Store,
		Sync:        a.Orchestrator,
		Auth:        authSvc,
		Engine:      a.Engine,
		Profile:     a.Profile,
		AdminSecret: cfg.AdminSecret,
		CORSOrigins: cfg.CORSOrigins,
		Gatherer:    reg,
		Logger:      log,
	})
	if err != nil {
		log.Error("api setup", "error", err)
		os.Exit(1)
	}

	if cfg.BackgroundSync {
		runner := scheduler.NewRunner(a.Orchestrator, cfg.SyncTick, log)
		go runner.Run(ctx)
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "sources", len(a.Registry.Active()))
		if err := srv.Start(cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "error", err)
	}
	log.Info("server stopped")
}
