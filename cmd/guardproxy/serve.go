package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ngoclaw/ollamaguard/internal/admission"
	"github.com/ngoclaw/ollamaguard/internal/cache"
	"github.com/ngoclaw/ollamaguard/internal/config"
	"github.com/ngoclaw/ollamaguard/internal/httpapi"
	"github.com/ngoclaw/ollamaguard/internal/logging"
	"github.com/ngoclaw/ollamaguard/internal/orchestrator"
	"github.com/ngoclaw/ollamaguard/internal/scanner"
	"github.com/ngoclaw/ollamaguard/internal/upstream"
	"github.com/ngoclaw/ollamaguard/internal/vault"
)

// reloadTarget is the subset of application state a config-file reload can
// update in place, without restarting the server or dropping in-flight
// requests (spec.md §4.2's "live reconfiguration").
type reloadTarget struct {
	orch      *orchestrator.Orchestrator
	admission *admission.Controller
	vault     *vault.Vault
	live      *config.Config // the *Config shared with httpapi.Deps; mutated in place so its holder sees the reload
	logger    *zap.Logger
}

func (t *reloadTarget) apply(cfg *config.Config) {
	pipeline, err := scanner.Build(cfg, t.vault)
	if err != nil {
		t.logger.Warn("reload: scanner pipeline rebuild failed, keeping previous pipeline", zap.Error(err))
		return
	}
	t.orch.SetPipeline(pipeline)

	if !cfg.OllamaNumParallel.Auto && cfg.OllamaNumParallel.Value > 0 {
		t.admission.SetDefaultLimits(admission.Limits{
			ParallelLimit: cfg.OllamaNumParallel.Value,
			QueueLimit:    cfg.OllamaMaxQueue,
		})
	}
	t.orch.Opts.EnableInputGuard = cfg.EnableInputGuard
	t.orch.Opts.EnableOutputGuard = cfg.EnableOutputGuard
	t.orch.Opts.InlineGuardErrors = cfg.InlineGuardErrors
	t.orch.Opts.WindowThreshold = cfg.WindowThreshold

	*t.live = *cfg
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the guard proxy in the foreground (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

// runServe wires every collaborator together and blocks until a shutdown
// signal arrives, then drains in-flight requests before returning.
func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(logging.Config{Level: "info", Format: "json", OutputPath: "stdout"})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting guardproxy",
		zap.String("name", appName),
		zap.String("version", appVersion),
		zap.String("ollama_url", cfg.OllamaURL),
	)

	app, err := buildApp(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}

	app.server.Start()
	app.admission.StartJanitor()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.Stop(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
		return err
	}
	logger.Info("guardproxy stopped cleanly")
	return nil
}

// application bundles every long-lived component built from config, so
// serve and the service wrapper can share one construction path.
type application struct {
	server    *httpapi.Server
	admission *admission.Controller
	cache     *cache.Manager
	stopWatch func() error
	logger    *zap.Logger
}

func buildApp(cfg *config.Config, logger *zap.Logger) (*application, error) {
	v := vault.New()

	pipeline, err := scanner.Build(cfg, v)
	if err != nil {
		return nil, fmt.Errorf("build scanner pipeline: %w", err)
	}

	cacheManager, err := cache.Build(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("build result cache: %w", err)
	}

	admOpts := []admission.Option{
		admission.WithDefaultQueueLimit(cfg.OllamaMaxQueue),
		admission.WithRegisterer(prometheus.DefaultRegisterer),
	}
	if !cfg.OllamaNumParallel.Auto && cfg.OllamaNumParallel.Value > 0 {
		admOpts = append(admOpts, admission.WithDefaultParallel(cfg.OllamaNumParallel.Value))
	}
	admissionController := admission.New(logger, admOpts...)

	upstreamClient := upstream.New(cfg.OllamaURL, cfg.RequestTimeout, logger)

	orch := orchestrator.New(pipeline, cacheManager, admissionController, upstreamClient, logger, orchestrator.Options{
		EnableInputGuard:  cfg.EnableInputGuard,
		EnableOutputGuard: cfg.EnableOutputGuard,
		InlineGuardErrors: cfg.InlineGuardErrors,
		RequestTimeout:    cfg.RequestTimeout,
		WindowThreshold:   cfg.WindowThreshold,
	})

	server := httpapi.NewServer(
		httpapi.Config{Host: cfg.ProxyHost, Port: cfg.ProxyPort, Mode: "release"},
		httpapi.Deps{
			Orchestrator: orch,
			Admission:    admissionController,
			Upstream:     upstreamClient,
			Config:       cfg,
			Logger:       logger,
		},
	)

	target := &reloadTarget{orch: orch, admission: admissionController, vault: v, live: cfg, logger: logger}
	stopWatch, err := config.Watch(configPath, logger, target.apply)
	if err != nil {
		logger.Warn("config file watch not started, live reconfiguration disabled", zap.Error(err))
		stopWatch = func() error { return nil }
	}

	return &application{server: server, admission: admissionController, cache: cacheManager, stopWatch: stopWatch, logger: logger}, nil
}

// Stop shuts every collaborator down, HTTP server first so no new request
// can arrive while the admission controller and cache are torn down.
func (a *application) Stop(ctx context.Context) error {
	if a.stopWatch != nil {
		if err := a.stopWatch(); err != nil {
			a.logger.Warn("error closing config watcher", zap.Error(err))
		}
	}
	if err := a.server.Stop(ctx); err != nil {
		return err
	}
	a.admission.Stop()
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("error closing cache backend", zap.Error(err))
	}
	return nil
}
