package main

import (
	"context"
	"fmt"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ngoclaw/ollamaguard/internal/config"
	"github.com/ngoclaw/ollamaguard/internal/logging"
)

// program adapts buildApp/runServe to the kardianos/service.Interface
// contract so guardproxy can install itself as a systemd/Windows/launchd
// service instead of running in the foreground.
type program struct {
	cancel context.CancelFunc
	logger *zap.Logger
}

func (p *program) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.run(ctx)
	return nil
}

func (p *program) run(ctx context.Context) {
	if err := runServeUnderContext(ctx, p.logger); err != nil {
		p.logger.Error("service run exited with error", zap.Error(err))
	}
}

func (p *program) Stop(s service.Service) error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

func newServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Install, control, or run guardproxy as an OS service",
	}
	for _, action := range []string{"install", "uninstall", "start", "stop", "restart"} {
		action := action
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the guardproxy OS service", action),
			RunE: func(cmd *cobra.Command, args []string) error {
				return controlService(action)
			},
		})
	}
	cmd.AddCommand(&cobra.Command{
		Use:    "run",
		Short:  "Run under the OS service manager (invoked by the manager itself, not interactively)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := newKardianosService()
			if err != nil {
				return err
			}
			return svc.Run()
		},
	})
	return cmd
}

func newKardianosService() (service.Service, *program, error) {
	logger, err := logging.New(logging.Config{Level: "info", Format: "json", OutputPath: "stdout"})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	prg := &program{logger: logger}
	svcConfig := &service.Config{
		Name:        appName,
		DisplayName: "GuardProxy Security Scanning Proxy",
		Description: "Security-scanning reverse proxy in front of a local LLM backend.",
		Arguments:   []string{"service", "run"},
	}
	if configPath != "" {
		svcConfig.Arguments = append(svcConfig.Arguments, "--config", configPath)
	}
	svc, err := service.New(prg, svcConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("construct service: %w", err)
	}
	return svc, prg, nil
}

func controlService(action string) error {
	svc, _, err := newKardianosService()
	if err != nil {
		return err
	}
	if err := service.Control(svc, action); err != nil {
		return fmt.Errorf("%s service: %w", action, err)
	}
	fmt.Printf("service %s: ok\n", action)
	return nil
}

// runServeUnderContext is runServe's body parameterized by an externally
// owned context, so the service wrapper's Stop can cancel it without the
// os/signal plumbing that the foreground serve command uses instead.
func runServeUnderContext(ctx context.Context, logger *zap.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	app, err := buildApp(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	app.server.Start()
	app.admission.StartJanitor()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return app.Stop(shutdownCtx)
}
