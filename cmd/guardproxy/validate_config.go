package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ngoclaw/ollamaguard/internal/config"
)

func newValidateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Load the configuration and report whether it parses cleanly",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("config invalid: %w", err)
			}
			fmt.Printf("config OK: listening on %s:%d, proxying %s\n", cfg.ProxyHost, cfg.ProxyPort, cfg.OllamaURL)
			fmt.Printf("  input guard=%v output guard=%v block-on-guard-error=%v inline-guard-errors=%v\n",
				cfg.EnableInputGuard, cfg.EnableOutputGuard, cfg.BlockOnGuardError, cfg.InlineGuardErrors)
			fmt.Printf("  cache: enabled=%v backend=%s ttl=%ds\n", cfg.Cache.Enabled, cfg.Cache.Backend, cfg.Cache.TTL)
			return nil
		},
	}
}
