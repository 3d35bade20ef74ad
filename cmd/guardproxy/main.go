// Command guardproxy is the process entrypoint: a cobra root command that
// runs the security-scanning reverse proxy by default, plus a
// validate-config subcommand and an OS-service installer subcommand.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	appName    = "guardproxy"
	appVersion = "0.1.0"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:     appName,
		Short:   "Security-scanning reverse proxy in front of a local LLM backend",
		Version: appVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default ./config.yaml)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newValidateConfigCmd())
	root.AddCommand(newServiceCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
