// fedimint-http exposes federated e-cash wallets over HTTP.
//
// The gateway serves a REST API under /fedimint/v2, JSON-RPC 2.0 over a
// WebSocket at /fedimint/v2/ws and placeholder Cashu routes under /cashu/v1,
// all backed by one or more joined federations.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// flagEnv maps command-line flags onto the environment variables the config
// loader reads, so flags take precedence over the file and the environment.
var flagEnv = map[string]string{
	"mode":                   "FEDIMINT_HTTP_MODE",
	"port":                   "FEDIMINT_HTTP_API_PORT",
	"domain":                 "DOMAIN",
	"password":               "FEDIMINT_HTTP_PASSWORD",
	"fm-db-path":             "FEDIMINT_HTTP_DATABASE_PATH",
	"federation-invite-code": "FEDIMINT_HTTP_INVITE_CODE",
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "fedimint-http",
		Short:         "HTTP, WebSocket and Cashu gateway for Fedimint federations",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return start(cmd, configPath)
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", configPathFromEnv(), "path to the YAML config file")
	root.PersistentFlags().String("mode", "", "mounted surfaces: default, fedimint, cashu or ws")
	root.PersistentFlags().Int("port", 0, "API listen port")
	root.PersistentFlags().String("domain", "", "public base URL")
	root.PersistentFlags().String("password", "", "bearer password")
	root.PersistentFlags().String("fm-db-path", "", "SQLite database path")
	root.PersistentFlags().String("federation-invite-code", "", "invite code joined as the primary federation")

	root.AddCommand(startCmd(&configPath), hashPasswordCmd(), versionCmd())
	return root
}

func startCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the gateway (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return start(cmd, *configPath)
		},
	}
}

func start(cmd *cobra.Command, configPath string) error {
	if err := applyFlags(cmd); err != nil {
		return err
	}
	return run(cmd.Context(), configPath)
}

// applyFlags exports every flag the user set into the environment.
func applyFlags(cmd *cobra.Command) error {
	for name, env := range flagEnv {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := os.Setenv(env, f.Value.String()); err != nil {
			return fmt.Errorf("applying --%s: %w", name, err)
		}
	}
	return nil
}

// configPathFromEnv returns FEDIMINT_HTTP_CONFIG if set, otherwise the default.
func configPathFromEnv() string {
	if path := os.Getenv("FEDIMINT_HTTP_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fedimint-http %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
