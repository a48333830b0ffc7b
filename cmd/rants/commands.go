package main

import (
	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command that starts the gateway's HTTP
// surface.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the rants gateway server",
		Long: `Start the rants gateway server.

The server will:
1. Load configuration from the specified file (or rants.yaml)
2. Open the sqlite state database, applying the schema if needed
3. Build the tool registry and upstream clients from the configured models
4. Serve /health, /v1/models, /v1/responses, and /v1/chat/completions

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolvePath(configPath)
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

// buildMigrateCmd creates the "migrate" command that applies the sqlite
// schema without starting the server.
func buildMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the sqlite schema for the configured state database",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolvePath(configPath)
			return runMigrate(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	return cmd
}

func resolvePath(configPath string) string {
	if configPath == "" {
		return defaultConfigPath()
	}
	return configPath
}
