// Command rants runs the tool-using LLM gateway: an HTTP server exposing
// OpenAI-compatible /v1/responses and /v1/chat/completions endpoints backed
// by the generate/compile/execute orchestration loop.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rants",
		Short: "Iterative tool-using LLM gateway",
		Long: `rants fronts one or more upstream LLM inference endpoints behind
OpenAI-compatible /v1/responses and /v1/chat/completions surfaces, running a
bounded generate -> compile tool calls -> execute -> append loop per request.`,
	}
	cmd.AddCommand(buildServeCmd(), buildMigrateCmd())
	return cmd
}

func defaultConfigPath() string {
	if path := os.Getenv("RANTS_CONFIG"); path != "" {
		return path
	}
	return "rants.yaml"
}
