// Package main provides the CLI entry point for the PlaceFinder assistant.
//
// PlaceFinder answers natural-language questions about locations, places,
// routes, and weather, backed by Amazon Bedrock for inference, AWS Location
// Service tools over MCP, and the National Weather Service API.
//
// # Basic Usage
//
// Start an interactive conversation:
//
//	placefinder chat
//
// Run as an MCP stdio server:
//
//	placefinder mcp
//
// Inspect the resolved deployment:
//
//	placefinder info
//	placefinder health
//
// # Environment Variables
//
//   - PLACEFINDER_MODE: deployment mode (local, mcp, agent)
//   - PLACEFINDER_MODEL_ID: Bedrock model id for direct inference
//   - PLACEFINDER_AGENT_ID / PLACEFINDER_AGENT_ALIAS_ID: Bedrock agent selector
//   - PLACEFINDER_REGION (or AWS_REGION): AWS region
//   - PLACEFINDER_CONFIG: path to the local configuration file
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "placefinder",
		Short: "PlaceFinder - location and weather assistant",
		Long: `PlaceFinder answers questions about locations, places, routes, and weather.

Deployment modes: local (direct Bedrock inference), mcp (stdio server),
agent (remote Bedrock agent).`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildChatCmd(),
		buildMCPCmd(),
		buildInfoCmd(),
		buildHealthCmd(),
	)
	return rootCmd
}
