package main

import (
	"github.com/spf13/cobra"

	"github.com/haasonsaas/placefinder/internal/config"
)

// modeFlags are the deployment overrides shared by every subcommand.
type modeFlags struct {
	mode       string
	modelID    string
	agentID    string
	aliasID    string
	region     string
	configFile string
}

func (f *modeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "", "Deployment mode: local, mcp, or agent")
	cmd.Flags().StringVar(&f.modelID, "model-id", "", "Bedrock model id for direct inference")
	cmd.Flags().StringVar(&f.agentID, "agent-id", "", "Bedrock agent id (agent mode)")
	cmd.Flags().StringVar(&f.aliasID, "agent-alias-id", "", "Bedrock agent alias id (agent mode)")
	cmd.Flags().StringVarP(&f.region, "region", "r", "", "AWS region")
	cmd.Flags().StringVarP(&f.configFile, "config", "c", "", "Path to YAML configuration file")
}

func (f *modeFlags) overrides() config.Overrides {
	return config.Overrides{
		Mode:         f.mode,
		ModelID:      f.modelID,
		AgentID:      f.agentID,
		AgentAliasID: f.aliasID,
		Region:       f.region,
		ConfigFile:   f.configFile,
	}
}

// buildChatCmd creates the "chat" command, the interactive conversation loop.
func buildChatCmd() *cobra.Command {
	var flags modeFlags
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Long: `Start an interactive conversation about locations, places, routes, and
weather. Type one of the configured exit commands (default: exit, quit) to
leave.`,
		Example: `  # Chat with the default local deployment
  placefinder chat

  # Chat against a remote Bedrock agent
  placefinder chat --mode agent --agent-id ABCDEF --region us-west-2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), flags.overrides())
		},
	}
	flags.register(cmd)
	return cmd
}

// buildMCPCmd creates the "mcp" command that serves MCP over stdio.
func buildMCPCmd() *cobra.Command {
	var flags modeFlags
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run as an MCP stdio server",
		Long: `Run the assistant as an MCP server on stdin/stdout, exposing the
ask_location_weather, get_deployment_info, and check_health tools. Logs go
to stderr so stdout stays clean for the protocol stream.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(cmd.Context(), flags.overrides())
		},
	}
	flags.register(cmd)
	return cmd
}

// buildInfoCmd creates the "info" command.
func buildInfoCmd() *cobra.Command {
	var flags modeFlags
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the resolved deployment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd.Context(), flags.overrides())
		},
	}
	flags.register(cmd)
	return cmd
}

// buildHealthCmd creates the "health" command.
func buildHealthCmd() *cobra.Command {
	var flags modeFlags
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the structural health of the deployment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(cmd.Context(), flags.overrides())
		},
	}
	flags.register(cmd)
	return cmd
}
