package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/haasonsaas/placefinder/internal/client"
	"github.com/haasonsaas/placefinder/internal/config"
	"github.com/haasonsaas/placefinder/internal/mcpserver"
	"github.com/haasonsaas/placefinder/internal/observability"
)

// buildClient constructs a client for the given overrides, forcing the mode
// when the command implies one.
func buildClient(ctx context.Context, ov config.Overrides) (*client.Client, error) {
	return client.New(ctx, client.WithOverrides(ov))
}

// signalContext cancels on SIGINT/SIGTERM for graceful shutdown.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// runChat drives the interactive loop. UI strings come from the resolved
// configuration so deployments can rebrand the prompt.
func runChat(ctx context.Context, ov config.Overrides) error {
	ctx, cancel := signalContext(ctx)
	defer cancel()

	c, err := buildClient(ctx, ov)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	ui := c.Descriptor().UI
	fmt.Println(ui.AppTitle)
	fmt.Println(ui.WelcomeMessage)
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(ui.PromptText)
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if slices.Contains(ui.ExitCommands, strings.ToLower(line)) {
			fmt.Println("Goodbye!")
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		fmt.Println(c.Chat(ctx, line))
		fmt.Println()
	}
}

// runMCP serves the MCP protocol on stdio until EOF or a signal.
func runMCP(ctx context.Context, ov config.Overrides) error {
	ctx, cancel := signalContext(ctx)
	defer cancel()

	if ov.Mode == "" {
		ov.Mode = string(config.ModeMCP)
	}
	c, err := buildClient(ctx, ov)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	d := c.Descriptor()
	logger := observability.NewLogger(observability.LogConfig{
		Level:  d.Observability.LogLevel,
		Format: d.Observability.LogFormat,
	})
	srv := mcpserver.New(c, logger, nil, os.Stdin, os.Stdout)
	return srv.Run(ctx)
}

func runInfo(ctx context.Context, ov config.Overrides) error {
	c, err := buildClient(ctx, ov)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	return printJSON(c.DeploymentInfo())
}

func runHealth(ctx context.Context, ov config.Overrides) error {
	c, err := buildClient(ctx, ov)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	status := c.HealthCheck(ctx)
	if err := printJSON(status); err != nil {
		return err
	}
	if !status.Healthy {
		return fmt.Errorf("deployment is unhealthy")
	}
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
