// Package main is the Lambda entry point backing the Bedrock agent's weather
// action group. The agent routes get_weather and get_alerts function calls
// here; location capability lives in the agent's other action groups.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	lambda.Start(func(ctx context.Context, req agentRequest) (agentResponse, error) {
		h, err := containerHandler(ctx)
		if err != nil {
			return errorResponse(&req, nil, err), nil
		}
		return h.Handle(ctx, &req), nil
	})
}
