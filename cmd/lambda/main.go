package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"medical-assistant/handler"
	"medical-assistant/internal/app"
	"medical-assistant/internal/config"
	"medical-assistant/internal/repository"
	"medical-assistant/internal/storage"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	app.SetupLogging(cfg.SlogLevel())
	if err := cfg.RequireStateTable(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	state, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable)
	if err != nil {
		slog.Error("failed to create state client", "err", err)
		os.Exit(1)
	}
	// DATA_DIR must point under /tmp on Lambda.
	files, err := storage.New(cfg.DataDir)
	if err != nil {
		slog.Error("failed to create attachment store", "err", err)
		os.Exit(1)
	}
	keys, err := app.KeySource(cfg, func() (aws.Config, error) { return awsCfg, nil })
	if err != nil {
		slog.Error("failed to create key source", "err", err)
		os.Exit(1)
	}
	personas, err := app.Personas(cfg)
	if err != nil {
		slog.Error("failed to load personas", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	chat, err := app.NewChatService(cfg, personas, keys, app.Stores{History: state, Logs: state, Attachments: files})
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(chat, cfg.MaxUploadBytes)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
