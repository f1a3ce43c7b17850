// Package app assembles the chat service from configuration. Both binaries
// share it and differ only in the stores they pass in.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"medical-assistant/internal/config"
	"medical-assistant/internal/integrations/mistral"
	"medical-assistant/internal/integrations/paramstore"
	"medical-assistant/internal/persona"
	"medical-assistant/internal/usecase"
)

type Stores struct {
	History     usecase.HistoryStore
	Logs        usecase.LogWriter
	Attachments usecase.AttachmentStore
}

// SetupLogging installs a JSON slog handler on stdout as the default logger.
func SetupLogging(level slog.Level) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

// Personas builds the registry from the defaults plus the optional override file.
func Personas(cfg *config.Config) (*persona.Registry, error) {
	items, err := persona.LoadOverrides(cfg.PersonaFile, persona.Defaults())
	if err != nil {
		return nil, err
	}
	return persona.NewRegistry(items...)
}

// KeySource returns the configured key, or an SSM-backed token source when
// none is set. awsCfg is only used in the SSM case.
func KeySource(cfg *config.Config, awsCfg func() (aws.Config, error)) (mistral.KeySource, error) {
	if !cfg.KeyFromParamStore() {
		return mistral.StaticKey(cfg.MistralAPIKey), nil
	}

	ac, err := awsCfg()
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	params, err := paramstore.New(awsssm.NewFromConfig(ac), cfg.ParamPrefix)
	if err != nil {
		return nil, err
	}
	tokens, err := paramstore.NewTokenSource(params, config.TokenParameter)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// NewChatService wires the provider client, gateway and stores together.
func NewChatService(cfg *config.Config, personas *persona.Registry, keys mistral.KeySource, stores Stores) (*usecase.ChatService, error) {
	client, err := mistral.NewClient(keys,
		mistral.WithBaseURL(cfg.BaseURL),
		mistral.WithTimeout(cfg.CompletionTimeout+5*time.Second),
	)
	if err != nil {
		return nil, err
	}
	gateway, err := usecase.NewGateway(client, cfg.CompletionTimeout)
	if err != nil {
		return nil, err
	}
	return usecase.NewChatService(personas, stores.History, stores.Logs, stores.Attachments, gateway, cfg.Model)
}

// LoadAWS is the default AWS config loader.
func LoadAWS(ctx context.Context) func() (aws.Config, error) {
	return func() (aws.Config, error) {
		return awsconfig.LoadDefaultConfig(ctx)
	}
}
