package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"

	"medical-assistant/handler"
	"medical-assistant/internal/app"
	"medical-assistant/internal/config"
	"medical-assistant/internal/repository"
	"medical-assistant/internal/session"
	"medical-assistant/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded, using process environment", "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	app.SetupLogging(cfg.SlogLevel())

	awsCfg := lazyAWS(ctx)

	files, err := storage.New(cfg.DataDir)
	if err != nil {
		slog.Error("failed to create data directory", "err", err)
		os.Exit(1)
	}
	stores, err := buildStores(cfg, files, awsCfg)
	if err != nil {
		slog.Error("failed to create stores", "err", err)
		os.Exit(1)
	}
	keys, err := app.KeySource(cfg, awsCfg)
	if err != nil {
		slog.Error("failed to create key source", "err", err)
		os.Exit(1)
	}
	personas, err := app.Personas(cfg)
	if err != nil {
		slog.Error("failed to load personas", "err", err)
		os.Exit(1)
	}

	chat, err := app.NewChatService(cfg, personas, keys, stores)
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}
	router, err := handler.NewRouter(chat, cfg.MaxUploadBytes)
	if err != nil {
		slog.Error("failed to create router", "err", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	slog.Info("medical assistant listening", "addr", cfg.Addr, "model", cfg.Model)
	if err := runServer(ctx, srv); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

// buildStores keeps history in memory and the session log on disk unless
// STATE_TABLE points at DynamoDB.
func buildStores(cfg *config.Config, files *storage.Files, awsCfg func() (aws.Config, error)) (app.Stores, error) {
	if cfg.RequireStateTable() != nil {
		return app.Stores{History: session.NewMemoryStore(), Logs: files, Attachments: files}, nil
	}

	ac, err := awsCfg()
	if err != nil {
		return app.Stores{}, err
	}
	state, err := repository.New(awsdynamodb.NewFromConfig(ac), cfg.StateTable)
	if err != nil {
		return app.Stores{}, err
	}
	return app.Stores{History: state, Logs: state, Attachments: files}, nil
}

// lazyAWS loads the AWS config at most once, on first use.
func lazyAWS(ctx context.Context) func() (aws.Config, error) {
	var (
		once sync.Once
		cfg  aws.Config
		err  error
	)
	load := app.LoadAWS(ctx)
	return func() (aws.Config, error) {
		once.Do(func() { cfg, err = load() })
		return cfg, err
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
