package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"medical-assistant/internal/domain"
	"medical-assistant/internal/integrations/mistral"
)

const defaultCompletionTimeout = 30 * time.Second

// LLMClient is the remote completion service.
type LLMClient interface {
	Chat(ctx context.Context, req domain.ProviderRequest) (mistral.Completion, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Gateway is the only place provider failures are seen. Callers get a
// CompletionResult and never an error.
type Gateway struct {
	llm     LLMClient
	timeout time.Duration
}

func NewGateway(llm LLMClient, timeout time.Duration) (*Gateway, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if timeout <= 0 {
		timeout = defaultCompletionTimeout
	}
	return &Gateway{llm: llm, timeout: timeout}, nil
}

func (g *Gateway) Complete(ctx context.Context, req domain.ProviderRequest) domain.CompletionResult {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	out, err := g.llm.Chat(ctx, req)
	if err != nil {
		attrs := []any{"err", err, "model", req.Model, "duration", time.Since(start)}
		if status, ok := upstreamStatusCode(err); ok {
			attrs = append(attrs, "status", status)
		}
		slog.Error("completion failed", attrs...)
		return domain.CompletionResult{Status: domain.CompletionProviderError}
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0]) == "" {
		slog.Warn("completion returned no choices", "model", req.Model, "id", out.ID)
		return domain.CompletionResult{Status: domain.CompletionEmpty}
	}

	slog.Info("completion succeeded", "model", req.Model, "id", out.ID, "duration", time.Since(start))
	return domain.CompletionResult{Status: domain.CompletionOK, Text: strings.TrimSpace(out.Choices[0])}
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
