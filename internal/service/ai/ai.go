// Package ai adapts text-generation providers to a single Complete call.
package ai

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zhouzirui/dietbot/internal/config"
)

// Provider names, mirrored from the configuration.
const (
	ProviderOpenAI = config.ProviderOpenAI
	ProviderArk    = config.ProviderArk
)

// Completer is a single-shot text generator.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// New builds the generator selected by cfg.Provider.
func New(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (Completer, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%s provider is not configured", cfg.Provider)
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(OpenAIConfig{
			APIKey:      cfg.OpenAIKey,
			Model:       cfg.OpenAIModel,
			BaseURL:     cfg.OpenAIBaseURL,
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		}, logger), nil
	case ProviderArk:
		chatModel, err := cfg.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		return NewService(ctx, ProviderArk, chatModel, cfg.Timeout, logger)
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}
