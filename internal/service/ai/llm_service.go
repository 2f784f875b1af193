package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service runs the system/user exchange through an eino chain backed by any
// chat model (Ark in production).
type Service struct {
	provider string
	timeout  time.Duration
	chain    compose.Runnable[map[string]any, *schema.Message]
	logger   *zap.Logger
}

// NewService compiles the two-message prompt chain around chatModel.
func NewService(ctx context.Context, provider string, chatModel model.BaseChatModel, timeout time.Duration, logger *zap.Logger) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		provider: provider,
		timeout:  timeout,
		chain:    runnable,
		logger:   logger.Named("ai"),
	}, nil
}

// Complete sends one request and returns the text of the reply.
func (s *Service) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	requestID := uuid.NewString()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	response, err := s.chain.Invoke(ctx, map[string]any{
		"system": systemPrompt,
		"query":  userPrompt,
	})
	if err != nil {
		return "", &GenerationError{Provider: s.provider, RequestID: requestID, Err: err}
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", &GenerationError{Provider: s.provider, RequestID: requestID, Err: ErrEmptyResponse}
	}

	s.logger.Info("generated response",
		zap.String("provider", s.provider),
		zap.String("request_id", requestID),
		zap.Int("length", len(response.Content)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return response.Content, nil
}
