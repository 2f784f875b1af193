package ai

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIConfig configures the OpenAI chat completion client.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	Timeout     time.Duration
}

// OpenAIClient sends the exchange to the OpenAI chat completions API.
type OpenAIClient struct {
	client *openai.Client
	cfg    OpenAIConfig
	logger *zap.Logger
}

// NewOpenAIClient creates a client, honoring a custom base URL for
// OpenAI-compatible gateways.
func NewOpenAIClient(cfg OpenAIConfig, logger *zap.Logger) *OpenAIClient {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT3Dot5Turbo
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
		logger: logger.Named("ai"),
	}
}

// Complete sends one request and returns the content of the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	requestID := uuid.NewString()
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}
	if c.cfg.Temperature != nil {
		req.Temperature = float32(*c.cfg.Temperature)
	}
	if c.cfg.TopP != nil {
		req.TopP = float32(*c.cfg.TopP)
	}
	if c.cfg.MaxTokens != nil {
		req.MaxTokens = *c.cfg.MaxTokens
	}

	started := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", &GenerationError{Provider: ProviderOpenAI, RequestID: requestID, Err: err}
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &GenerationError{Provider: ProviderOpenAI, RequestID: requestID, Err: ErrEmptyResponse}
	}

	content := resp.Choices[0].Message.Content
	c.logger.Info("generated response",
		zap.String("provider", ProviderOpenAI),
		zap.String("request_id", requestID),
		zap.String("model", resp.Model),
		zap.Int("length", len(content)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("elapsed", time.Since(started)),
	)
	return content, nil
}
