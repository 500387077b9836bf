package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/nyumbani/smartsearch/internal/config"
	"github.com/nyumbani/smartsearch/internal/metrics"
	"github.com/nyumbani/smartsearch/internal/model"
)

const providerOpenAI = "openai"

// OpenAIClient handles OpenAI-compatible API interactions
type OpenAIClient struct {
	client *openai.Client
	config *config.OpenAIConfig
	logger *zap.Logger
}

// NewOpenAIClient creates a new OpenAI-compatible client
func NewOpenAIClient(cfg *config.OpenAIConfig, logger *zap.Logger) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIBase != "" {
		clientCfg.BaseURL = cfg.APIBase
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		config: cfg,
		logger: logger,
	}
}

// Name implements AIClient
func (c *OpenAIClient) Name() string {
	return providerOpenAI
}

// Embed creates one embedding using the configured embedding model
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if !c.config.Enabled {
		return nil, fmt.Errorf("openai is not configured: %w", model.ErrProviderUnavailable)
	}

	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          openai.EmbeddingModel(c.config.EmbeddingModel),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if c.config.EmbeddingDimensions > 0 {
		req.Dimensions = c.config.EmbeddingDimensions
	}

	start := time.Now()
	resp, err := c.client.CreateEmbeddings(ctx, req)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerOpenAI, "error").Inc()
		return nil, parseAPIError("embedding", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerOpenAI, "error").Inc()
		return nil, fmt.Errorf("empty embedding response: %w", model.ErrProviderUnavailable)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(providerOpenAI, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(providerOpenAI).Observe(time.Since(start).Seconds())
	c.logger.Debug("embedding created",
		zap.String("model", string(resp.Model)),
		zap.Int("dimensions", len(resp.Data[0].Embedding)),
		zap.Int("tokens", resp.Usage.TotalTokens),
	)

	return resp.Data[0].Embedding, nil
}

// GenerateIntentJSON asks the chat model for QueryIntent JSON in JSON mode
func (c *OpenAIClient) GenerateIntentJSON(ctx context.Context, query string) (string, error) {
	if !c.config.Enabled {
		return "", fmt.Errorf("openai is not configured: %w", model.ErrProviderUnavailable)
	}

	req := openai.ChatCompletionRequest{
		Model: c.config.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: intentSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
		Temperature:    float32(c.config.ChatTemperature),
		MaxTokens:      c.config.ChatMaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", parseAPIError("chat", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in chat response: %w", model.ErrProviderUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

// parseAPIError extracts a readable message and wraps model.ErrProviderUnavailable
func parseAPIError(op string, err error) error {
	wrap := model.ErrProviderUnavailable

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("%s API error %d: %s: %w", op, reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("%s API error %d: %w", op, reqErr.HTTPStatusCode, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s API error %d: %s: %w", op, apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s request: %v: %w", op, err, wrap)
	}

	return fmt.Errorf("%s request failed: %v: %w", op, err, wrap)
}

// extractDetail reads the "detail" or "error.message" field of a JSON error body
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
		Error  struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	if parsed.Detail != "" {
		return parsed.Detail
	}
	return parsed.Error.Message
}
