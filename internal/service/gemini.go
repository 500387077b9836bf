package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/nyumbani/smartsearch/internal/config"
	"github.com/nyumbani/smartsearch/internal/metrics"
	"github.com/nyumbani/smartsearch/internal/model"
)

const providerGemini = "gemini"

// GeminiClient handles Google Gemini API interactions
type GeminiClient struct {
	client *genai.Client
	config *config.GeminiConfig
	logger *zap.Logger
}

// NewGeminiClient creates a Gemini client using the Gemini API backend
func NewGeminiClient(ctx context.Context, cfg *config.GeminiConfig, logger *zap.Logger) (*GeminiClient, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.APIBase != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.APIBase}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiClient{client: client, config: cfg, logger: logger}, nil
}

// Name implements AIClient
func (c *GeminiClient) Name() string {
	return providerGemini
}

// Embed creates one embedding with the configured Gemini embedding model
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if !c.config.Enabled {
		return nil, fmt.Errorf("gemini is not configured: %w", model.ErrProviderUnavailable)
	}

	start := time.Now()
	resp, err := c.client.Models.EmbedContent(ctx, c.config.EmbeddingModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, nil)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerGemini, "error").Inc()
		return nil, wrapGeminiError("embedding", err)
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerGemini, "error").Inc()
		return nil, fmt.Errorf("empty embedding response: %w", model.ErrProviderUnavailable)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(providerGemini, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(providerGemini).Observe(time.Since(start).Seconds())

	return resp.Embeddings[0].Values, nil
}

// GenerateIntentJSON asks the chat model for QueryIntent JSON with a JSON response MIME type
func (c *GeminiClient) GenerateIntentJSON(ctx context.Context, query string) (string, error) {
	if !c.config.Enabled {
		return "", fmt.Errorf("gemini is not configured: %w", model.ErrProviderUnavailable)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.config.ChatModel, genai.Text(query), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(intentSystemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr(float32(c.config.ChatTemperature)),
	})
	if err != nil {
		return "", wrapGeminiError("generate", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty gemini response: %w", model.ErrProviderUnavailable)
	}
	return text, nil
}

func wrapGeminiError(op string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("gemini %s error %d: %s: %w", op, apiErr.Code, apiErr.Message, model.ErrProviderUnavailable)
	}
	return fmt.Errorf("gemini %s request failed: %v: %w", op, err, model.ErrProviderUnavailable)
}
