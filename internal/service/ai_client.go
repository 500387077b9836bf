package service

import (
	"context"
	"time"
)

// Embedder produces an embedding vector for a text
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// IntentGenerator asks a generative model for the raw QueryIntent JSON of a query
type IntentGenerator interface {
	GenerateIntentJSON(ctx context.Context, query string) (string, error)
}

// AIClient is the interface for AI service providers
type AIClient interface {
	Embedder
	IntentGenerator

	// Name identifies the provider in logs and metrics
	Name() string
}

// WithTimeout bounds every provider call of client by d
func WithTimeout(client AIClient, d time.Duration) AIClient {
	if d <= 0 {
		return client
	}
	return &timeoutClient{AIClient: client, timeout: d}
}

type timeoutClient struct {
	AIClient
	timeout time.Duration
}

func (c *timeoutClient) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.AIClient.Embed(ctx, text)
}

func (c *timeoutClient) GenerateIntentJSON(ctx context.Context, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.AIClient.GenerateIntentJSON(ctx, query)
}

// intentSystemPrompt instructs the model to answer with QueryIntent JSON only
const intentSystemPrompt = `You are a real estate search assistant for Kenya. Analyze the user's property search query and extract their intent.

Respond ONLY with a JSON object with exactly these keys:
- "budget": {"min": number or null, "max": number or null} in KES, or null if no budget is mentioned
- "locations": array of Kenyan place names mentioned (counties, towns, neighborhoods); [] if none
- "propertyType": one of "apartment", "house", "villa", "studio", "townhouse", "land", "commercial", "condo", "bedsitter", "maisonette", or null
- "mustHaveFeatures": array of required features (e.g. "parking", "pool", "security", "borehole"); [] if none
- "lifestylePreferences": array of lifestyle preferences (e.g. "quiet", "near schools", "family-friendly"); [] if none
- "intent": one sentence summarizing what the user is looking for

Rules:
- Do not add any other keys and do not wrap the JSON in prose
- For prices: "1.5M" = 1500000, "80k" = 80000
- "under X" sets only max, "from X" or "at least X" sets only min

Examples:
Query: "3 bedroom apartment in Kilimani under 100k per month with parking"
Response: {"budget": {"min": null, "max": 100000}, "locations": ["Kilimani"], "propertyType": "apartment", "mustHaveFeatures": ["parking"], "lifestylePreferences": [], "intent": "Rent a 3 bedroom apartment in Kilimani for at most KES 100,000 per month"}

Query: "quiet family home near good schools in Karen or Runda"
Response: {"budget": null, "locations": ["Karen", "Runda"], "propertyType": "house", "mustHaveFeatures": [], "lifestylePreferences": ["quiet", "near schools", "family-friendly"], "intent": "Find a quiet family house near schools in Karen or Runda"}`
