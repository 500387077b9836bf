package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/nyumbani/smartsearch/internal/metrics"
	"github.com/nyumbani/smartsearch/internal/model"
	"github.com/nyumbani/smartsearch/internal/utils"
)

// IntentExtractor turns a free-text query into a validated QueryIntent
type IntentExtractor struct {
	generator IntentGenerator
	provider  string
	logger    *zap.Logger
}

// NewIntentExtractor creates an intent extractor. A nil generator makes every extraction fail as unavailable.
func NewIntentExtractor(generator IntentGenerator, provider string, logger *zap.Logger) *IntentExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntentExtractor{generator: generator, provider: provider, logger: logger}
}

// intentPayload mirrors the JSON contract. Pointers and raw messages tell
// missing keys apart from explicit nulls.
type intentPayload struct {
	Budget               json.RawMessage `json:"budget"`
	Locations            *[]string       `json:"locations"`
	PropertyType         json.RawMessage `json:"propertyType"`
	MustHaveFeatures     *[]string       `json:"mustHaveFeatures"`
	LifestylePreferences *[]string       `json:"lifestylePreferences"`
	Intent               *string         `json:"intent"`
}

// ExtractIntent asks the generative provider for the query's intent.
// Provider failures wrap model.ErrProviderUnavailable; responses that break
// the schema wrap model.ErrInvalidIntent. Nothing is defaulted or coerced.
func (e *IntentExtractor) ExtractIntent(ctx context.Context, query string) (*model.QueryIntent, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return emptyIntent(), nil
	}
	if e.generator == nil {
		e.count("error")
		return nil, fmt.Errorf("intent extraction: no provider configured: %w", model.ErrProviderUnavailable)
	}

	raw, err := e.generator.GenerateIntentJSON(ctx, query)
	if err != nil {
		e.count("error")
		if !errors.Is(err, model.ErrProviderUnavailable) {
			err = fmt.Errorf("%v: %w", err, model.ErrProviderUnavailable)
		}
		return nil, fmt.Errorf("intent extraction: %w", err)
	}

	intent, err := ParseIntent(raw)
	if err != nil {
		e.count("invalid")
		e.logger.Warn("intent response rejected",
			zap.String("provider", e.provider),
			zap.String("response", utils.CompactJSON(raw)),
			zap.Error(err),
		)
		return nil, err
	}

	e.count("success")
	return intent, nil
}

// ParseIntent decodes and validates a raw QueryIntent JSON document
func ParseIntent(raw string) (*model.QueryIntent, error) {
	var p intentPayload
	if err := utils.DecodeStrictJSON(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidIntent, err)
	}

	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", model.ErrInvalidIntent, fmt.Sprintf(format, args...))
	}

	switch {
	case p.Budget == nil:
		return nil, invalid("missing budget")
	case p.Locations == nil:
		return nil, invalid("locations must be an array")
	case p.PropertyType == nil:
		return nil, invalid("missing propertyType")
	case p.MustHaveFeatures == nil:
		return nil, invalid("mustHaveFeatures must be an array")
	case p.LifestylePreferences == nil:
		return nil, invalid("lifestylePreferences must be an array")
	case p.Intent == nil:
		return nil, invalid("intent must be a string")
	}

	intent := &model.QueryIntent{
		Locations:            cleanList(*p.Locations),
		MustHaveFeatures:     cleanList(*p.MustHaveFeatures),
		LifestylePreferences: cleanList(*p.LifestylePreferences),
		Intent:               strings.TrimSpace(*p.Intent),
	}

	if !isNull(p.Budget) {
		var b model.BudgetRange
		if err := utils.DecodeStrictJSON(string(p.Budget), &b); err != nil {
			return nil, invalid("budget: %v", err)
		}
		if err := validateBudget(&b); err != nil {
			return nil, invalid("%v", err)
		}
		if b.Min != nil || b.Max != nil {
			intent.Budget = &b
		}
	}

	if !isNull(p.PropertyType) {
		var pt string
		if err := json.Unmarshal(p.PropertyType, &pt); err != nil {
			return nil, invalid("propertyType must be a string or null")
		}
		pt = strings.ToLower(strings.TrimSpace(pt))
		if !slices.Contains(model.PropertyTypes, pt) {
			return nil, invalid("unknown propertyType %q", pt)
		}
		intent.PropertyType = &pt
	}

	return intent, nil
}

// validateBudget applies business rules to an extracted budget
func validateBudget(b *model.BudgetRange) error {
	if b.Min != nil && *b.Min < 0 {
		return fmt.Errorf("budget.min (%g) cannot be negative", *b.Min)
	}
	if b.Max != nil && *b.Max < 0 {
		return fmt.Errorf("budget.max (%g) cannot be negative", *b.Max)
	}
	if b.Min != nil && b.Max != nil && *b.Min > *b.Max {
		return fmt.Errorf("budget.min (%g) cannot be greater than budget.max (%g)", *b.Min, *b.Max)
	}
	return nil
}

func (e *IntentExtractor) count(status string) {
	metrics.IntentRequestsTotal.WithLabelValues(e.provider, status).Inc()
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func emptyIntent() *model.QueryIntent {
	return &model.QueryIntent{
		Locations:            []string{},
		MustHaveFeatures:     []string{},
		LifestylePreferences: []string{},
	}
}
