package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/nyumbani/smartsearch/internal/model"
)

// vocabulary drives keywordEmbedder; index 0 is a constant bias so no vector has zero norm
var vocabulary = []string{"westlands", "kilimani", "apartment", "pool", "house", "karen", "diani", "beach"}

// keywordEmbedder embeds text as keyword presence over vocabulary
type keywordEmbedder struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func newKeywordEmbedder() *keywordEmbedder {
	return &keywordEmbedder{calls: make(map[string]int)}
}

func (e *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls[text]++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	lower := strings.ToLower(text)
	vec := make([]float32, len(vocabulary)+1)
	vec[0] = 1
	for i, w := range vocabulary {
		if strings.Contains(lower, w) {
			vec[i+1] = 1
		}
	}
	return vec, nil
}

func (e *keywordEmbedder) total() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		n += c
	}
	return n
}

// staticGenerator answers every intent request with the same JSON
type staticGenerator struct {
	raw string
	err error
}

func (g staticGenerator) GenerateIntentJSON(context.Context, string) (string, error) {
	return g.raw, g.err
}

// mapResolver expands a query to fixed location names
type mapResolver map[string][]string

func (r mapResolver) Expand(term string) []string {
	return r[strings.ToLower(term)]
}

var errProviderDown = errors.New("connection refused")

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func floatPtr(f float64) *float64 { return &f }

func testListing(id, title, loc string, price float64, amenities ...string) model.Listing {
	return model.Listing{
		ID:          id,
		Title:       title,
		Description: title,
		Location:    loc,
		Price:       price,
		PriceType:   "sale",
		Amenities:   amenities,
		Status:      "active",
	}
}
