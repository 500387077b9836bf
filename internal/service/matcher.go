package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nyumbani/smartsearch/internal/logger"
	"github.com/nyumbani/smartsearch/internal/metrics"
	"github.com/nyumbani/smartsearch/internal/model"
)

// LocationResolver is the part of the location resolver the matcher needs
type LocationResolver interface {
	Expand(term string) []string
}

// MatcherConfig holds the matcher thresholds
type MatcherConfig struct {
	SimilarityFloor  float64 // results below this similarity are dropped
	RankTopK         int     // candidates ranked before filtering
	MaxResults       int     // results kept after filtering
	EmbedConcurrency int     // listing embeddings computed in parallel
}

// DefaultMatcherConfig returns the production thresholds
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		SimilarityFloor:  0.5,
		RankTopK:         10,
		MaxResults:       5,
		EmbedConcurrency: 8,
	}
}

// ProgressFunc receives intermediate smart match events
type ProgressFunc func(event string, data any)

// Matcher ranks listings against free-text queries by embedding similarity
type Matcher struct {
	embedder Embedder
	intents  *IntentExtractor
	resolver LocationResolver
	ranker   *Ranker
	cfg      MatcherConfig
	logger   *zap.Logger
}

// NewMatcher creates a matcher. embedder is normally the embedding cache; resolver may be nil.
func NewMatcher(
	embedder Embedder,
	intents *IntentExtractor,
	resolver LocationResolver,
	ranker *Ranker,
	cfg MatcherConfig,
	log *zap.Logger,
) *Matcher {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = 1
	}
	return &Matcher{
		embedder: embedder,
		intents:  intents,
		resolver: resolver,
		ranker:   ranker,
		cfg:      cfg,
		logger:   log,
	}
}

// Embed returns the embedding for text, or an empty vector when the provider fails
func (m *Matcher) Embed(ctx context.Context, text string) []float32 {
	text = strings.TrimSpace(text)
	if text == "" {
		return []float32{}
	}
	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		logger.FromContextOr(ctx, m.logger).Warn("embedding failed, treating as no signal", zap.Error(err))
		return []float32{}
	}
	if vec == nil {
		return []float32{}
	}
	return vec
}

// Similarity is CosineSimilarity that also logs mismatched non-empty dimensions
func (m *Matcher) Similarity(a, b []float32) float64 {
	if len(a) > 0 && len(b) > 0 && len(a) != len(b) {
		m.logger.Warn("embedding dimension mismatch", zap.Int("a", len(a)), zap.Int("b", len(b)))
	}
	return CosineSimilarity(a, b)
}

// EmbedListing computes a listing's embedding, surfacing provider errors, and returns its text hash
func (m *Matcher) EmbedListing(ctx context.Context, listing model.Listing) ([]float32, string, error) {
	text := listing.EmbeddingText()
	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, "", fmt.Errorf("embed listing %s: %w", listing.ID, err)
	}
	if len(vec) == 0 {
		return nil, "", fmt.Errorf("embed listing %s: empty vector: %w", listing.ID, model.ErrProviderUnavailable)
	}
	return vec, TextHash(text), nil
}

// listingVector reuses a stored vector while the listing text is unchanged
func (m *Matcher) listingVector(ctx context.Context, listing model.Listing, dims int) []float32 {
	text := listing.EmbeddingText()
	if stored := listing.Embedding.Slice(); len(stored) == dims &&
		listing.EmbeddingHash != nil && *listing.EmbeddingHash == TextHash(text) {
		return stored
	}
	return m.Embed(ctx, text)
}

// RankListings orders listings by similarity to query, best first, keeping at most topK (all when topK <= 0).
// An empty query embedding yields no results.
func (m *Matcher) RankListings(ctx context.Context, query string, listings []model.Listing, topK int) ([]model.RankedListing, error) {
	queryVec := m.Embed(ctx, query)
	if len(queryVec) == 0 || len(listings) == 0 {
		return []model.RankedListing{}, nil
	}

	results := make([]model.RankedListing, len(listings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.EmbedConcurrency)
	for i := range listings {
		g.Go(func() error {
			vec := m.listingVector(gctx, listings[i], len(queryVec))
			results[i] = model.RankedListing{
				Listing:    listings[i],
				Similarity: m.Similarity(queryVec, vec),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rank listings: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// SmartMatch ranks listings and extracts intent in parallel, then keeps results
// above the similarity floor whose location fits the intent.
func (m *Matcher) SmartMatch(ctx context.Context, query string, listings []model.Listing) (*model.SmartMatchResult, error) {
	return m.SmartMatchWithProgress(ctx, query, listings, nil)
}

// SmartMatchWithProgress is SmartMatch that reports "ranked" and "intent" events as they complete.
// progress calls are serialized.
func (m *Matcher) SmartMatchWithProgress(
	ctx context.Context,
	query string,
	listings []model.Listing,
	progress ProgressFunc,
) (*model.SmartMatchResult, error) {
	start := time.Now()
	defer func() { metrics.SmartMatchDuration.Observe(time.Since(start).Seconds()) }()

	query = strings.TrimSpace(query)
	if query == "" {
		metrics.SmartMatchResultsTotal.WithLabelValues("empty").Inc()
		return &model.SmartMatchResult{Matches: []model.RankedListing{}, Reasoning: "Empty query"}, nil
	}

	var mu sync.Mutex
	emit := func(event string, data any) {
		if progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		progress(event, data)
	}

	var (
		ranked []model.RankedListing
		intent *model.QueryIntent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ranked, err = m.RankListings(gctx, query, listings, m.cfg.RankTopK)
		if err == nil {
			emit("ranked", map[string]any{"candidates": len(ranked)})
		}
		return err
	})
	g.Go(func() error {
		var err error
		intent, err = m.intents.ExtractIntent(gctx, query)
		if err == nil {
			emit("intent", intent)
		}
		return err
	})
	if err := g.Wait(); err != nil {
		metrics.SmartMatchResultsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("smart match: %w", err)
	}

	locationTerms := m.expandLocations(intent.Locations)

	matches := make([]model.RankedListing, 0, m.cfg.MaxResults)
	sims := make([]float64, 0, m.cfg.MaxResults)
	for _, r := range ranked {
		if r.Similarity < m.cfg.SimilarityFloor {
			continue
		}
		if len(locationTerms) > 0 && !locationMatches(r.Listing.Location, locationTerms) {
			continue
		}
		matches = append(matches, r)
		sims = append(sims, r.Similarity)
		if len(matches) == m.cfg.MaxResults {
			break
		}
	}
	if m.ranker != nil {
		m.ranker.Annotate(matches, intent, locationTerms)
	}

	result := &model.SmartMatchResult{
		Matches:    matches,
		Reasoning:  reasoning(query, intent, len(matches)),
		Confidence: confidenceScore(sims),
		Intent:     intent,
	}

	outcome := "matched"
	if len(matches) == 0 {
		outcome = "empty"
	}
	metrics.SmartMatchResultsTotal.WithLabelValues(outcome).Inc()
	logger.FromContextOr(ctx, m.logger).Info("smart match completed",
		zap.Int("catalog", len(listings)),
		zap.Int("ranked", len(ranked)),
		zap.Int("matches", len(matches)),
		zap.Int("confidence", result.Confidence),
		zap.Strings("locations", intent.Locations),
		zap.Duration("took", time.Since(start)),
	)
	return result, nil
}

// Recommend ranks unseen listings against the user's liked features and budget
func (m *Matcher) Recommend(ctx context.Context, req model.RecommendationRequest, listings []model.Listing, count int) ([]model.RankedListing, error) {
	text := preferenceText(req)
	if text == "" {
		return []model.RankedListing{}, nil
	}

	viewed := make(map[string]bool, len(req.ViewedProperties))
	for _, id := range req.ViewedProperties {
		viewed[id] = true
	}
	unseen := make([]model.Listing, 0, len(listings))
	for _, l := range listings {
		if !viewed[l.ID] {
			unseen = append(unseen, l)
		}
	}

	return m.RankListings(ctx, text, unseen, count)
}

// expandLocations adds the places each intent location stands for as a whole,
// so "coast" also accepts listings in Diani or Nyali and "Kilimany" accepts
// "Kilimani", while "Mombasa Road" stays just that.
func (m *Matcher) expandLocations(locations []string) []string {
	terms := make([]string, 0, len(locations))
	seen := make(map[string]bool)
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && !seen[s] {
			seen[s] = true
			terms = append(terms, s)
		}
	}

	for _, loc := range locations {
		add(loc)
		if m.resolver == nil {
			continue
		}
		for _, name := range m.resolver.Expand(loc) {
			add(name)
		}
	}
	return terms
}

func preferenceText(req model.RecommendationRequest) string {
	var parts []string
	if features := cleanList(req.LikedFeatures); len(features) > 0 {
		parts = append(parts, "Looking for properties with "+strings.Join(features, ", "))
	}
	if b := req.BudgetRange; b != nil && (b.Min != nil || b.Max != nil) {
		switch {
		case b.Min != nil && b.Max != nil:
			parts = append(parts, fmt.Sprintf("Budget: KES %.0f - %.0f", *b.Min, *b.Max))
		case b.Max != nil:
			parts = append(parts, fmt.Sprintf("Budget: up to KES %.0f", *b.Max))
		default:
			parts = append(parts, fmt.Sprintf("Budget: from KES %.0f", *b.Min))
		}
	}
	return strings.Join(parts, ". ")
}

func reasoning(query string, intent *model.QueryIntent, n int) string {
	subject := intent.Intent
	if subject == "" {
		subject = query
	}
	if n == 0 {
		return fmt.Sprintf("No listings matched %q closely enough", subject)
	}
	noun := "listings"
	if n == 1 {
		noun = "listing"
	}
	s := fmt.Sprintf("Found %d %s matching %q", n, noun, subject)
	if len(intent.Locations) > 0 {
		s += " in " + strings.Join(intent.Locations, ", ")
	}
	return s
}
