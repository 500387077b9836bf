package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nyumbani/smartsearch/internal/config"
	"github.com/nyumbani/smartsearch/internal/logger"
	"github.com/nyumbani/smartsearch/internal/model"
)

// Catalog is the listing store the search service reads from and writes derived data to
type Catalog interface {
	ListListings(ctx context.Context, filter model.CatalogFilter) ([]model.Listing, error)
	GetListing(ctx context.Context, id string) (*model.Listing, error)
	SaveEmbedding(ctx context.Context, id string, embedding []float32, textHash string) error
	SaveSemanticTags(ctx context.Context, id string, tags []string) error
}

// SearchService handles search business logic
type SearchService struct {
	catalog Catalog
	matcher *Matcher
	limits  config.SearchConfig
	logger  *zap.Logger
}

// NewSearchService creates a new search service
func NewSearchService(
	catalog Catalog,
	matcher *Matcher,
	limits config.SearchConfig,
	log *zap.Logger,
) *SearchService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SearchService{
		catalog: catalog,
		matcher: matcher,
		limits:  limits,
		logger:  log,
	}
}

// SearchEventCallback is called for streaming search events
type SearchEventCallback func(event string, data any) error

// SmartSearch loads the catalog slice for the query's deal type and smart-matches it
func (s *SearchService) SmartSearch(ctx context.Context, req *model.SmartSearchRequest) (*model.SmartSearchResponse, error) {
	return s.SmartSearchStream(ctx, req, nil)
}

// SmartSearchStream is SmartSearch reporting "start", "ranked" and "intent" events to callback
func (s *SearchService) SmartSearchStream(
	ctx context.Context,
	req *model.SmartSearchRequest,
	callback SearchEventCallback,
) (*model.SmartSearchResponse, error) {
	startTime := time.Now()
	dealType := DetectDealType(req.Query)

	var callbackErr error
	emit := func(event string, data any) {
		if callback == nil || callbackErr != nil {
			return
		}
		callbackErr = callback(event, data)
	}

	emit("start", map[string]any{"query": req.Query, "dealType": dealType})
	if callbackErr != nil {
		return nil, callbackErr
	}

	listings, err := s.catalog.ListListings(ctx, s.mergeFilters(req.Filters, dealType))
	if err != nil {
		return nil, err
	}

	result, err := s.matcher.SmartMatchWithProgress(ctx, req.Query, listings, emit)
	if err != nil {
		return nil, err
	}
	if callbackErr != nil {
		return nil, callbackErr
	}

	matches := result.Matches
	if limit := s.clampLimit(req.Limit); len(matches) > limit {
		matches = matches[:limit]
	}

	took := time.Since(startTime).Milliseconds()
	logger.FromContextOr(ctx, s.logger).Info("smart search",
		zap.String("query", req.Query),
		zap.String("deal_type", string(dealType)),
		zap.Int("results", len(matches)),
		zap.Int64("took_ms", took),
	)

	return &model.SmartSearchResponse{
		Success:        true,
		Data:           matches,
		Confidence:     result.Confidence,
		Reasoning:      result.Reasoning,
		DetectedIntent: result.Intent,
		DealType:       dealType,
		Took:           took,
	}, nil
}

// Similar ranks the catalog against a free-text query
func (s *SearchService) Similar(ctx context.Context, req *model.SimilarRequest) ([]model.RankedListing, error) {
	listings, err := s.catalog.ListListings(ctx, model.CatalogFilter{Limit: s.limits.CatalogLimit})
	if err != nil {
		return nil, err
	}
	return s.matcher.RankListings(ctx, req.Query, listings, s.clampLimit(req.TopK))
}

// Recommend ranks unseen listings against the user's liked features and budget
func (s *SearchService) Recommend(ctx context.Context, req *model.RecommendationRequest) ([]model.RankedListing, error) {
	listings, err := s.catalog.ListListings(ctx, model.CatalogFilter{Limit: s.limits.CatalogLimit})
	if err != nil {
		return nil, err
	}
	return s.matcher.Recommend(ctx, *req, listings, s.clampLimit(req.Count))
}

// UpdateEmbedding recomputes and stores one listing's embedding, returning its dimensions
func (s *SearchService) UpdateEmbedding(ctx context.Context, id string) (int, error) {
	listing, err := s.catalog.GetListing(ctx, id)
	if err != nil {
		return 0, err
	}

	vec, hash, err := s.matcher.EmbedListing(ctx, *listing)
	if err != nil {
		return 0, err
	}
	if err := s.catalog.SaveEmbedding(ctx, id, vec, hash); err != nil {
		return 0, fmt.Errorf("save embedding: %w", err)
	}
	return len(vec), nil
}

// GenerateTags derives and stores a listing's semantic tags
func (s *SearchService) GenerateTags(ctx context.Context, id string) ([]string, error) {
	listing, err := s.catalog.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}

	tags := GenerateSemanticTags(*listing)
	if err := s.catalog.SaveSemanticTags(ctx, id, tags); err != nil {
		return nil, fmt.Errorf("save semantic tags: %w", err)
	}
	return tags, nil
}

// mergeFilters copies explicit filters and narrows the price type by the detected deal type
func (s *SearchService) mergeFilters(explicit *model.CatalogFilter, dealType model.DealType) model.CatalogFilter {
	var merged model.CatalogFilter
	if explicit != nil {
		merged = *explicit
	}

	if merged.PriceType == nil && dealType != model.DealAny {
		priceType := string(dealType)
		merged.PriceType = &priceType
	}

	merged.Limit = s.limits.CatalogLimit
	return merged
}

func (s *SearchService) clampLimit(n int) int {
	if n <= 0 {
		return s.limits.DefaultLimit
	}
	if n > s.limits.MaxLimit {
		return s.limits.MaxLimit
	}
	return n
}
