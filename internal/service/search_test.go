package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyumbani/smartsearch/internal/config"
	"github.com/nyumbani/smartsearch/internal/model"
)

type memoryCatalog struct {
	listings []model.Listing
	filters  []model.CatalogFilter
	vectors  map[string][]float32
	hashes   map[string]string
	tags     map[string][]string
}

func newMemoryCatalog(listings ...model.Listing) *memoryCatalog {
	return &memoryCatalog{
		listings: listings,
		vectors:  make(map[string][]float32),
		hashes:   make(map[string]string),
		tags:     make(map[string][]string),
	}
}

func (c *memoryCatalog) ListListings(_ context.Context, filter model.CatalogFilter) ([]model.Listing, error) {
	c.filters = append(c.filters, filter)
	return c.listings, nil
}

func (c *memoryCatalog) GetListing(_ context.Context, id string) (*model.Listing, error) {
	for i := range c.listings {
		if c.listings[i].ID == id {
			l := c.listings[i]
			return &l, nil
		}
	}
	return nil, model.ErrListingNotFound
}

func (c *memoryCatalog) SaveEmbedding(_ context.Context, id string, embedding []float32, textHash string) error {
	c.vectors[id] = embedding
	c.hashes[id] = textHash
	return nil
}

func (c *memoryCatalog) SaveSemanticTags(_ context.Context, id string, tags []string) error {
	c.tags[id] = tags
	return nil
}

var testLimits = config.SearchConfig{DefaultLimit: 10, MaxLimit: 20, CatalogLimit: 100}

func newTestSearchService(c Catalog, gen IntentGenerator) *SearchService {
	return NewSearchService(c, newTestMatcher(newKeywordEmbedder(), gen, nil), testLimits, nil)
}

func TestSearchService_SmartSearch(t *testing.T) {
	store := newMemoryCatalog(catalog()...)
	s := newTestSearchService(store, staticGenerator{raw: westlandsIntent})

	resp, err := s.SmartSearch(context.Background(), &model.SmartSearchRequest{Query: "buy an apartment in westlands with pool"})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, model.DealSale, resp.DealType)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "a", resp.Data[0].Listing.ID)
	assert.Equal(t, 100, resp.Confidence)
	require.NotNil(t, resp.DetectedIntent)

	require.Len(t, store.filters, 1)
	require.NotNil(t, store.filters[0].PriceType)
	assert.Equal(t, "sale", *store.filters[0].PriceType)
	assert.Equal(t, 100, store.filters[0].Limit)
}

func TestSearchService_SmartSearchExplicitPriceTypeWins(t *testing.T) {
	store := newMemoryCatalog(catalog()...)
	s := newTestSearchService(store, staticGenerator{raw: westlandsIntent})

	rental := "rental"
	_, err := s.SmartSearch(context.Background(), &model.SmartSearchRequest{
		Query:   "buy an apartment in westlands",
		Filters: &model.CatalogFilter{PriceType: &rental},
	})
	require.NoError(t, err)
	assert.Equal(t, "rental", *store.filters[0].PriceType)
}

func TestSearchService_SmartSearchStream(t *testing.T) {
	s := newTestSearchService(newMemoryCatalog(catalog()...), staticGenerator{raw: westlandsIntent})

	var events []string
	_, err := s.SmartSearchStream(context.Background(), &model.SmartSearchRequest{Query: "apartment in westlands"},
		func(event string, _ any) error {
			events = append(events, event)
			return nil
		})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "start", events[0])
	assert.ElementsMatch(t, []string{"ranked", "intent"}, events[1:])
}

func TestSearchService_SmartSearchStreamCallbackError(t *testing.T) {
	s := newTestSearchService(newMemoryCatalog(catalog()...), staticGenerator{raw: westlandsIntent})
	errGone := errors.New("client gone")

	_, err := s.SmartSearchStream(context.Background(), &model.SmartSearchRequest{Query: "apartment"},
		func(string, any) error { return errGone })
	assert.ErrorIs(t, err, errGone)
}

func TestSearchService_SmartSearchProviderDown(t *testing.T) {
	s := newTestSearchService(newMemoryCatalog(catalog()...), staticGenerator{err: errProviderDown})

	_, err := s.SmartSearch(context.Background(), &model.SmartSearchRequest{Query: "apartment in westlands"})
	assert.ErrorIs(t, err, model.ErrProviderUnavailable)
}

func TestSearchService_Similar(t *testing.T) {
	s := newTestSearchService(newMemoryCatalog(catalog()...), nil)

	results, err := s.Similar(context.Background(), &model.SimilarRequest{Query: "apartment with pool", TopK: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchService_UpdateEmbedding(t *testing.T) {
	store := newMemoryCatalog(catalog()...)
	s := newTestSearchService(store, nil)

	dims, err := s.UpdateEmbedding(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, len(vocabulary)+1, dims)
	assert.Len(t, store.vectors["a"], dims)
	assert.Len(t, store.hashes["a"], 64)

	_, err = s.UpdateEmbedding(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrListingNotFound)
}

func TestSearchService_GenerateTags(t *testing.T) {
	listing := testListing("w", "Penthouse", "Westlands", 1, "Gym")
	listing.Bedrooms = intPtr(3)
	store := newMemoryCatalog(listing)
	s := newTestSearchService(store, nil)

	tags, err := s.GenerateTags(context.Background(), "w")
	require.NoError(t, err)
	assert.Equal(t, []string{TagFamilyFriendly, TagModernAmenities, TagPrimeLocation}, tags)
	assert.Equal(t, tags, store.tags["w"])
}

func TestSearchService_ClampLimit(t *testing.T) {
	s := newTestSearchService(newMemoryCatalog(), nil)

	assert.Equal(t, 10, s.clampLimit(0))
	assert.Equal(t, 10, s.clampLimit(-3))
	assert.Equal(t, 7, s.clampLimit(7))
	assert.Equal(t, 20, s.clampLimit(500))
}
