package service

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nyumbani/smartsearch/internal/location"
	"github.com/nyumbani/smartsearch/internal/model"
)

const westlandsIntent = `{"budget":null,"locations":["Westlands"],"propertyType":"apartment",` +
	`"mustHaveFeatures":["pool"],"lifestylePreferences":[],"intent":"apartment with pool in Westlands"}`

func catalog() []model.Listing {
	a := testListing("a", "Modern apartment with pool", "Westlands, Nairobi", 12_000_000, "Swimming pool", "Gym")
	a.PropertyType = strPtr("apartment")
	b := testListing("b", "Family house", "Karen", 45_000_000, "Garden")
	b.PropertyType = strPtr("house")
	c := testListing("c", "Spacious apartment with pool", "Kilimani", 9_000_000, "Pool")
	c.PropertyType = strPtr("apartment")
	return []model.Listing{b, a, c}
}

func newTestMatcher(emb Embedder, gen IntentGenerator, resolver LocationResolver) *Matcher {
	return NewMatcher(emb, NewIntentExtractor(gen, "test", nil), resolver, NewRanker(0.8), DefaultMatcherConfig(), zap.NewNop())
}

func ids(results []model.RankedListing) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Listing.ID
	}
	return out
}

func TestMatcher_RankListings(t *testing.T) {
	m := newTestMatcher(newKeywordEmbedder(), nil, nil)

	results, err := m.RankListings(context.Background(), "apartment in westlands with pool", catalog(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b"}, ids(results))
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
	assert.InDelta(t, 0.75, results[1].Similarity, 1e-9)

	top, err := m.RankListings(context.Background(), "apartment in westlands with pool", catalog(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(top))
}

func TestMatcher_RankListings_NoSignal(t *testing.T) {
	emb := newKeywordEmbedder()
	m := newTestMatcher(emb, nil, nil)

	results, err := m.RankListings(context.Background(), "   ", catalog(), 0)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, emb.total())

	emb.err = errProviderDown
	results, err = m.RankListings(context.Background(), "apartment", catalog(), 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMatcher_RankListings_Cancelled(t *testing.T) {
	m := newTestMatcher(newKeywordEmbedder(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.RankListings(ctx, "apartment", catalog(), 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMatcher_RankListings_StoredVectors(t *testing.T) {
	emb := newKeywordEmbedder()
	m := newTestMatcher(emb, nil, nil)

	fresh := testListing("fresh", "Apartment", "Westlands", 1)
	fresh.Embedding = model.NewStoredVector([]float32{1, 1, 0, 1, 0, 0, 0, 0, 0})
	fresh.EmbeddingHash = strPtr(TextHash(fresh.EmbeddingText()))

	stale := testListing("stale", "Apartment", "Kilimani", 1)
	stale.Embedding = model.NewStoredVector([]float32{1, 0, 1, 1, 0, 0, 0, 0, 0})
	stale.EmbeddingHash = strPtr("outdated")

	wrongDims := testListing("dims", "House", "Karen", 1)
	wrongDims.Embedding = model.NewStoredVector([]float32{1, 0, 0})
	wrongDims.EmbeddingHash = strPtr(TextHash(wrongDims.EmbeddingText()))

	results, err := m.RankListings(context.Background(), "apartment in westlands", []model.Listing{fresh, stale, wrongDims}, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "fresh", results[0].Listing.ID)

	assert.Zero(t, emb.calls[fresh.EmbeddingText()])
	assert.Equal(t, 1, emb.calls[stale.EmbeddingText()])
	assert.Equal(t, 1, emb.calls[wrongDims.EmbeddingText()])
}

func TestMatcher_Similarity(t *testing.T) {
	m := newTestMatcher(newKeywordEmbedder(), nil, nil)

	assert.InDelta(t, 1.0, m.Similarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.Zero(t, m.Similarity([]float32{1, 2}, []float32{1, 2, 3}))
	assert.Zero(t, m.Similarity(nil, []float32{1}))
}

func TestMatcher_SmartMatch(t *testing.T) {
	m := newTestMatcher(newKeywordEmbedder(), staticGenerator{raw: westlandsIntent}, nil)

	result, err := m.SmartMatch(context.Background(), "apartment in westlands with pool", catalog())
	require.NoError(t, err)

	require.Len(t, result.Matches, 1)
	best := result.Matches[0]
	assert.Equal(t, "a", best.Listing.ID)
	assert.Equal(t, 100, result.Confidence)
	assert.Equal(t, []string{ReasonLocationMatch, ReasonPropertyTypeMatch, "Has pool", ReasonHighRelevance}, best.Reasons)
	require.NotNil(t, result.Intent)
	assert.Equal(t, []string{"Westlands"}, result.Intent.Locations)
	assert.Contains(t, result.Reasoning, "Found 1 listing")
}

func TestMatcher_SmartMatch_NoLocationKeepsAllAboveFloor(t *testing.T) {
	raw := `{"budget":{"min":null,"max":15000000},"locations":[],"propertyType":null,` +
		`"mustHaveFeatures":[],"lifestylePreferences":[],"intent":"apartment with pool"}`
	m := newTestMatcher(newKeywordEmbedder(), staticGenerator{raw: raw}, nil)

	result, err := m.SmartMatch(context.Background(), "apartment in westlands with pool", catalog())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c"}, ids(result.Matches))
	assert.Equal(t, 88, result.Confidence)
	assert.Contains(t, result.Matches[1].Reasons, ReasonPriceMatch)
	assert.NotContains(t, result.Matches[1].Reasons, ReasonHighRelevance)
}

func TestMatcher_SmartMatch_ExpandsRegions(t *testing.T) {
	raw := `{"budget":null,"locations":["coast"],"propertyType":"house",` +
		`"mustHaveFeatures":[],"lifestylePreferences":["beach"],"intent":"beach house at the coast"}`
	resolver := mapResolver{"coast": {"Diani", "Nyali"}}
	m := newTestMatcher(newKeywordEmbedder(), staticGenerator{raw: raw}, resolver)

	listings := []model.Listing{
		testListing("nakuru", "Beach house", "Nakuru", 20_000_000),
		testListing("diani", "Beach house", "Diani, Kwale", 20_000_000),
	}
	result, err := m.SmartMatch(context.Background(), "beach house on the coast", listings)
	require.NoError(t, err)
	assert.Equal(t, []string{"diani"}, ids(result.Matches))
	assert.Contains(t, result.Matches[0].Reasons, ReasonLocationMatch)
}

func TestMatcher_SmartMatch_LocationFilterWithGazetteer(t *testing.T) {
	g, err := location.LoadGazetteer("")
	require.NoError(t, err)
	resolver := location.NewResolver(g, location.DefaultOptions(), nil, nil)

	msaRoad := testListing("msa-road", "Apartment", "Mombasa Road, Nairobi", 8_000_000)
	nyali := testListing("nyali", "Apartment", "Nyali, Mombasa", 8_000_000)
	diani := testListing("diani", "Apartment", "Diani, Kwale", 8_000_000)
	kilimani := testListing("kilimani", "Apartment", "Kilimani, Nairobi", 8_000_000)

	tests := []struct {
		name      string
		locations string
		listings  []model.Listing
		want      []string
	}{
		{name: "street named after a city", locations: `["Mombasa Road"]`, listings: []model.Listing{msaRoad, nyali}, want: []string{"msa-road"}},
		{name: "region", locations: `["coast"]`, listings: []model.Listing{nyali, diani, kilimani}, want: []string{"nyali", "diani"}},
		{name: "misspelled neighborhood", locations: `["Kilimany"]`, listings: []model.Listing{diani, kilimani}, want: []string{"kilimani"}},
		{name: "city", locations: `["Mombasa"]`, listings: []model.Listing{nyali, kilimani}, want: []string{"nyali"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := `{"budget":null,"locations":` + tt.locations + `,"propertyType":"apartment",` +
				`"mustHaveFeatures":[],"lifestylePreferences":[],"intent":"apartment"}`
			m := newTestMatcher(newKeywordEmbedder(), staticGenerator{raw: raw}, resolver)

			result, err := m.SmartMatch(context.Background(), "apartment", tt.listings)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(result.Matches))
		})
	}
}

func TestMatcher_SmartMatch_RentalsInNairobi(t *testing.T) {
	raw := `{"budget":null,"locations":["Nairobi"],"propertyType":"apartment",` +
		`"mustHaveFeatures":[],"lifestylePreferences":[],"intent":"rental apartments in Nairobi"}`
	m := newTestMatcher(newKeywordEmbedder(), staticGenerator{raw: raw}, nil)

	luxury := testListing("luxury", "Luxury 3-Bedroom Apartment", "Westlands, Nairobi", 150_000)
	luxury.PriceType = "rental"
	luxury.Bedrooms = intPtr(3)
	cozy := testListing("cozy", "Cozy 2-Bedroom Apartment", "Kilimani, Nairobi", 80_000)
	cozy.PriceType = "rental"
	cozy.Bedrooms = intPtr(2)

	result, err := m.SmartMatch(context.Background(), "Show me rental apartments in Nairobi", []model.Listing{luxury, cozy})
	require.NoError(t, err)

	require.NotEmpty(t, result.Matches)
	assert.ElementsMatch(t, []string{"luxury", "cozy"}, ids(result.Matches))
	for i, match := range result.Matches {
		assert.GreaterOrEqual(t, match.Similarity, DefaultMatcherConfig().SimilarityFloor)
		if i > 0 {
			assert.GreaterOrEqual(t, result.Matches[i-1].Similarity, match.Similarity)
		}
	}
	// each listing adds one neighborhood keyword to the query's apartment
	assert.InDelta(t, 2/math.Sqrt(6), result.Matches[0].Similarity, 1e-6)
	assert.Equal(t, 82, result.Confidence)
}

func TestMatcher_SmartMatch_AllBelowFloor(t *testing.T) {
	raw := `{"budget":null,"locations":[],"propertyType":null,` +
		`"mustHaveFeatures":[],"lifestylePreferences":[],"intent":"somewhere to live"}`
	m := newTestMatcher(newKeywordEmbedder(), staticGenerator{raw: raw}, nil)

	listings := []model.Listing{
		testListing("x", "Apartment with pool and beach access", "Westlands", 10_000_000),
		testListing("y", "House with pool and beach access", "Karen", 10_000_000),
	}
	query := "somewhere affordable to live"

	ranked, err := m.RankListings(context.Background(), query, listings, 0)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	for _, r := range ranked {
		assert.Greater(t, r.Similarity, 0.0)
		assert.Less(t, r.Similarity, DefaultMatcherConfig().SimilarityFloor)
	}

	result, err := m.SmartMatch(context.Background(), query, listings)
	require.NoError(t, err)
	assert.Empty(t, result.Matches)
	assert.Zero(t, result.Confidence)
	assert.Contains(t, result.Reasoning, "No listings matched")
}

func TestMatcher_SmartMatch_EmptyQuery(t *testing.T) {
	emb := newKeywordEmbedder()
	m := newTestMatcher(emb, staticGenerator{err: errProviderDown}, nil)

	result, err := m.SmartMatch(context.Background(), "  ", catalog())
	require.NoError(t, err)
	assert.Empty(t, result.Matches)
	assert.Zero(t, result.Confidence)
	assert.Zero(t, emb.total())
}

func TestMatcher_SmartMatch_NoEmbeddingSignal(t *testing.T) {
	emb := newKeywordEmbedder()
	emb.err = errProviderDown
	m := newTestMatcher(emb, staticGenerator{raw: westlandsIntent}, nil)

	result, err := m.SmartMatch(context.Background(), "apartment in westlands with pool", catalog())
	require.NoError(t, err)
	assert.Empty(t, result.Matches)
	assert.Zero(t, result.Confidence)
	assert.Contains(t, result.Reasoning, "No listings matched")
}

func TestMatcher_SmartMatch_IntentFailures(t *testing.T) {
	tests := []struct {
		name    string
		gen     IntentGenerator
		wantErr error
	}{
		{"provider down", staticGenerator{err: errProviderDown}, model.ErrProviderUnavailable},
		{"no provider", nil, model.ErrProviderUnavailable},
		{"schema violation", staticGenerator{raw: `{"locations":"Westlands"}`}, model.ErrInvalidIntent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMatcher(newKeywordEmbedder(), tt.gen, nil)
			_, err := m.SmartMatch(context.Background(), "apartment in westlands", catalog())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMatcher_SmartMatchWithProgress(t *testing.T) {
	m := newTestMatcher(newKeywordEmbedder(), staticGenerator{raw: westlandsIntent}, nil)

	var (
		mu     sync.Mutex
		events []string
	)
	_, err := m.SmartMatchWithProgress(context.Background(), "apartment in westlands with pool", catalog(),
		func(event string, _ any) {
			mu.Lock()
			events = append(events, event)
			mu.Unlock()
		})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ranked", "intent"}, events)
}

func TestMatcher_Recommend(t *testing.T) {
	m := newTestMatcher(newKeywordEmbedder(), nil, nil)

	req := model.RecommendationRequest{
		ViewedProperties: []string{"a"},
		LikedFeatures:    []string{"pool"},
	}
	results, err := m.Recommend(context.Background(), req, catalog(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, ids(results))

	results, err = m.Recommend(context.Background(), model.RecommendationRequest{}, catalog(), 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestPreferenceText(t *testing.T) {
	req := model.RecommendationRequest{
		LikedFeatures: []string{"pool", " ", "gym"},
		BudgetRange:   &model.BudgetRange{Max: floatPtr(80_000)},
	}
	assert.Equal(t, "Looking for properties with pool, gym. Budget: up to KES 80000", preferenceText(req))
}

func TestMatcher_EmbedListing(t *testing.T) {
	emb := newKeywordEmbedder()
	m := newTestMatcher(emb, nil, nil)
	listing := catalog()[1]

	vec, hash, err := m.EmbedListing(context.Background(), listing)
	require.NoError(t, err)
	assert.Len(t, vec, len(vocabulary)+1)
	assert.Equal(t, TextHash(listing.EmbeddingText()), hash)

	emb.err = errProviderDown
	_, _, err = m.EmbedListing(context.Background(), listing)
	assert.ErrorIs(t, err, errProviderDown)
}
