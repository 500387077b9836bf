package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/nyumbani/smartsearch/internal/model"
	"github.com/nyumbani/smartsearch/internal/utils"
)

// Match reason constants
const (
	ReasonLocationMatch     = "Location match"
	ReasonPriceMatch        = "Price within budget"
	ReasonPropertyTypeMatch = "Property type match"
	ReasonHighRelevance     = "Highly relevant to your search"
	ReasonGeneralMatch      = "General match"
	reasonFeatureFormat     = "Has %s"
)

// DefaultHighRelevance is the similarity from which a match is called highly relevant
const DefaultHighRelevance = 0.8

// Ranker explains why a ranked listing matched the extracted intent
type Ranker struct {
	highRelevance float64
}

// NewRanker creates a ranker; similarities at or above highRelevance are called out
func NewRanker(highRelevance float64) *Ranker {
	return &Ranker{highRelevance: highRelevance}
}

// Annotate fills in matched reasons for each result
func (r *Ranker) Annotate(results []model.RankedListing, intent *model.QueryIntent, locationTerms []string) {
	for i := range results {
		results[i].Reasons = r.generateMatchedReasons(results[i].Listing, intent, results[i].Similarity, locationTerms)
	}
}

// calculatePriceScore calculates how well the price matches the budget
func (r *Ranker) calculatePriceScore(price float64, budget *model.BudgetRange) float64 {
	if budget == nil || (budget.Min == nil && budget.Max == nil) {
		return 1.0
	}
	if price <= 0 {
		return 0.5
	}

	if budget.Min != nil && budget.Max != nil {
		minPrice, maxPrice := *budget.Min, *budget.Max
		if price < minPrice || price > maxPrice {
			return 0.0
		}

		midpoint := (minPrice + maxPrice) / 2
		priceRange := maxPrice - minPrice
		if priceRange == 0 {
			return 1.0
		}

		score := 1.0 - math.Abs(price-midpoint)/(priceRange/2)
		return math.Max(score, 0)
	}

	if budget.Min != nil {
		if price < *budget.Min {
			return 0.0
		}
		return 1.0
	}

	if price > *budget.Max {
		return 0.0
	}
	return 1.0
}

// generateMatchedReasons generates human-readable reasons for why this listing matched
func (r *Ranker) generateMatchedReasons(
	listing model.Listing,
	intent *model.QueryIntent,
	similarity float64,
	locationTerms []string,
) []string {
	reasons := []string{}

	if len(locationTerms) > 0 && locationMatches(listing.Location, locationTerms) {
		reasons = append(reasons, ReasonLocationMatch)
	}

	if intent != nil {
		if intent.Budget != nil && r.calculatePriceScore(listing.Price, intent.Budget) > 0 {
			reasons = append(reasons, ReasonPriceMatch)
		}

		if intent.PropertyType != nil && propertyTypeMatches(listing, *intent.PropertyType) {
			reasons = append(reasons, ReasonPropertyTypeMatch)
		}

		for _, feature := range utils.MatchFeatures(intent.MustHaveFeatures, listing.Amenities, listing.Description) {
			reasons = append(reasons, fmt.Sprintf(reasonFeatureFormat, feature))
		}
	}

	if similarity >= r.highRelevance {
		reasons = append(reasons, ReasonHighRelevance)
	}

	if len(reasons) == 0 {
		reasons = append(reasons, ReasonGeneralMatch)
	}

	return reasons
}

// propertyTypeMatches checks the listing's type, falling back to its title
func propertyTypeMatches(listing model.Listing, want string) bool {
	want = strings.ToLower(want)
	if listing.PropertyType != nil {
		return strings.EqualFold(*listing.PropertyType, want)
	}
	return strings.Contains(strings.ToLower(listing.Title), want)
}

// locationMatches reports whether location contains any term, case-insensitively
func locationMatches(location string, terms []string) bool {
	loc := strings.ToLower(location)
	for _, term := range terms {
		if term != "" && strings.Contains(loc, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
