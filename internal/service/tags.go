package service

import (
	"strings"

	"github.com/nyumbani/smartsearch/internal/model"
	"github.com/nyumbani/smartsearch/internal/utils"
)

// Semantic tags derived from listing attributes
const (
	TagFamilyFriendly  = "family-friendly"
	TagStarterHome     = "starter-home"
	TagLuxury          = "luxury"
	TagModernAmenities = "modern-amenities"
	TagPrimeLocation   = "prime-location"
)

// primeLocations are neighborhoods tagged as prime
var primeLocations = []string{"westlands"}

// GenerateSemanticTags derives descriptive tags from bedrooms, amenities and location
func GenerateSemanticTags(listing model.Listing) []string {
	tags := []string{}

	if listing.Bedrooms != nil {
		switch {
		case *listing.Bedrooms >= 3:
			tags = append(tags, TagFamilyFriendly)
		case *listing.Bedrooms == 1:
			tags = append(tags, TagStarterHome)
		}
	}

	if hasAmenity(listing.Amenities, "pool") {
		tags = append(tags, TagLuxury)
	}
	if hasAmenity(listing.Amenities, "gym") {
		tags = append(tags, TagModernAmenities)
	}

	loc := strings.ToLower(listing.Location)
	for _, prime := range primeLocations {
		if strings.Contains(loc, prime) {
			tags = append(tags, TagPrimeLocation)
			break
		}
	}

	return tags
}

func hasAmenity(amenities []string, feature string) bool {
	for _, a := range amenities {
		if utils.FuzzyMatchFeature(feature, a) {
			return true
		}
	}
	return false
}
