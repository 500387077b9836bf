package service

import (
	"strings"
	"unicode"

	"github.com/nyumbani/smartsearch/internal/model"
)

var (
	buyKeywords  = []string{"buy", "buying", "purchase", "invest", "own", "sale", "selling"}
	rentKeywords = []string{"rent", "rental", "rentals", "lease", "monthly", "tenant", "renting"}
)

// DetectDealType classifies a query as buying or renting from whole-word keywords.
// Queries mentioning both or neither are DealAny.
func DetectDealType(query string) model.DealType {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r)
	})

	var buy, rent bool
	for _, w := range words {
		for _, k := range buyKeywords {
			if w == k {
				buy = true
			}
		}
		for _, k := range rentKeywords {
			if w == k {
				rent = true
			}
		}
	}

	switch {
	case buy && !rent:
		return model.DealSale
	case rent && !buy:
		return model.DealRental
	default:
		return model.DealAny
	}
}
