package utils

import (
	"fmt"
	"sort"
	"strings"
)

// featureAliases maps a canonical feature keyword to the phrasings seen in listings
var featureAliases = map[string][]string{
	"pool":       {"swimming pool", "pool"},
	"gym":        {"gym", "gymnasium", "fitness", "fitness center", "fitness centre"},
	"parking":    {"parking", "car park", "covered parking", "parking bay"},
	"security":   {"security", "24-hour security", "24hr security", "24/7 security", "guard", "askari", "cctv", "electric fence"},
	"borehole":   {"borehole", "water tank", "reliable water", "water storage"},
	"generator":  {"generator", "backup generator", "backup power", "standby generator"},
	"dsq":        {"dsq", "sq", "servant quarter", "servants quarter", "staff quarter"},
	"balcony":    {"balcony", "terrace", "veranda"},
	"garden":     {"garden", "lawn", "compound", "backyard"},
	"lift":       {"lift", "elevator"},
	"solar":      {"solar", "solar water heating", "solar panels"},
	"internet":   {"internet", "wifi", "wi-fi", "fibre", "fiber"},
	"furnished":  {"furnished", "fully furnished", "serviced"},
	"playground": {"playground", "children's play area", "kids play area"},
	"pet":        {"pet friendly", "pets allowed", "pet-friendly"},
	"gated":      {"gated", "gated community", "gated estate"},
	"ensuite":    {"ensuite", "en-suite", "master ensuite"},
}

// FuzzyMatchFeature reports whether a requested feature matches a listing feature.
// Both sides are compared case-insensitively, directly and through the alias table.
func FuzzyMatchFeature(searchTerm, feature string) bool {
	searchLower := strings.ToLower(strings.TrimSpace(searchTerm))
	featureLower := strings.ToLower(strings.TrimSpace(feature))
	if searchLower == "" || featureLower == "" {
		return false
	}

	if searchLower == featureLower || strings.Contains(featureLower, searchLower) {
		return true
	}

	for key, values := range featureAliases {
		if !strings.Contains(searchLower, key) && !containsAny(searchLower, values) {
			continue
		}
		if containsAny(featureLower, values) {
			return true
		}
	}
	return false
}

// MatchFeatures returns the requested features found among the listing's amenities or text
func MatchFeatures(requested []string, amenities []string, text string) []string {
	textLower := strings.ToLower(text)
	var matched []string
	for _, want := range requested {
		found := false
		for _, a := range amenities {
			if FuzzyMatchFeature(want, a) {
				found = true
				break
			}
		}
		if !found && FuzzyMatchFeature(want, textLower) {
			found = true
		}
		if found {
			matched = append(matched, want)
		}
	}
	return matched
}

// NormalizeFeature maps a feature phrase to its canonical keyword, or the lowercased phrase
func NormalizeFeature(feature string) string {
	lower := strings.ToLower(strings.TrimSpace(feature))
	keys := make([]string, 0, len(featureAliases))
	for key := range featureAliases {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		for _, alias := range featureAliases[key] {
			if lower == alias {
				return key
			}
		}
	}
	return lower
}

// BuildFeatureQuery builds JSONB conditions requiring every term in the amenities column.
// Returns the conditions, their parameters and the next placeholder index.
func BuildFeatureQuery(column string, searchTerms []string, paramIndex int) ([]string, []interface{}, int) {
	if len(searchTerms) == 0 {
		return nil, nil, paramIndex
	}

	var conditions []string
	var params []interface{}

	for _, term := range searchTerms {
		termLower := strings.ToLower(strings.TrimSpace(term))
		if termLower == "" {
			continue
		}

		patterns := []string{termLower}
		if values, ok := featureAliases[NormalizeFeature(termLower)]; ok {
			patterns = values
		}

		var orConditions []string
		for _, pattern := range patterns {
			orConditions = append(orConditions, fmt.Sprintf("elem ILIKE $%d", paramIndex))
			params = append(params, "%"+pattern+"%")
			paramIndex++
		}

		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM jsonb_array_elements_text(%s) elem WHERE %s)",
			column, strings.Join(orConditions, " OR "),
		))
	}

	return conditions, params, paramIndex
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if containsWord(s, sub) {
			return true
		}
	}
	return false
}

// containsWord is strings.Contains for longer phrases, whole-word for short ones like "sq"
func containsWord(s, sub string) bool {
	if len(sub) > 3 {
		return strings.Contains(s, sub)
	}
	for _, w := range strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if w == sub {
			return true
		}
	}
	return false
}
