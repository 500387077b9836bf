package model

// PropertyTypes accepted in an extracted intent
var PropertyTypes = []string{
	"apartment", "house", "villa", "studio", "townhouse", "land", "commercial", "condo", "bedsitter", "maisonette",
}

// BudgetRange is an optional price range in KES
type BudgetRange struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// QueryIntent is the structured meaning extracted from a free-text query
type QueryIntent struct {
	Budget               *BudgetRange `json:"budget"`
	Locations            []string     `json:"locations"`
	PropertyType         *string      `json:"propertyType"`
	MustHaveFeatures     []string     `json:"mustHaveFeatures"`
	LifestylePreferences []string     `json:"lifestylePreferences"`
	Intent               string       `json:"intent"`
}

// DealType says whether a query is about buying or renting
type DealType string

const (
	DealAny    DealType = "any"
	DealSale   DealType = "sale"
	DealRental DealType = "rental"
)
