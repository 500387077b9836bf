package model

// CatalogFilter narrows the catalog before semantic ranking
type CatalogFilter struct {
	PriceType    *string  `json:"priceType,omitempty"`
	PriceMin     *float64 `json:"priceMin,omitempty"`
	PriceMax     *float64 `json:"priceMax,omitempty"`
	Bedrooms     *int     `json:"bedrooms,omitempty"`
	PropertyType *string  `json:"propertyType,omitempty"`
	Location     *string  `json:"location,omitempty"`
	Amenities    []string `json:"amenities,omitempty"`
	Limit        int      `json:"-"`
}

// SmartSearchRequest represents a natural-language property search
type SmartSearchRequest struct {
	Query   string         `json:"query" binding:"required"`
	Filters *CatalogFilter `json:"filters,omitempty"`
	Limit   int            `json:"limit"`
}

// SmartSearchResponse is returned by the smart search endpoint
type SmartSearchResponse struct {
	Success        bool            `json:"success"`
	Data           []RankedListing `json:"data"`
	Confidence     int             `json:"confidence"`
	Reasoning      string          `json:"reasoning"`
	DetectedIntent *QueryIntent    `json:"detectedIntent,omitempty"`
	DealType       DealType        `json:"dealType"`
	Message        string          `json:"message,omitempty"`
	Took           int64           `json:"took_ms"`
}

// SimilarRequest asks for listings semantically close to a query
type SimilarRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"topK"`
}

// RecommendationRequest describes a user's browsing history and preferences
type RecommendationRequest struct {
	ViewedProperties []string     `json:"viewedProperties"`
	LikedFeatures    []string     `json:"likedFeatures"`
	BudgetRange      *BudgetRange `json:"budgetRange,omitempty"`
	Count            int          `json:"count"`
}

// ListingsResponse wraps a list of ranked listings
type ListingsResponse struct {
	Success bool            `json:"success"`
	Data    []RankedListing `json:"data"`
	Count   int             `json:"count"`
}

// EmbeddingUpdateResponse reports a refreshed listing embedding
type EmbeddingUpdateResponse struct {
	Success    bool   `json:"success"`
	ListingID  string `json:"listingId"`
	Dimensions int    `json:"dimensions"`
}

// TagsResponse reports generated semantic tags
type TagsResponse struct {
	Success bool     `json:"success"`
	Tags    []string `json:"tags"`
}
