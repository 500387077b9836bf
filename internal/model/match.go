package model

// RankedListing is a listing paired with its cosine similarity to a query
type RankedListing struct {
	Listing    Listing  `json:"listing"`
	Similarity float64  `json:"similarity"`
	Reasons    []string `json:"matchedReasons,omitempty"`
}

// SmartMatchResult is the outcome of a smart match. Empty Matches with
// Confidence 0 is the normal "no good match" answer.
type SmartMatchResult struct {
	Matches    []RankedListing `json:"matches"`
	Reasoning  string          `json:"reasoning"`
	Confidence int             `json:"confidence"`
	Intent     *QueryIntent    `json:"detectedIntent,omitempty"`
}
