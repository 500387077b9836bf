package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
)

// Listing represents a property listing in the marketplace catalog
type Listing struct {
	ID            string       `json:"id" db:"id"`
	Title         string       `json:"title" db:"title"`
	Description   string       `json:"description" db:"description"`
	Location      string       `json:"location" db:"location"`
	Tags          JSONArray    `json:"tags,omitempty" db:"tags"`
	Price         float64      `json:"price" db:"price"`
	PriceType     string       `json:"priceType,omitempty" db:"price_type"` // sale | rental
	PropertyType  *string      `json:"propertyType,omitempty" db:"property_type"`
	Bedrooms      *int         `json:"bedrooms,omitempty" db:"bedrooms"`
	Bathrooms     *int         `json:"bathrooms,omitempty" db:"bathrooms"`
	Amenities     JSONArray    `json:"amenities,omitempty" db:"amenities"`
	SemanticTags  JSONArray    `json:"semanticTags,omitempty" db:"semantic_tags"`
	Status        string       `json:"status,omitempty" db:"status"`
	Embedding     StoredVector `json:"-" db:"embedding"`
	EmbeddingHash *string      `json:"-" db:"embedding_hash"`
	CreatedAt     time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time    `json:"updatedAt" db:"updated_at"`
}

// EmbeddingText builds the text that represents the listing for embedding.
// Title, description, location, tags and price are joined one per line.
func (l *Listing) EmbeddingText() string {
	var b strings.Builder
	b.WriteString(l.Title)
	b.WriteByte('\n')
	b.WriteString(l.Description)
	b.WriteByte('\n')
	b.WriteString(l.Location)
	b.WriteByte('\n')
	b.WriteString(strings.Join(l.Tags, " "))
	b.WriteString("\nPrice: ")
	b.WriteString(strconv.FormatFloat(l.Price, 'f', -1, 64))
	return strings.TrimSpace(b.String())
}

// StoredVector is a nullable pgvector column
type StoredVector struct {
	Vector pgvector.Vector
	Valid  bool
}

// NewStoredVector wraps a slice as a valid stored vector
func NewStoredVector(v []float32) StoredVector {
	if len(v) == 0 {
		return StoredVector{}
	}
	return StoredVector{Vector: pgvector.NewVector(v), Valid: true}
}

// Slice returns the vector values, or nil when the column is NULL
func (s StoredVector) Slice() []float32 {
	if !s.Valid {
		return nil
	}
	return s.Vector.Slice()
}

// Value implements driver.Valuer interface
func (s StoredVector) Value() (driver.Value, error) {
	if !s.Valid {
		return nil, nil
	}
	return s.Vector.Value()
}

// Scan implements sql.Scanner interface
func (s *StoredVector) Scan(value interface{}) error {
	if value == nil {
		s.Vector, s.Valid = pgvector.Vector{}, false
		return nil
	}
	if err := s.Vector.Scan(value); err != nil {
		return fmt.Errorf("scan embedding: %w", err)
	}
	s.Valid = true
	return nil
}

// JSONArray represents a JSON array field
type JSONArray []string

// Value implements driver.Valuer interface
func (j JSONArray) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner interface
func (j *JSONArray) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("unsupported JSON array type %T", value)
	}
}
