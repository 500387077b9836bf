package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/nyumbani/smartsearch/internal/model"
	"github.com/nyumbani/smartsearch/internal/utils"
)

const listingColumns = `
	id, title, description, location, tags, price, price_type, property_type,
	bedrooms, bathrooms, amenities, semantic_tags, status,
	embedding, embedding_hash, created_at, updated_at`

// PostgresRepository reads the listing catalog and stores derived embeddings and tags
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(dsn string, maxConn, maxIdleConn int) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	return &PostgresRepository{db: db}, nil
}

// NewPostgresRepositoryFromDB wraps an existing connection pool
func NewPostgresRepositoryFromDB(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// Ping checks the database connection
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ListListings returns active listings matching the filter, newest first
func (r *PostgresRepository) ListListings(ctx context.Context, filter model.CatalogFilter) ([]model.Listing, error) {
	query, args := buildListingQuery(filter)

	var listings []model.Listing
	if err := r.db.SelectContext(ctx, &listings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch listings: %w", err)
	}
	return listings, nil
}

// buildListingQuery builds the catalog SELECT with one placeholder per filter value
func buildListingQuery(filter model.CatalogFilter) (string, []interface{}) {
	whereClauses := []string{"status = 'active'"}
	args := []interface{}{}
	argIndex := 1

	if filter.PriceType != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("price_type = $%d", argIndex))
		args = append(args, *filter.PriceType)
		argIndex++
	}
	if filter.PriceMin != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("price >= $%d", argIndex))
		args = append(args, *filter.PriceMin)
		argIndex++
	}
	if filter.PriceMax != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("price <= $%d", argIndex))
		args = append(args, *filter.PriceMax)
		argIndex++
	}
	if filter.Bedrooms != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("bedrooms = $%d", argIndex))
		args = append(args, *filter.Bedrooms)
		argIndex++
	}
	if filter.PropertyType != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("property_type ILIKE $%d", argIndex))
		args = append(args, *filter.PropertyType)
		argIndex++
	}
	if filter.Location != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("location ILIKE $%d", argIndex))
		args = append(args, "%"+*filter.Location+"%")
		argIndex++
	}
	if len(filter.Amenities) > 0 {
		conds, params, next := utils.BuildFeatureQuery("amenities", filter.Amenities, argIndex)
		whereClauses = append(whereClauses, conds...)
		args = append(args, params...)
		argIndex = next
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM listings
		WHERE %s
		ORDER BY created_at DESC`, listingColumns, strings.Join(whereClauses, " AND "))

	if filter.Limit > 0 {
		query += fmt.Sprintf("\n\t\tLIMIT $%d", argIndex)
		args = append(args, filter.Limit)
	}
	return query, args
}

// GetListing retrieves a single listing by its ID
func (r *PostgresRepository) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	var listing model.Listing
	query := fmt.Sprintf(`SELECT %s FROM listings WHERE id = $1`, listingColumns)
	err := r.db.GetContext(ctx, &listing, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("listing %s: %w", id, model.ErrListingNotFound)
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return &listing, nil
}

// SaveEmbedding stores a listing's embedding with the hash of the text it was computed from
func (r *PostgresRepository) SaveEmbedding(ctx context.Context, id string, embedding []float32, textHash string) error {
	query := `UPDATE listings SET embedding = $1, embedding_hash = $2, updated_at = NOW() WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, pgvector.NewVector(embedding), textHash, id)
	if err != nil {
		return fmt.Errorf("failed to update embedding: %w", err)
	}
	return requireRow(res, id)
}

// SaveSemanticTags replaces a listing's semantic tags
func (r *PostgresRepository) SaveSemanticTags(ctx context.Context, id string, tags []string) error {
	query := `UPDATE listings SET semantic_tags = $1, updated_at = NOW() WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, model.JSONArray(tags), id)
	if err != nil {
		return fmt.Errorf("failed to update semantic tags: %w", err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("listing %s: %w", id, model.ErrListingNotFound)
	}
	return nil
}
