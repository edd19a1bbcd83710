package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/repository"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schema string

// Store is the hosted backend: direct table access over Postgres.
type Store struct {
	db *sqlx.DB
}

var _ repository.Repository = (*Store)(nil)

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewFromDB wraps an existing connection
func NewFromDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Migrate applies the embedded schema
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, repository.ErrNotFound)
	}
	return err
}

// GetListing retrieves a listing by ID
func (s *Store) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	var listing models.Listing
	err := s.db.GetContext(ctx, &listing, "SELECT * FROM listings WHERE id::text = $1", id)
	if err != nil {
		return nil, notFound(err, "listing "+id)
	}
	return &listing, nil
}

// CreateListing inserts a listing. Drafts may have no category; an empty
// status or currency falls back to the defaults.
func (s *Store) CreateListing(ctx context.Context, sellerID string, p models.ListingPayload) (*models.Listing, error) {
	query := `
		INSERT INTO listings (seller_id, category_id, title, summary, price_cents, currency, media_urls, attributes, status)
		VALUES ($1, $2, $3, $4, $5, COALESCE(NULLIF($6, ''), 'USD'), $7, $8, COALESCE(NULLIF($9, ''), 'draft'))
		RETURNING *`

	var listing models.Listing
	err := s.db.GetContext(ctx, &listing, query,
		sellerID, p.CategoryID, p.Title, p.Summary, p.PriceCents, p.Currency,
		pq.StringArray(p.MediaURLs), models.JSONMap(p.Attributes), p.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}
	return &listing, nil
}

// UpdateListing replaces the editable columns of a listing
func (s *Store) UpdateListing(ctx context.Context, id string, p models.ListingPayload) (*models.Listing, error) {
	query := `
		UPDATE listings
		SET category_id = $2, title = $3, summary = $4, price_cents = $5, currency = COALESCE(NULLIF($6, ''), currency),
		    media_urls = $7, attributes = $8, status = COALESCE(NULLIF($9, ''), status), updated_at = NOW()
		WHERE id::text = $1
		RETURNING *`

	var listing models.Listing
	err := s.db.GetContext(ctx, &listing, query,
		id, p.CategoryID, p.Title, p.Summary, p.PriceCents, p.Currency,
		pq.StringArray(p.MediaURLs), models.JSONMap(p.Attributes), p.Status)
	if err != nil {
		return nil, notFound(err, "listing "+id)
	}
	return &listing, nil
}

// PublishListing marks a listing as published
func (s *Store) PublishListing(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE listings SET status = $1, updated_at = NOW() WHERE id::text = $2",
		models.ListingStatusPublished, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("listing %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

// GetCategory retrieves a category with its field schema
func (s *Store) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	var category models.Category
	err := s.db.GetContext(ctx, &category, "SELECT * FROM categories WHERE id::text = $1", id)
	if err != nil {
		return nil, notFound(err, "category "+id)
	}
	return &category, nil
}

// ListCategories retrieves all categories
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := s.db.SelectContext(ctx, &categories, "SELECT * FROM categories ORDER BY name")
	return categories, err
}
