// Package repository defines the data access contract shared by the hosted
// backend and the REST backend. Exactly one implementation is selected at
// startup, so call sites never branch on the backend.
package repository

import (
	"context"
	"errors"

	"marketplace-service/internal/models"
)

var (
	// ErrNotFound is returned when a row or resource does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrNotConfigured is returned for collaborators the active backend does not offer.
	ErrNotConfigured = errors.New("repository: this feature requires the hosted backend, which is not configured")
	// ErrUnauthorized is returned when the backend rejects the session token.
	ErrUnauthorized = errors.New("repository: unauthorized")
	// ErrPromoExhausted is returned when an order's promo code has no uses left.
	ErrPromoExhausted = errors.New("repository: promo code usage limit reached")
)

type ListingRepository interface {
	GetListing(ctx context.Context, id string) (*models.Listing, error)
	CreateListing(ctx context.Context, sellerID string, payload models.ListingPayload) (*models.Listing, error)
	UpdateListing(ctx context.Context, id string, payload models.ListingPayload) (*models.Listing, error)
	PublishListing(ctx context.Context, id string) error
}

type CategoryRepository interface {
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
}

type PromoRepository interface {
	FindPromoByCode(ctx context.Context, code string) (*models.PromoCode, error)
}

// OrderRepository persists orders. CreateOrder redeems the order's promo
// code, if any, atomically with the insert.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
}

type PayoutRepository interface {
	CreatePayout(ctx context.Context, payout *models.Payout) error
	ListPayoutsBySeller(ctx context.Context, sellerID string) ([]models.Payout, error)
}

type AccountRepository interface {
	ListPaymentMethods(ctx context.Context, userID string) ([]models.PaymentMethod, error)
	ListKYCDocuments(ctx context.Context, userID string) ([]models.KYCDocument, error)
}

// Repository is the full backend surface.
type Repository interface {
	ListingRepository
	CategoryRepository
	PromoRepository
	OrderRepository
	PayoutRepository
	AccountRepository
	Close() error
}
