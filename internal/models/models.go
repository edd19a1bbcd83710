package models

import (
	"time"

	"github.com/lib/pq"
)

// Listing represents a marketplace listing
type Listing struct {
	ID         string         `db:"id" json:"id"`
	SellerID   string         `db:"seller_id" json:"seller_id"`
	CategoryID string         `db:"category_id" json:"category_id"`
	Title      string         `db:"title" json:"title"`
	Summary    string         `db:"summary" json:"summary"`
	PriceCents *int64         `db:"price_cents" json:"price_cents,omitempty"`
	Currency   string         `db:"currency" json:"currency"`
	MediaURLs  pq.StringArray `db:"media_urls" json:"media_urls"`
	Attributes JSONMap        `db:"attributes" json:"attributes"`
	Status     string         `db:"status" json:"status"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// ListingPayload is the submission body for creating or updating a listing.
// Status is omitted on create so the backend default applies.
type ListingPayload struct {
	Title      string         `json:"title"`
	Summary    string         `json:"summary"`
	CategoryID string         `json:"category_id"`
	PriceCents *int64         `json:"price_cents,omitempty"`
	Currency   string         `json:"currency"`
	MediaURLs  []string       `json:"media_urls"`
	Attributes map[string]any `json:"attributes"`
	Status     string         `json:"status,omitempty"`
}

// Category groups listings and supplies the attribute field schema
type Category struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Slug      string    `db:"slug" json:"slug"`
	Fields    FieldList `db:"fields" json:"fields"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PromoCode is a row of the promo_codes table
type PromoCode struct {
	ID                 string     `db:"id" json:"id"`
	Code               string     `db:"code" json:"code"`
	DiscountType       string     `db:"discount_type" json:"discount_type"`
	DiscountValueCents int64      `db:"discount_value_cents" json:"discount_value_cents"`
	DiscountPercent    float64    `db:"discount_percent" json:"discount_percent"`
	IsActive           bool       `db:"is_active" json:"is_active"`
	ExpiresAt          *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	MaxUses            *int       `db:"max_uses" json:"max_uses,omitempty"`
	UsesCount          int        `db:"uses_count" json:"uses_count"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
}

// Order is a placed checkout with its fee breakdown
type Order struct {
	ID                string    `db:"id" json:"id"`
	BuyerID           string    `db:"buyer_id" json:"buyer_id"`
	SellerID          string    `db:"seller_id" json:"seller_id"`
	ListingID         string    `db:"listing_id" json:"listing_id"`
	Quantity          int       `db:"quantity" json:"quantity"`
	UnitPriceCents    int64     `db:"unit_price_cents" json:"unit_price_cents"`
	Currency          string    `db:"currency" json:"currency"`
	SubtotalCents     int64     `db:"subtotal_cents" json:"subtotal_cents"`
	PlatformFeeCents  int64     `db:"platform_fee_cents" json:"platform_fee_cents"`
	DiscountCents     int64     `db:"discount_cents" json:"discount_cents"`
	TaxCents          int64     `db:"tax_cents" json:"tax_cents"`
	TotalCents        int64     `db:"total_cents" json:"total_cents"`
	SellerPayoutCents int64     `db:"seller_payout_cents" json:"seller_payout_cents"`
	PromoCodeID       *string   `db:"promo_code_id" json:"promo_code_id,omitempty"`
	Status            string    `db:"status" json:"status"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// Payout is an amount owed to a seller for an order
type Payout struct {
	ID          string    `db:"id" json:"id"`
	SellerID    string    `db:"seller_id" json:"seller_id"`
	OrderID     string    `db:"order_id" json:"order_id"`
	AmountCents int64     `db:"amount_cents" json:"amount_cents"`
	Currency    string    `db:"currency" json:"currency"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// PaymentMethod is a row of user_payment_methods
type PaymentMethod struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Brand     string    `db:"brand" json:"brand"`
	Last4     string    `db:"last4" json:"last4"`
	IsDefault bool      `db:"is_default" json:"is_default"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// KYCDocument is a row of user_kyc_documents
type KYCDocument struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	DocumentType string    `db:"document_type" json:"document_type"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// AvailabilitySlot is a bookable window collected by the wizard
type AvailabilitySlot struct {
	Day   string `json:"day" validate:"required"`
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

// Policy is a named listing policy collected by the wizard
type Policy struct {
	Kind string `json:"kind" validate:"required"`
	Text string `json:"text" validate:"required,max=2000"`
}

// Listing statuses
const (
	ListingStatusDraft     = "draft"
	ListingStatusPublished = "published"
)

// Order statuses
const (
	OrderStatusPlaced = "PLACED"
)

// Payout statuses
const (
	PayoutStatusPending = "PENDING"
)
