package models

import "time"

// Event types
const (
	EventTypeOrderPlaced      = "ORDER_PLACED"
	EventTypeListingPublished = "LISTING_PUBLISHED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published when checkout creates an order
type OrderPlacedEvent struct {
	BaseEvent
	OrderID           string `json:"order_id"`
	BuyerID           string `json:"buyer_id"`
	SellerID          string `json:"seller_id"`
	ListingID         string `json:"listing_id"`
	Currency          string `json:"currency"`
	TotalCents        int64  `json:"total_cents"`
	PlatformFeeCents  int64  `json:"platform_fee_cents"`
	SellerPayoutCents int64  `json:"seller_payout_cents"`
}

// ListingPublishedEvent published when a wizard publishes a listing
type ListingPublishedEvent struct {
	BaseEvent
	ListingID  string `json:"listing_id"`
	SellerID   string `json:"seller_id"`
	CategoryID string `json:"category_id"`
}
