package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/pricing"
	"marketplace-service/internal/repository"
	"marketplace-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrListingHasNoPrice blocks checkout for listings without a price
	ErrListingHasNoPrice = errors.New("listing has no price and cannot be checked out")
	// ErrListingUnavailable is returned for listings that are not published
	ErrListingUnavailable = errors.New("listing is not available for purchase")
	// ErrSelfPurchase is returned when a seller tries to buy their own listing
	ErrSelfPurchase = errors.New("sellers cannot buy their own listing")
	// ErrOrderInProgress is returned while another request holds the same idempotency key
	ErrOrderInProgress = errors.New("an order with this idempotency key is already being placed")
)

// idempotencyStore claims a key before an order is placed. Reserve returns
// reserved=false with the stored order id for a finished request, or an
// empty id while the first request is still running.
type idempotencyStore interface {
	ReserveIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (orderID string, reserved bool, err error)
	SetIdempotencyKey(ctx context.Context, key string, orderID string, ttl time.Duration) error
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

type orderEventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
}

// CheckoutService prices line items and places orders
type CheckoutService struct {
	listings       repository.ListingRepository
	orders         repository.OrderRepository
	promos         *PromoService
	calc           *pricing.Calculator
	idempotency    idempotencyStore
	publisher      orderEventPublisher
	idempotencyTTL time.Duration
	logger         *zap.Logger
}

// CheckoutDeps bundles the collaborators of a CheckoutService
type CheckoutDeps struct {
	Listings       repository.ListingRepository
	Orders         repository.OrderRepository
	Promos         *PromoService
	Calculator     *pricing.Calculator
	Idempotency    idempotencyStore
	Publisher      orderEventPublisher
	IdempotencyTTL time.Duration
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(deps CheckoutDeps) *CheckoutService {
	ttl := deps.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CheckoutService{
		listings:       deps.Listings,
		orders:         deps.Orders,
		promos:         deps.Promos,
		calc:           deps.Calculator,
		idempotency:    deps.Idempotency,
		publisher:      deps.Publisher,
		idempotencyTTL: ttl,
		logger:         util.GetLogger(),
	}
}

// QuoteRequest asks for the breakdown of one listing times a quantity
type QuoteRequest struct {
	ListingID string `json:"listing_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"lte=10000"`
	PromoCode string `json:"promo_code"`
}

// Quote is a priced checkout
type Quote struct {
	LineItem  pricing.LineItem  `json:"line_item"`
	Breakdown pricing.Breakdown `json:"breakdown"`
	Promo     *PromoResult      `json:"promo,omitempty"`

	listing *models.Listing
}

// Quote computes the fee breakdown for a listing. An invalid promo code
// fails the quote with a *PromoError so preview and charge never disagree.
func (s *CheckoutService) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Quote")
	defer span.End()

	done := observeBackend("get_listing")
	listing, err := s.listings.GetListing(ctx, req.ListingID)
	done()
	if err != nil {
		util.CheckoutQuotesTotal.WithLabelValues("listing_error").Inc()
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}
	if listing.Status != models.ListingStatusPublished {
		util.CheckoutQuotesTotal.WithLabelValues("unavailable").Inc()
		return nil, ErrListingUnavailable
	}

	line, err := pricing.NewLineItem(listing.ID, listing.PriceCents, req.Quantity, listing.Currency)
	if errors.Is(err, pricing.ErrNoPrice) {
		util.CheckoutQuotesTotal.WithLabelValues("no_price").Inc()
		return nil, ErrListingHasNoPrice
	}
	if err != nil {
		util.CheckoutQuotesTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	quote := &Quote{LineItem: line, listing: listing}

	var discount *pricing.Discount
	if normalizeCode(req.PromoCode) != "" {
		result, err := s.promos.Preview(ctx, req.PromoCode, line.Total())
		if err != nil {
			util.CheckoutQuotesTotal.WithLabelValues("promo_error").Inc()
			return nil, err
		}
		if !result.Valid {
			util.CheckoutQuotesTotal.WithLabelValues("promo_invalid").Inc()
			return nil, &PromoError{Result: result}
		}
		quote.Promo = &result
		discount = result.Discount()
	}

	quote.Breakdown = s.calc.Quote(line, discount)
	util.CheckoutQuotesTotal.WithLabelValues("ok").Inc()
	return quote, nil
}

// PlaceOrderRequest places an order for one listing
type PlaceOrderRequest struct {
	BuyerID        string `json:"-"`
	ListingID      string `json:"listing_id" binding:"required"`
	Quantity       int    `json:"quantity" binding:"lte=10000"`
	PromoCode      string `json:"promo_code"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// PlaceOrder prices and persists an order. A repeated idempotency key
// returns the order created the first time; the key is claimed before any
// work so concurrent repeats cannot create a second order.
func (s *CheckoutService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.PlaceOrder")
	defer span.End()

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	}

	existingID, reserved, err := s.idempotency.ReserveIdempotencyKey(ctx, req.IdempotencyKey, s.idempotencyTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if !reserved {
		if existingID == "" {
			util.OrdersFailedTotal.WithLabelValues("in_progress").Inc()
			return nil, ErrOrderInProgress
		}
		s.logger.Info("Duplicate order request detected",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.String("order_id", existingID))
		return s.GetOrder(ctx, existingID)
	}

	order, err := s.createOrder(ctx, req)
	if err != nil {
		util.RecordError(span, err)
		if rerr := s.idempotency.ReleaseIdempotencyKey(ctx, req.IdempotencyKey); rerr != nil {
			s.logger.Error("Failed to release idempotency key",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Error(rerr))
		}
		return nil, err
	}

	if err := s.idempotency.SetIdempotencyKey(ctx, req.IdempotencyKey, order.ID, s.idempotencyTTL); err != nil {
		s.logger.Error("Failed to store idempotency key", zap.Error(err))
	}

	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		OrderID:           order.ID,
		BuyerID:           order.BuyerID,
		SellerID:          order.SellerID,
		ListingID:         order.ListingID,
		Currency:          order.Currency,
		TotalCents:        order.TotalCents,
		PlatformFeeCents:  order.PlatformFeeCents,
		SellerPayoutCents: order.SellerPayoutCents,
	}
	if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}

	return order, nil
}

// createOrder quotes and stores the order. The backend redeems the promo
// code with the insert, so a code used up since the quote fails the order.
func (s *CheckoutService) createOrder(ctx context.Context, req PlaceOrderRequest) (*models.Order, error) {
	quote, err := s.Quote(ctx, QuoteRequest{
		ListingID: req.ListingID,
		Quantity:  req.Quantity,
		PromoCode: req.PromoCode,
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("quote").Inc()
		return nil, err
	}
	if req.BuyerID != "" && req.BuyerID == quote.listing.SellerID {
		util.OrdersFailedTotal.WithLabelValues("self_purchase").Inc()
		return nil, ErrSelfPurchase
	}

	b := quote.Breakdown
	order := &models.Order{
		BuyerID:           req.BuyerID,
		SellerID:          quote.listing.SellerID,
		ListingID:         quote.LineItem.ListingID,
		Quantity:          quote.LineItem.Quantity,
		UnitPriceCents:    quote.LineItem.UnitPriceCents,
		Currency:          b.Currency,
		SubtotalCents:     b.SubtotalCents,
		PlatformFeeCents:  b.PlatformFeeCents,
		DiscountCents:     b.DiscountCents,
		TaxCents:          b.TaxCents,
		TotalCents:        b.TotalCents,
		SellerPayoutCents: b.SellerPayoutCents,
		Status:            models.OrderStatusPlaced,
	}
	if quote.Promo != nil {
		id := quote.Promo.PromoCodeID
		order.PromoCodeID = &id
	}

	done := observeBackend("create_order")
	err = s.orders.CreateOrder(ctx, order)
	done()
	if errors.Is(err, repository.ErrPromoExhausted) && quote.Promo != nil {
		util.OrdersFailedTotal.WithLabelValues("promo_exhausted").Inc()
		return nil, &PromoError{Result: PromoResult{Code: quote.Promo.Code, Message: PromoMsgExhausted}}
	}
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("backend").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersPlacedTotal.Inc()
	util.OrderValueCents.Observe(float64(order.TotalCents))
	s.logger.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("listing_id", order.ListingID),
		zap.Int64("total_cents", order.TotalCents))
	return order, nil
}

// GetOrder retrieves an order by ID
func (s *CheckoutService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	done := observeBackend("get_order")
	defer done()
	return s.orders.GetOrder(ctx, orderID)
}
