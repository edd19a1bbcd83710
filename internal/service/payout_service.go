package service

import (
	"context"
	"fmt"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/repository"
	"marketplace-service/internal/util"

	"go.uber.org/zap"
)

type eventDeduper interface {
	MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	UnmarkEventProcessed(ctx context.Context, eventID string) error
}

// PayoutService records what each seller is owed for placed orders
type PayoutService struct {
	payouts repository.PayoutRepository
	dedupe  eventDeduper
	ttl     time.Duration
	logger  *zap.Logger
}

// NewPayoutService creates a new payout service
func NewPayoutService(payouts repository.PayoutRepository, dedupe eventDeduper, ttl time.Duration) *PayoutService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &PayoutService{
		payouts: payouts,
		dedupe:  dedupe,
		ttl:     ttl,
		logger:  util.GetLogger(),
	}
}

// HandleOrderPlaced records a pending payout for an order. Redelivered
// events are skipped; a failed write releases the event for retry.
func (s *PayoutService) HandleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	ctx, span := util.StartSpan(ctx, "PayoutService.HandleOrderPlaced")
	defer span.End()

	first, err := s.dedupe.MarkEventProcessed(ctx, event.EventID, s.ttl)
	if err != nil {
		return fmt.Errorf("failed to mark event: %w", err)
	}
	if !first {
		s.logger.Info("Skipping duplicate OrderPlaced event",
			zap.String("event_id", event.EventID),
			zap.String("order_id", event.OrderID))
		return nil
	}

	payout := &models.Payout{
		SellerID:    event.SellerID,
		OrderID:     event.OrderID,
		AmountCents: event.SellerPayoutCents,
		Currency:    event.Currency,
		Status:      models.PayoutStatusPending,
	}

	done := observeBackend("create_payout")
	err = s.payouts.CreatePayout(ctx, payout)
	done()
	if err != nil {
		util.RecordError(span, err)
		if uerr := s.dedupe.UnmarkEventProcessed(ctx, event.EventID); uerr != nil {
			s.logger.Error("Failed to release event", zap.String("event_id", event.EventID), zap.Error(uerr))
		}
		return fmt.Errorf("failed to record payout: %w", err)
	}

	util.PayoutsRecordedTotal.Inc()
	s.logger.Info("Payout recorded",
		zap.String("order_id", event.OrderID),
		zap.String("seller_id", event.SellerID),
		zap.Int64("amount_cents", event.SellerPayoutCents))
	return nil
}

// ListPayouts returns a seller's payouts, newest first
func (s *PayoutService) ListPayouts(ctx context.Context, sellerID string) ([]models.Payout, error) {
	done := observeBackend("list_payouts")
	defer done()
	return s.payouts.ListPayoutsBySeller(ctx, sellerID)
}

// AccountService exposes the hosted-only account tables
type AccountService struct {
	accounts repository.AccountRepository
}

// NewAccountService creates a new account service
func NewAccountService(accounts repository.AccountRepository) *AccountService {
	return &AccountService{accounts: accounts}
}

// PaymentMethods lists a user's saved payment methods
func (s *AccountService) PaymentMethods(ctx context.Context, userID string) ([]models.PaymentMethod, error) {
	done := observeBackend("list_payment_methods")
	defer done()
	return s.accounts.ListPaymentMethods(ctx, userID)
}

// KYCDocuments lists a user's identity documents
func (s *AccountService) KYCDocuments(ctx context.Context, userID string) ([]models.KYCDocument, error) {
	done := observeBackend("list_kyc_documents")
	defer done()
	return s.accounts.ListKYCDocuments(ctx, userID)
}
