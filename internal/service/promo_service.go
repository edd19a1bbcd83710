package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/pricing"
	"marketplace-service/internal/repository"
	"marketplace-service/internal/util"

	"go.uber.org/zap"
)

// User-facing promo messages
const (
	PromoMsgEmpty     = "Enter a promo code"
	PromoMsgNotFound  = "Promo code not found"
	PromoMsgInactive  = "This promo code is no longer active"
	PromoMsgExpired   = "This promo code has expired"
	PromoMsgExhausted = "This promo code has reached its usage limit"
	PromoMsgMalformed = "This promo code cannot be applied"
	PromoMsgApplied   = "Promo code applied"
)

// ErrPromoInvalid is wrapped by PromoError
var ErrPromoInvalid = errors.New("promo code is not valid")

// PromoError carries the validation result of a rejected promo code
type PromoError struct {
	Result PromoResult
}

func (e *PromoError) Error() string {
	return fmt.Sprintf("%s: %s", ErrPromoInvalid, e.Result.Message)
}

func (e *PromoError) Unwrap() error {
	return ErrPromoInvalid
}

// PromoResult is the promo validation contract
type PromoResult struct {
	Valid                bool                 `json:"valid"`
	Code                 string               `json:"code"`
	DiscountType         pricing.DiscountType `json:"discount_type,omitempty"`
	DiscountValueCents   int64                `json:"discount_value_cents"`
	DiscountPercent      float64              `json:"discount_percent"`
	PromoCodeID          string               `json:"promo_code_id,omitempty"`
	Message              string               `json:"message"`
	PreviewDiscountCents *int64               `json:"preview_discount_cents,omitempty"`
}

// Discount returns the pricing discount of a valid result, nil otherwise
func (r PromoResult) Discount() *pricing.Discount {
	if !r.Valid {
		return nil
	}
	return &pricing.Discount{
		Type:       r.DiscountType,
		ValueCents: r.DiscountValueCents,
		Percent:    r.DiscountPercent,
	}
}

// PromoService validates and redeems promo codes
type PromoService struct {
	repo   repository.PromoRepository
	clock  func() time.Time
	logger *zap.Logger
}

// NewPromoService creates a promo service. A nil clock uses time.Now.
func NewPromoService(repo repository.PromoRepository, clock func() time.Time) *PromoService {
	if clock == nil {
		clock = time.Now
	}
	return &PromoService{
		repo:   repo,
		clock:  func() time.Time { return clock().UTC() },
		logger: util.GetLogger(),
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate resolves a raw code. Rejections are reported in the result; the
// error is reserved for backend failures.
func (s *PromoService) Validate(ctx context.Context, raw string) (PromoResult, error) {
	ctx, span := util.StartSpan(ctx, "PromoService.Validate")
	defer span.End()

	code := normalizeCode(raw)
	if code == "" {
		return s.reject(code, "empty", PromoMsgEmpty), nil
	}

	done := observeBackend("find_promo")
	promo, err := s.repo.FindPromoByCode(ctx, code)
	done()
	if errors.Is(err, repository.ErrNotFound) {
		return s.reject(code, "not_found", PromoMsgNotFound), nil
	}
	if err != nil {
		util.RecordError(span, err)
		return PromoResult{}, fmt.Errorf("failed to look up promo code: %w", err)
	}

	return s.evaluate(promo), nil
}

func (s *PromoService) evaluate(promo *models.PromoCode) PromoResult {
	code := normalizeCode(promo.Code)
	switch {
	case !promo.IsActive:
		return s.reject(code, "inactive", PromoMsgInactive)
	case promo.ExpiresAt != nil && !promo.ExpiresAt.After(s.clock()):
		return s.reject(code, "expired", PromoMsgExpired)
	case promo.MaxUses != nil && promo.UsesCount >= *promo.MaxUses:
		return s.reject(code, "exhausted", PromoMsgExhausted)
	}

	discountType := pricing.DiscountType(promo.DiscountType)
	if discountType != pricing.DiscountPercent && discountType != pricing.DiscountFixed {
		s.logger.Warn("Promo code has unknown discount type",
			zap.String("code", code),
			zap.String("discount_type", promo.DiscountType))
		return s.reject(code, "malformed", PromoMsgMalformed)
	}

	util.PromoValidationsTotal.WithLabelValues("valid").Inc()
	return PromoResult{
		Valid:              true,
		Code:               code,
		DiscountType:       discountType,
		DiscountValueCents: promo.DiscountValueCents,
		DiscountPercent:    promo.DiscountPercent,
		PromoCodeID:        promo.ID,
		Message:            PromoMsgApplied,
	}
}

func (s *PromoService) reject(code, reason, message string) PromoResult {
	util.PromoValidationsTotal.WithLabelValues(reason).Inc()
	return PromoResult{Valid: false, Code: code, Message: message}
}

// Preview validates a code and, when valid, previews the discount against a
// subtotal using the same cap as checkout.
func (s *PromoService) Preview(ctx context.Context, raw string, subtotalCents int64) (PromoResult, error) {
	result, err := s.Validate(ctx, raw)
	if err != nil || !result.Valid {
		return result, err
	}
	preview := pricing.EffectiveDiscount(*result.Discount(), subtotalCents)
	result.PreviewDiscountCents = &preview
	return result, nil
}

// observeBackend times one repository call
func observeBackend(operation string) func() {
	start := time.Now()
	return func() {
		util.BackendRequestLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
