package service

import (
	"context"
	"testing"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/pricing"
	"marketplace-service/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var promoNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newPromoFixture() (*fakeRepo, *PromoService) {
	repo := newFakeRepo()
	return repo, NewPromoService(repo, func() time.Time { return promoNow })
}

func TestValidatePromoRejections(t *testing.T) {
	past := promoNow.Add(-time.Hour)
	exactlyNow := promoNow

	tests := []struct {
		name  string
		promo *models.PromoCode
		code  string
		want  string
	}{
		{name: "empty", code: "   ", want: PromoMsgEmpty},
		{name: "not found", code: "NOPE", want: PromoMsgNotFound},
		{
			name:  "inactive",
			code:  "OFF",
			promo: &models.PromoCode{ID: "p1", Code: "OFF", DiscountType: "fixed", DiscountValueCents: 100},
			want:  PromoMsgInactive,
		},
		{
			name:  "expired",
			code:  "OLD",
			promo: &models.PromoCode{ID: "p2", Code: "OLD", DiscountType: "fixed", IsActive: true, ExpiresAt: &past},
			want:  PromoMsgExpired,
		},
		{
			name:  "expires now",
			code:  "EDGE",
			promo: &models.PromoCode{ID: "p3", Code: "EDGE", DiscountType: "fixed", IsActive: true, ExpiresAt: &exactlyNow},
			want:  PromoMsgExpired,
		},
		{
			name:  "usage exhausted",
			code:  "USED",
			promo: &models.PromoCode{ID: "p4", Code: "USED", DiscountType: "fixed", IsActive: true, MaxUses: intp(3), UsesCount: 3},
			want:  PromoMsgExhausted,
		},
		{
			name:  "unknown discount type",
			code:  "ODD",
			promo: &models.PromoCode{ID: "p5", Code: "ODD", DiscountType: "bogus", IsActive: true},
			want:  PromoMsgMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, svc := newPromoFixture()
			if tt.promo != nil {
				repo.promos[tt.promo.Code] = tt.promo
			}

			result, err := svc.Validate(context.Background(), tt.code)
			require.NoError(t, err)
			assert.False(t, result.Valid)
			assert.Equal(t, tt.want, result.Message)
			assert.Nil(t, result.Discount())
		})
	}
}

func TestValidatePromoNormalizesCode(t *testing.T) {
	repo, svc := newPromoFixture()
	future := promoNow.Add(time.Hour)
	repo.promos["SAVE10"] = &models.PromoCode{
		ID: "p1", Code: "save10", DiscountType: "percent", DiscountPercent: 10,
		IsActive: true, ExpiresAt: &future, MaxUses: intp(5), UsesCount: 4,
	}

	result, err := svc.Validate(context.Background(), "  save10 ")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "SAVE10", result.Code)
	assert.Equal(t, "p1", result.PromoCodeID)
	assert.Equal(t, pricing.DiscountPercent, result.DiscountType)
	assert.Equal(t, 10.0, result.DiscountPercent)
	assert.Nil(t, result.PreviewDiscountCents)
}

func TestPreviewPromoCapsAtSubtotal(t *testing.T) {
	repo, svc := newPromoFixture()
	repo.promos["BIG"] = &models.PromoCode{ID: "p1", Code: "BIG", DiscountType: "fixed", DiscountValueCents: 5000, IsActive: true}

	result, err := svc.Preview(context.Background(), "big", 4000)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.NotNil(t, result.PreviewDiscountCents)
	assert.Equal(t, int64(4000), *result.PreviewDiscountCents)
}

func TestPreviewInvalidPromoHasNoPreview(t *testing.T) {
	_, svc := newPromoFixture()

	result, err := svc.Preview(context.Background(), "missing", 4000)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Nil(t, result.PreviewDiscountCents)
}

func TestValidatePromoBackendError(t *testing.T) {
	repo, svc := newPromoFixture()
	repo.failFindPromo = repository.ErrNotConfigured

	_, err := svc.Validate(context.Background(), "ANY")
	assert.ErrorIs(t, err, repository.ErrNotConfigured)
}
