package service

import (
	"context"
	"testing"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderPlaced(eventID string) *models.OrderPlacedEvent {
	return &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   eventID,
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		OrderID:           "order-1",
		SellerID:          "seller-1",
		Currency:          "USD",
		TotalCents:        4400,
		SellerPayoutCents: 3600,
	}
}

func TestHandleOrderPlacedRecordsPayout(t *testing.T) {
	repo := newFakeRepo()
	svc := NewPayoutService(repo, newFakeKV(), 0)

	require.NoError(t, svc.HandleOrderPlaced(context.Background(), orderPlaced("e1")))

	payouts, err := svc.ListPayouts(context.Background(), "seller-1")
	require.NoError(t, err)
	require.Len(t, payouts, 1)
	assert.Equal(t, "order-1", payouts[0].OrderID)
	assert.Equal(t, int64(3600), payouts[0].AmountCents)
	assert.Equal(t, models.PayoutStatusPending, payouts[0].Status)
}

func TestHandleOrderPlacedSkipsRedelivery(t *testing.T) {
	repo := newFakeRepo()
	svc := NewPayoutService(repo, newFakeKV(), time.Hour)

	require.NoError(t, svc.HandleOrderPlaced(context.Background(), orderPlaced("e1")))
	require.NoError(t, svc.HandleOrderPlaced(context.Background(), orderPlaced("e1")))

	assert.Len(t, repo.payouts, 1)
}

func TestHandleOrderPlacedReleasesEventOnFailure(t *testing.T) {
	repo := newFakeRepo()
	kv := newFakeKV()
	svc := NewPayoutService(repo, kv, time.Hour)
	repo.failCreatePayout = errBackendDown

	err := svc.HandleOrderPlaced(context.Background(), orderPlaced("e1"))
	assert.ErrorIs(t, err, errBackendDown)
	assert.False(t, kv.processed["e1"])

	repo.failCreatePayout = nil
	require.NoError(t, svc.HandleOrderPlaced(context.Background(), orderPlaced("e1")))
	assert.Len(t, repo.payouts, 1)
}

func TestAccountServiceRequiresHostedBackend(t *testing.T) {
	svc := NewAccountService(newFakeRepo())

	_, err := svc.PaymentMethods(context.Background(), "u1")
	assert.ErrorIs(t, err, repository.ErrNotConfigured)

	_, err = svc.KYCDocuments(context.Background(), "u1")
	assert.ErrorIs(t, err, repository.ErrNotConfigured)
}
