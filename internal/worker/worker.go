package worker

import (
	"context"
	"errors"

	"marketplace-service/internal/broker"
	"marketplace-service/internal/models"
	"marketplace-service/internal/util"

	"github.com/segmentio/kafka-go"
)

// OrderPlacedHandler reacts to ORDER_PLACED events
type OrderPlacedHandler interface {
	HandleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
}

type messageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// PayoutWorker records seller payouts from the order event stream
type PayoutWorker struct {
	consumer     messageSource
	eventHandler *broker.EventHandler
}

// NewPayoutWorker creates a new payout worker
func NewPayoutWorker(consumer messageSource, payouts OrderPlacedHandler) *PayoutWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderPlaced(payouts.HandleOrderPlaced)

	return &PayoutWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start consumes until ctx is cancelled
func (w *PayoutWorker) Start(ctx context.Context) error {
	util.GetLogger().Info("Starting payout worker")
	err := w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handle processes one message outside the consume loop
func (w *PayoutWorker) Handle(ctx context.Context, msg kafka.Message) error {
	return w.eventHandler.HandleMessage(ctx, msg)
}

// Stop stops the worker
func (w *PayoutWorker) Stop() error {
	util.GetLogger().Info("Stopping payout worker")
	return w.consumer.Close()
}
