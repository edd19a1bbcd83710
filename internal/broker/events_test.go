package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"marketplace-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs []kafka.Message
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestPublishOrderPlacedUsesOrderTopic(t *testing.T) {
	w := &captureWriter{}
	ep := NewEventPublisher(NewProducerWithWriter(w), "order-events", "listing-events")

	err := ep.PublishOrderPlaced(context.Background(), &models.OrderPlacedEvent{
		BaseEvent:  models.BaseEvent{EventID: "e1", EventType: models.EventTypeOrderPlaced, Timestamp: time.Now()},
		OrderID:    "o1",
		TotalCents: 4400,
	})
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "order-events", w.msgs[0].Topic)
	assert.Equal(t, "order-o1", string(w.msgs[0].Key))

	var decoded models.OrderPlacedEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, int64(4400), decoded.TotalCents)
}

func TestPublishListingPublishedUsesListingTopic(t *testing.T) {
	w := &captureWriter{}
	ep := NewEventPublisher(NewProducerWithWriter(w), "order-events", "listing-events")

	require.NoError(t, ep.PublishListingPublished(context.Background(), &models.ListingPublishedEvent{ListingID: "l1"}))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "listing-events", w.msgs[0].Topic)
}

func TestHandleMessageRoutesOrderPlaced(t *testing.T) {
	eh := NewEventHandler()
	var got *models.OrderPlacedEvent
	eh.OnOrderPlaced(func(_ context.Context, e *models.OrderPlacedEvent) error {
		got = e
		return nil
	})

	value, err := json.Marshal(models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{EventID: "e1", EventType: models.EventTypeOrderPlaced},
		OrderID:   "o1",
		SellerID:  "s1",
	})
	require.NoError(t, err)

	require.NoError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: value}))
	require.NotNil(t, got)
	assert.Equal(t, "s1", got.SellerID)
}

func TestHandleMessageIgnoresUnknownTypes(t *testing.T) {
	eh := NewEventHandler()

	err := eh.HandleMessage(context.Background(), kafka.Message{Value: []byte(`{"event_type":"SOMETHING_ELSE"}`)})

	assert.NoError(t, err)
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	eh := NewEventHandler()

	err := eh.HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")})
	assert.ErrorIs(t, err, ErrMalformedMessage)
}
