package worker

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"docchat/internal/model"
	"docchat/internal/pkg/logger"
)

type ackRecorder struct {
	acked, nacked, requeued int
}

func (a *ackRecorder) Ack(uint64, bool) error {
	a.acked++
	return nil
}

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	if requeue {
		a.requeued++
	}
	return nil
}

func (a *ackRecorder) Reject(uint64, bool) error {
	return nil
}

func TestNewEventConsumerRoutingKeys(t *testing.T) {
	c := NewEventConsumer(nil, "docchat.events", nil, nil, model.EventThreadDeleted, model.EventDocumentDeleted)
	assert.Equal(t, []string{"thread.deleted", "document.deleted"}, c.routingKeys)

	all := NewEventConsumer(nil, "docchat.events", nil, nil)
	assert.Equal(t, []string{"#"}, all.routingKeys)
}

func TestHandleDelivery(t *testing.T) {
	var got []model.Event
	var handlerErr error
	c := NewEventConsumer(nil, "docchat.events", func(_ context.Context, e model.Event) error {
		got = append(got, e)
		return handlerErr
	}, logger.NewNop())

	ack := &ackRecorder{}
	c.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		Body:         []byte(`{"type":"thread.deleted","thread_id":"t-1","occurred_at":"2024-03-01T12:00:00Z"}`),
	})
	assert.Equal(t, 1, ack.acked)
	if assert.Len(t, got, 1) {
		assert.Equal(t, model.EventThreadDeleted, got[0].Type)
		assert.Equal(t, "t-1", got[0].ThreadID)
	}

	c.handleDelivery(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("not json")})
	assert.Equal(t, 1, ack.nacked)
	assert.Len(t, got, 1)

	handlerErr = errors.New("boom")
	c.handleDelivery(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte(`{"type":"document.deleted"}`)})
	assert.Equal(t, 2, ack.nacked)
	assert.Equal(t, 0, ack.requeued)
	assert.Equal(t, 1, ack.acked)
}

func TestConsumeLogsClosedDeliveryChannel(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	var handled int
	c := NewEventConsumer(nil, "docchat.events", func(context.Context, model.Event) error {
		handled++
		return nil
	}, logger.FromZap(zap.New(core)))

	deliveries := make(chan amqp.Delivery, 1)
	deliveries <- amqp.Delivery{Acknowledger: &ackRecorder{}, Body: []byte(`{"type":"thread.deleted","thread_id":"t-1"}`)}
	close(deliveries)

	c.consume(context.Background(), deliveries)

	assert.Equal(t, 1, handled)
	closed := logs.FilterMessage("event delivery channel closed, cross-process detach disabled").All()
	if assert.Len(t, closed, 1) {
		assert.Equal(t, zap.WarnLevel, closed[0].Level)
	}
}

func TestConsumeStopsOnContextCancel(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	c := NewEventConsumer(nil, "docchat.events", nil, logger.FromZap(zap.New(core)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.consume(ctx, make(chan amqp.Delivery))

	assert.Equal(t, 1, logs.FilterMessage("event consumer stopped").Len())
}
