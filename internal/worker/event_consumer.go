package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"docchat/internal/model"
	"docchat/internal/pkg/logger"
)

type EventHandlerFunc func(ctx context.Context, event model.Event) error

// EventConsumer binds a private queue to the events exchange and hands every
// matching event to the handler. Each process gets its own copy of the events.
type EventConsumer struct {
	conn        *amqp.Connection
	exchange    string
	routingKeys []string
	handle      EventHandlerFunc
	log         logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEventConsumer(conn *amqp.Connection, exchange string, handle EventHandlerFunc, log logger.Logger, eventTypes ...model.EventType) *EventConsumer {
	if log == nil {
		log = logger.NewNop()
	}
	keys := make([]string, 0, len(eventTypes))
	for _, t := range eventTypes {
		keys = append(keys, string(t))
	}
	if len(keys) == 0 {
		keys = append(keys, "#")
	}
	return &EventConsumer{
		conn:        conn,
		exchange:    exchange,
		routingKeys: keys,
		handle:      handle,
		log:         log,
	}
}

func (w *EventConsumer) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	ch, err := w.conn.Channel()
	if err != nil {
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if err := ch.ExchangeDeclare(w.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare exchange failed: %w", err)
	}

	queue, err := ch.QueueDeclare(
		"",
		false,
		true,
		true,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	for _, key := range w.routingKeys {
		if err := ch.QueueBind(queue.Name, key, w.exchange, false, nil); err != nil {
			_ = ch.Close()
			return fmt.Errorf("bind worker queue failed: %w", err)
		}
	}

	deliveries, err := ch.Consume(
		queue.Name,
		"",
		false,
		true,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()
		w.consume(workerCtx, deliveries)
	}()

	w.log.Info("worker", "event consumer started", map[string]interface{}{"queue": queue.Name, "routing_keys": w.routingKeys})
	return nil
}

// consume runs until ctx ends or the broker closes the delivery channel.
func (w *EventConsumer) consume(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker", "event consumer stopped", nil)
			return
		case d, ok := <-deliveries:
			if !ok {
				w.log.Warn("worker", "event delivery channel closed, cross-process detach disabled", map[string]interface{}{
					"exchange": w.exchange,
				})
				return
			}
			w.handleDelivery(ctx, d)
		}
	}
}

// handleDelivery acks handled events. Undecodable or failed ones are dropped
// rather than requeued.
func (w *EventConsumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	var event model.Event
	if err := json.Unmarshal(d.Body, &event); err != nil {
		w.log.Warn("worker", "decode event failed", map[string]interface{}{"error": err})
		_ = d.Nack(false, false)
		return
	}

	if err := w.handle(ctx, event); err != nil {
		w.log.Warn("worker", "handle event failed", map[string]interface{}{"type": string(event.Type), "error": err})
		_ = d.Nack(false, false)
		return
	}

	_ = d.Ack(false)
}

func (w *EventConsumer) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
