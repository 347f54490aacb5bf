// Package amqp carries pipeline messages over RabbitMQ. Topics are routing keys
// on one topic exchange and every consumer group owns a durable queue bound to
// its topic, so each group sees every message once.
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"bookingengine/internal/app/pipeline"
	"bookingengine/internal/domain/shared/fault"
)

const headerKey = "partition-key"

type Broker struct {
	conn     *amqp.Connection
	exchange string
	logger   *slog.Logger

	pubMu sync.Mutex
	pubCh *amqp.Channel
}

func Dial(url, exchange string, logger *slog.Logger) (*Broker, error) {
	if exchange == "" {
		exchange = "bookings"
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp: connect: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp: declare exchange %s: %w", exchange, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{conn: conn, exchange: exchange, logger: logger, pubCh: ch}, nil
}

func (b *Broker) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	table := amqp.Table{headerKey: key}
	for k, v := range headers {
		table[k] = v
	}
	id := headers[pipeline.HeaderEventID]
	if id == "" {
		id = uuid.NewString()
	}
	pub := amqp.Publishing{
		MessageId:    id,
		ContentType:  headers[pipeline.HeaderContentType],
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Headers:      table,
		Body:         payload,
	}

	b.pubMu.Lock()
	defer b.pubMu.Unlock()
	if err := b.pubCh.Publish(b.exchange, topic, false, false, pub); err != nil {
		return fmt.Errorf("%w: amqp publish to %s: %w", fault.ErrTransient, topic, err)
	}
	return nil
}

// Subscribe consumes the group's queue with prefetch 1 and manual acks. The
// queue has a single active consumer, so extra members are hot standbys and
// per-key order is kept.
func (b *Broker) Subscribe(ctx context.Context, topic, group string, h pipeline.Handler) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp: open channel: %w", err)
	}
	defer ch.Close()

	queue := group + "." + topic
	args := amqp.Table{"x-single-active-consumer": true}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("amqp: declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, topic, b.exchange, false, nil); err != nil {
		return fmt.Errorf("amqp: bind queue %s: %w", queue, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("amqp: set qos: %w", err)
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp: consume %s: %w", queue, err)
	}

	logger := b.logger.With("topic", topic, "group", group)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("amqp: delivery channel for %s closed", queue)
			}
			msg := toMessage(topic, d)
			if err := h.Handle(ctx, msg); err != nil {
				logger.Warn("message requeued", "event_id", msg.ID, "error", err)
				if nackErr := d.Nack(false, true); nackErr != nil {
					return nackErr
				}
				continue
			}
			if err := d.Ack(false); err != nil {
				return err
			}
		}
	}
}

func (b *Broker) Close() error {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()
	if b.pubCh != nil {
		_ = b.pubCh.Close()
	}
	return b.conn.Close()
}

func toMessage(topic string, d amqp.Delivery) pipeline.Message {
	headers := make(map[string]string, len(d.Headers))
	for k, v := range d.Headers {
		if s, ok := v.(string); ok {
			headers[k] = s
		}
	}
	key := headers[headerKey]
	delete(headers, headerKey)
	id := d.MessageId
	if id == "" {
		id = headers[pipeline.HeaderEventID]
	}
	return pipeline.Message{ID: id, Topic: topic, Key: key, Payload: d.Body, Headers: headers}
}

var (
	_ pipeline.Producer   = (*Broker)(nil)
	_ pipeline.Subscriber = (*Broker)(nil)
)
