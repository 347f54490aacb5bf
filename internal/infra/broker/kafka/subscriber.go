package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"bookingengine/internal/app/pipeline"
)

// Subscriber joins kafka consumer groups. Every Subscribe call is one group
// member with its own client; partitions are balanced across members by kafka.
type Subscriber struct {
	Brokers []string
	// Config is copied per member. Nil uses NewConfig.
	Config *sarama.Config
	// RejoinDelay is the pause before rejoining after a handler failure.
	RejoinDelay time.Duration
	Logger      *slog.Logger
}

func (s *Subscriber) Subscribe(ctx context.Context, topic, group string, h pipeline.Handler) error {
	cfg := NewConfig("bookingengine-" + group)
	if s.Config != nil {
		copied := *s.Config
		cfg = &copied
	}
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Offsets.AutoCommit.Enable = true
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRange()}

	cg, err := sarama.NewConsumerGroup(s.Brokers, group, cfg)
	if err != nil {
		return fmt.Errorf("kafka: join group %s: %w", group, err)
	}
	defer cg.Close()

	handler := claimHandler{handler: h, logger: s.log().With("topic", topic, "group", group)}
	for {
		err := cg.Consume(ctx, []string{topic}, handler)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return err
		}
		if err != nil {
			s.log().Warn("kafka consume session ended", "topic", topic, "group", group, "error", err)
		}
		if !sleep(ctx, s.rejoinDelay()) {
			return nil
		}
	}
}

func (s *Subscriber) rejoinDelay() time.Duration {
	if s.RejoinDelay > 0 {
		return s.RejoinDelay
	}
	return time.Second
}

func (s *Subscriber) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

type claimHandler struct {
	handler pipeline.Handler
	logger  *slog.Logger
}

func (h claimHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h claimHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks a message only after the handler succeeds. A failure ends
// the session, so the group rejoins from the last marked offset and the
// message is delivered again.
func (h claimHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-sess.Context().Done():
			return nil
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			msg := toMessage(message)
			if err := h.handler.Handle(sess.Context(), msg); err != nil {
				h.logger.Warn("message left unmarked", "partition", message.Partition, "offset", message.Offset, "event_id", msg.ID, "error", err)
				return err
			}
			sess.MarkMessage(message, "")
		}
	}
}

func toMessage(m *sarama.ConsumerMessage) pipeline.Message {
	headers := make(map[string]string, len(m.Headers))
	for _, hdr := range m.Headers {
		if hdr == nil {
			continue
		}
		headers[string(hdr.Key)] = string(hdr.Value)
	}
	id := headers[pipeline.HeaderEventID]
	if id == "" {
		id = fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset)
	}
	return pipeline.Message{ID: id, Topic: m.Topic, Key: string(m.Key), Payload: m.Value, Headers: headers}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

var _ pipeline.Subscriber = (*Subscriber)(nil)
