package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookingengine/internal/app/pipeline"
)

type collector struct {
	mu   sync.Mutex
	seen map[string][]string
}

func newCollector() *collector { return &collector{seen: map[string][]string{}} }

func (c *collector) handler(member string) pipeline.Handler {
	return pipeline.HandlerFunc(func(_ context.Context, msg pipeline.Message) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.seen[msg.Key] = append(c.seen[msg.Key], string(msg.Payload))
		c.seen["member:"+member] = append(c.seen["member:"+member], msg.ID)
		return nil
	})
}

func (c *collector) count(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen[key])
}

func (c *collector) values(key string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.seen[key]...)
}

func subscribe(t *testing.T, b *Broker, topic, group string, h pipeline.Handler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Subscribe(ctx, topic, group, h)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestEveryGroupSeesEveryMessage(t *testing.T) {
	b := New(Options{Partitions: 4})
	decisions, timeline := newCollector(), newCollector()
	subscribe(t, b, "bookings.requests", "owner-decision", decisions.handler("d"))
	subscribe(t, b, "bookings.requests", "booking-timeline", timeline.handler("t"))

	for i := 0; i < 10; i++ {
		require.NoError(t, b.Publish(context.Background(), "bookings.requests", "prop-1", []byte(fmt.Sprint(i)), nil))
	}

	require.Eventually(t, func() bool {
		return decisions.count("prop-1") == 10 && timeline.count("prop-1") == 10
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}, decisions.values("prop-1"), "per-key order is kept")
	assert.Zero(t, b.Lag("bookings.requests", "owner-decision"))
}

func TestMembersOfAGroupShareMessages(t *testing.T) {
	b := New(Options{Partitions: 8})
	c := newCollector()
	subscribe(t, b, "bookings.status", "traveler-notifications", c.handler("a"))
	subscribe(t, b, "bookings.status", "traveler-notifications", c.handler("b"))

	for i := 0; i < 40; i++ {
		key := fmt.Sprintf("prop-%d", i%8)
		require.NoError(t, b.Publish(context.Background(), "bookings.status", key, []byte("x"), nil))
	}

	require.Eventually(t, func() bool {
		return c.count("member:a")+c.count("member:b") == 40
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, b.Lag("bookings.status", "traveler-notifications"))
}

func TestFailedMessageIsRedelivered(t *testing.T) {
	b := New(Options{Partitions: 1, RedeliveryDelay: time.Millisecond})
	var attempts atomic.Int32
	delivered := make(chan pipeline.Message, 1)
	subscribe(t, b, "bookings.requests", "owner-decision", pipeline.HandlerFunc(func(_ context.Context, msg pipeline.Message) error {
		if attempts.Add(1) < 3 {
			return errors.New("store down")
		}
		delivered <- msg
		return nil
	}))

	require.NoError(t, b.Publish(context.Background(), "bookings.requests", "prop-1", []byte("x"), map[string]string{pipeline.HeaderEventID: "ev-1"}))

	select {
	case msg := <-delivered:
		assert.Equal(t, "ev-1", msg.ID)
	case <-time.After(time.Second):
		t.Fatal("message was not redelivered")
	}
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClosedBrokerRefusesWork(t *testing.T) {
	b := New(Options{})
	require.NoError(t, b.Close())
	require.ErrorIs(t, b.Publish(context.Background(), "t", "k", nil, nil), ErrClosed)
	require.ErrorIs(t, b.Subscribe(context.Background(), "t", "g", pipeline.HandlerFunc(func(context.Context, pipeline.Message) error { return nil })), ErrClosed)
}
