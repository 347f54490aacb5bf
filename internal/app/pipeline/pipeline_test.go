package pipeline

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

	"bookingengine/internal/app/outbox"
	"bookingengine/internal/domain/booking"
	"bookingengine/internal/domain/shared/fault"
)

type parked struct {
	mu   sync.Mutex
	recs []DeadLetterRecord
}

func (p *parked) Park(_ context.Context, rec DeadLetterRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recs = append(p.recs, rec)
	return nil
}

func (p *parked) all() []DeadLetterRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]DeadLetterRecord(nil), p.recs...)
}

type seenSet struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (s *seenSet) Processed(_ context.Context, group, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[group+"/"+id], nil
}

func (s *seenSet) MarkProcessed(_ context.Context, group, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	s.seen[group+"/"+id] = true
	return nil
}

func TestWithRetryParksAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	dl := &parked{}
	h := WithRetry(HandlerFunc(func(context.Context, Message) error {
		calls.Add(1)
		return fault.Transient(errors.New("timeline store down"))
	}), "booking-timeline", RetryPolicy{Backoff: []time.Duration{time.Millisecond}, MaxAttempts: 3}, dl, nil)

	err := h.Handle(context.Background(), Message{ID: "ev-1", Topic: TopicStatus})
	require.NoError(t, err, "parked messages are acknowledged")
	assert.Equal(t, int32(3), calls.Load())

	recs := dl.all()
	require.Len(t, recs, 1)
	assert.Equal(t, "booking-timeline", recs[0].Group)
	assert.Equal(t, 3, recs[0].Attempts)
	assert.Equal(t, "ev-1", recs[0].Message.ID)
}

func TestWithRetryDoesNotRetryPermanentErrors(t *testing.T) {
	var calls atomic.Int32
	dl := &parked{}
	h := WithRetry(HandlerFunc(func(context.Context, Message) error {
		calls.Add(1)
		return fmt.Errorf("%w: bad payload", fault.ErrInvalidInput)
	}), "g", RetryPolicy{Backoff: []time.Duration{time.Millisecond}, MaxAttempts: 4}, dl, nil)

	require.NoError(t, h.Handle(context.Background(), Message{ID: "ev-2"}))
	assert.Equal(t, int32(1), calls.Load())
	assert.Len(t, dl.all(), 1)
}

func TestWithRetrySucceedsAfterTransientFailure(t *testing.T) {
	var calls atomic.Int32
	dl := &parked{}
	h := WithRetry(HandlerFunc(func(context.Context, Message) error {
		if calls.Add(1) == 1 {
			return fault.Transient(errors.New("blip"))
		}
		return nil
	}), "g", RetryPolicy{Backoff: []time.Duration{time.Millisecond}}, dl, nil)

	require.NoError(t, h.Handle(context.Background(), Message{ID: "ev-3"}))
	assert.Equal(t, int32(2), calls.Load())
	assert.Empty(t, dl.all())
}

func TestWithInboxSkipsDuplicates(t *testing.T) {
	var calls atomic.Int32
	inbox := &seenSet{}
	h := WithInbox(HandlerFunc(func(context.Context, Message) error {
		calls.Add(1)
		return nil
	}), "traveler-notifications", inbox, nil)

	msg := Message{ID: "ev-1"}
	require.NoError(t, h.Handle(context.Background(), msg))
	require.NoError(t, h.Handle(context.Background(), msg))
	assert.Equal(t, int32(1), calls.Load())

	other := WithInbox(HandlerFunc(func(context.Context, Message) error {
		calls.Add(1)
		return nil
	}), "booking-timeline", inbox, nil)
	require.NoError(t, other.Handle(context.Background(), msg))
	assert.Equal(t, int32(2), calls.Load(), "groups deduplicate independently")
}

func TestWithInboxRecordsOnlySuccess(t *testing.T) {
	inbox := &seenSet{}
	fail := true
	h := WithInbox(HandlerFunc(func(context.Context, Message) error {
		if fail {
			return errors.New("boom")
		}
		return nil
	}), "g", inbox, nil)

	require.Error(t, h.Handle(context.Background(), Message{ID: "ev-1"}))
	seen, _ := inbox.Processed(context.Background(), "g", "ev-1")
	assert.False(t, seen)

	fail = false
	require.NoError(t, h.Handle(context.Background(), Message{ID: "ev-1"}))
	seen, _ = inbox.Processed(context.Background(), "g", "ev-1")
	assert.True(t, seen)
}

type blockingProducer struct {
	release chan struct{}
	mu      sync.Mutex
	sent    []Message
}

func (p *blockingProducer) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	select {
	case <-p.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, Message{Topic: topic, Key: key, Payload: payload, Headers: headers})
	return nil
}

func (p *blockingProducer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func TestAsyncPublisherNeverBlocks(t *testing.T) {
	producer := &blockingProducer{release: make(chan struct{})}
	pub := NewAsyncPublisher(producer, AsyncOptions{Buffer: 2})

	start := time.Now()
	for i := 0; i < 5; i++ {
		pub.Publish(Message{ID: fmt.Sprint(i), Topic: TopicRequests})
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, int64(3), pub.Dropped())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pub.Run(ctx) }()
	close(producer.release)

	require.Eventually(t, func() bool { return producer.count() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, int64(2), pub.Delivered())
}

type failingProducer struct{ calls atomic.Int32 }

func (p *failingProducer) Publish(context.Context, string, string, []byte, map[string]string) error {
	p.calls.Add(1)
	return fault.Transient(errors.New("broker unreachable"))
}

func TestAsyncPublisherGivesUpAfterBackoff(t *testing.T) {
	producer := &failingProducer{}
	pub := NewAsyncPublisher(producer, AsyncOptions{Backoff: []time.Duration{time.Millisecond, time.Millisecond}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = pub.Run(ctx) }()

	pub.Publish(Message{ID: "ev-1", Topic: TopicStatus})
	require.Eventually(t, func() bool { return pub.Failed() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), producer.calls.Load())
}

func TestEncoderRoutesByEvent(t *testing.T) {
	enc := Encoder{Topics: Topics{Prefix: "staging"}}
	ev := booking.Event{Name: booking.EventAccepted, BookingID: "bk-1", PropertyID: "prop-1", Status: booking.StatusAccepted}
	rec, err := outbox.JSONEventEncoder{IDGenerator: func() string { return "ev-9" }}.Encode(ev)
	require.NoError(t, err)

	msg, err := enc.Encode(rec)
	require.NoError(t, err)
	assert.Equal(t, "staging.bookings.status", msg.Topic)
	assert.Equal(t, "prop-1", msg.Key)
	assert.Equal(t, "ev-9", msg.Header(HeaderEventID))
	assert.Equal(t, booking.EventAccepted, msg.Header(HeaderEventType))

	var out booking.Event
	env, err := Decode(msg, &out)
	require.NoError(t, err)
	assert.Equal(t, "ev-9", env.ID)
	assert.Equal(t, "bk-1", out.BookingID)

	_, err = Decode(Message{Payload: []byte("not json")}, &out)
	assert.Equal(t, fault.KindInvalidInput, fault.KindOf(err))
}

type chanSubscriber struct {
	msgs chan Message
}

func (s chanSubscriber) Subscribe(ctx context.Context, _, _ string, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-s.msgs:
			for h.Handle(ctx, msg) != nil {
				if ctx.Err() != nil {
					return nil
				}
			}
		}
	}
}

func TestRunnerWrapsHandlers(t *testing.T) {
	sub := chanSubscriber{msgs: make(chan Message, 4)}
	dl := &parked{}
	var handled atomic.Int32
	r := &Runner{Subscriber: sub, Inbox: &seenSet{}, DeadLetter: dl, Policy: RetryPolicy{Backoff: []time.Duration{time.Millisecond}, MaxAttempts: 2}}
	r.Register(TopicStatus, "booking-timeline", 1, HandlerFunc(func(_ context.Context, msg Message) error {
		if msg.ID == "poison" {
			return errors.New("cannot handle")
		}
		handled.Add(1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	sub.msgs <- Message{ID: "ev-1"}
	sub.msgs <- Message{ID: "ev-1"}
	sub.msgs <- Message{ID: "poison"}
	sub.msgs <- Message{ID: "ev-2"}

	require.Eventually(t, func() bool { return handled.Load() == 2 && len(dl.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, r.Healthy())
	cancel()
	require.NoError(t, <-done)
	assert.False(t, r.Healthy())
}
