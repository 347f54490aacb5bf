package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

var ErrPublisherNotConfigured = errors.New("pipeline: publisher missing producer")

type AsyncOptions struct {
	Buffer      int
	Backoff     []time.Duration
	SendTimeout time.Duration
	Logger      *slog.Logger
}

// AsyncPublisher decouples the request path from the broker. Publish only
// enqueues; Run delivers in the background with a short bounded retry.
type AsyncPublisher struct {
	producer    Producer
	queue       chan Message
	backoff     []time.Duration
	sendTimeout time.Duration
	logger      *slog.Logger

	dropped   atomic.Int64
	failed    atomic.Int64
	delivered atomic.Int64
}

func NewAsyncPublisher(producer Producer, opts AsyncOptions) *AsyncPublisher {
	if opts.Buffer <= 0 {
		opts.Buffer = 1024
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 5 * time.Second
	}
	if opts.Backoff == nil {
		opts.Backoff = []time.Duration{100 * time.Millisecond, 500 * time.Millisecond}
	}
	return &AsyncPublisher{
		producer:    producer,
		queue:       make(chan Message, opts.Buffer),
		backoff:     opts.Backoff,
		sendTimeout: opts.SendTimeout,
		logger:      opts.Logger,
	}
}

// Publish enqueues msg. A full queue drops the message with a warning.
func (p *AsyncPublisher) Publish(msg Message) {
	select {
	case p.queue <- msg:
	default:
		p.dropped.Add(1)
		p.log().Warn("event publish dropped, queue full", "topic", msg.Topic, "event_id", msg.ID, "key", msg.Key)
	}
}

// Run delivers queued messages until ctx is done, then flushes what is left
// within one send timeout.
func (p *AsyncPublisher) Run(ctx context.Context) error {
	if p.producer == nil {
		return ErrPublisherNotConfigured
	}
	for {
		select {
		case <-ctx.Done():
			p.flush()
			return nil
		case msg := <-p.queue:
			p.deliver(ctx, msg)
		}
	}
}

func (p *AsyncPublisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), p.sendTimeout)
	defer cancel()
	for {
		select {
		case msg := <-p.queue:
			p.deliver(ctx, msg)
		default:
			return
		}
	}
}

func (p *AsyncPublisher) deliver(ctx context.Context, msg Message) {
	var err error
	for attempt := 0; attempt <= len(p.backoff); attempt++ {
		if attempt > 0 {
			if sleepErr := sleep(ctx, p.backoff[attempt-1]); sleepErr != nil {
				break
			}
		}
		sendCtx, cancel := context.WithTimeout(ctx, p.sendTimeout)
		err = p.producer.Publish(sendCtx, msg.Topic, msg.Key, msg.Payload, msg.Headers)
		cancel()
		if err == nil {
			p.delivered.Add(1)
			return
		}
		p.log().Warn("event publish attempt failed", "topic", msg.Topic, "event_id", msg.ID, "attempt", attempt+1, "error", err)
	}
	p.failed.Add(1)
	p.log().Error("event publish abandoned", "topic", msg.Topic, "event_id", msg.ID, "key", msg.Key, "error", err)
}

func (p *AsyncPublisher) Dropped() int64   { return p.dropped.Load() }
func (p *AsyncPublisher) Failed() int64    { return p.failed.Load() }
func (p *AsyncPublisher) Delivered() int64 { return p.delivered.Load() }

func (p *AsyncPublisher) log() *slog.Logger {
	if p.logger != nil {
		return p.logger
	}
	return slog.Default()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
