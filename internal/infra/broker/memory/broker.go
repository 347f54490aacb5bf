// Package memory is an in-process broker with keyed partitions and consumer
// groups. Each group keeps its own offsets, so every group sees every message,
// and at most one member of a group works a partition at a time.
package memory

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"bookingengine/internal/app/pipeline"
)

var ErrClosed = errors.New("memory broker: closed")

type Options struct {
	Partitions int
	// RedeliveryDelay is the pause before a failed message is offered again.
	RedeliveryDelay time.Duration
	Logger          *slog.Logger
}

type Broker struct {
	partitions int
	redelivery time.Duration
	logger     *slog.Logger

	mu     sync.Mutex
	topics map[string]*topic
	signal chan struct{}
	closed bool
}

type topic struct {
	parts  [][]pipeline.Message
	groups map[string]*group
}

type group struct {
	offsets []int
	busy    []bool
}

func New(opts Options) *Broker {
	if opts.Partitions <= 0 {
		opts.Partitions = 8
	}
	if opts.RedeliveryDelay <= 0 {
		opts.RedeliveryDelay = 10 * time.Millisecond
	}
	return &Broker{
		partitions: opts.Partitions,
		redelivery: opts.RedeliveryDelay,
		logger:     opts.Logger,
		topics:     make(map[string]*topic),
		signal:     make(chan struct{}),
	}
}

// Publish appends the message to the partition selected by key.
func (b *Broker) Publish(_ context.Context, topicName, key string, payload []byte, headers map[string]string) error {
	msg := pipeline.Message{Topic: topicName, Key: key, Payload: append([]byte(nil), payload...), Headers: map[string]string{}}
	for k, v := range headers {
		msg.Headers[k] = v
	}
	msg.ID = msg.Headers[pipeline.HeaderEventID]
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	t := b.topicLocked(topicName)
	p := b.partitionFor(key)
	t.parts[p] = append(t.parts[p], msg)
	b.broadcastLocked()
	return nil
}

// Subscribe consumes topic as a member of group until ctx is done.
// A message whose handler fails stays at the head of its partition and is offered again.
func (b *Broker) Subscribe(ctx context.Context, topicName, groupName string, h pipeline.Handler) error {
	for {
		msg, part, wait, err := b.claim(topicName, groupName)
		if err != nil {
			return err
		}
		if wait != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-wait:
			}
			continue
		}

		herr := h.Handle(ctx, msg)
		if herr != nil && b.logger != nil {
			b.logger.Debug("message nacked", "topic", topicName, "group", groupName, "event_id", msg.ID, "error", herr)
		}
		if herr != nil && ctx.Err() == nil {
			timer := time.NewTimer(b.redelivery)
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
			timer.Stop()
		}
		b.settle(topicName, groupName, part, herr == nil)
		if ctx.Err() != nil {
			return nil
		}
	}
}

// claim returns the head message of a free partition with pending messages,
// or a channel that is closed when something may have changed.
func (b *Broker) claim(topicName, groupName string) (pipeline.Message, int, <-chan struct{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return pipeline.Message{}, 0, nil, ErrClosed
	}
	t := b.topicLocked(topicName)
	g := t.groupLocked(groupName, b.partitions)
	for p := range t.parts {
		if g.busy[p] || g.offsets[p] >= len(t.parts[p]) {
			continue
		}
		g.busy[p] = true
		return t.parts[p][g.offsets[p]], p, nil, nil
	}
	return pipeline.Message{}, 0, b.signal, nil
}

func (b *Broker) settle(topicName, groupName string, part int, ack bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g := b.topics[topicName].groups[groupName]
	if ack {
		g.offsets[part]++
	}
	g.busy[part] = false
	b.broadcastLocked()
}

// Messages returns every message published to topic, partition by partition.
func (b *Broker) Messages(topicName string) []pipeline.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[topicName]
	if !ok {
		return nil
	}
	var out []pipeline.Message
	for _, part := range t.parts {
		out = append(out, part...)
	}
	return out
}

// Lag reports how many messages group has not yet acknowledged on topic.
func (b *Broker) Lag(topicName, groupName string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[topicName]
	if !ok {
		return 0
	}
	g := t.groupLocked(groupName, b.partitions)
	lag := 0
	for p := range t.parts {
		lag += len(t.parts[p]) - g.offsets[p]
	}
	return lag
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		b.broadcastLocked()
	}
	return nil
}

func (b *Broker) partitionFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(b.partitions))
}

func (b *Broker) broadcastLocked() {
	close(b.signal)
	b.signal = make(chan struct{})
}

func (b *Broker) topicLocked(name string) *topic {
	t, ok := b.topics[name]
	if !ok {
		t = &topic{parts: make([][]pipeline.Message, b.partitions), groups: make(map[string]*group)}
		b.topics[name] = t
	}
	return t
}

func (t *topic) groupLocked(name string, partitions int) *group {
	g, ok := t.groups[name]
	if !ok {
		g = &group{offsets: make([]int, partitions), busy: make([]bool, partitions)}
		t.groups[name] = g
	}
	return g
}

var (
	_ pipeline.Producer   = (*Broker)(nil)
	_ pipeline.Subscriber = (*Broker)(nil)
)
