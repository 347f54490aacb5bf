// Package outbox collects the domain events raised while a command runs so
// they leave the process only after the command's transaction has committed.
package outbox

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"bookingengine/internal/domain/shared/events"
)

type EventRecord struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Key        string
	Headers    map[string]string
}

type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
}

// Collector is an in-memory outbox scoped to a single command execution.
type Collector struct {
	mu      sync.Mutex
	records []EventRecord
}

func NewCollector() *Collector { return &Collector{} }

func (c *Collector) Add(_ context.Context, rec EventRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return nil
}

// Drain returns the collected records and empties the collector.
func (c *Collector) Drain() []EventRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.records
	c.records = nil
	return out
}

// MoveTo hands every collected record to dst.
func (c *Collector) MoveTo(ctx context.Context, dst Outbox) error {
	for _, rec := range c.Drain() {
		if err := dst.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

type ctxKey struct{}

func ContextWithOutbox(ctx context.Context, box Outbox) context.Context {
	return context.WithValue(ctx, ctxKey{}, box)
}

func FromContext(ctx context.Context) (Outbox, bool) {
	box, ok := ctx.Value(ctxKey{}).(Outbox)
	return box, ok && box != nil
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

type JSONEventEncoder struct {
	IDGenerator func() string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, err
	}
	idGen := e.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	return EventRecord{
		ID:         idGen(),
		Name:       ev.EventName(),
		Payload:    payload,
		OccurredAt: ev.OccurredAt(),
		Aggregate:  ev.AggregateID(),
		Key:        events.KeyOf(ev),
		Headers:    map[string]string{},
	}, nil
}

// RecordDomainEvents encodes evs into the outbox carried by ctx.
// Without one (plain reads, tests calling handlers directly) events are discarded.
func RecordDomainEvents(ctx context.Context, encoder EventEncoder, evs []events.DomainEvent) error {
	box, ok := FromContext(ctx)
	if !ok || len(evs) == 0 {
		return nil
	}
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	for _, ev := range evs {
		rec, err := encoder.Encode(ev)
		if err != nil {
			return err
		}
		if err := box.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
