package events

import "time"

type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// Keyed events choose the ordering key used when they leave the process.
type Keyed interface {
	PartitionKey() string
}

// EventRecorder buffers events raised by an aggregate until the caller drains them.
type EventRecorder struct {
	pending []DomainEvent
}

func (r *EventRecorder) Record(event DomainEvent) {
	if event == nil {
		return
	}
	r.pending = append(r.pending, event)
}

func (r *EventRecorder) PendingEvents() []DomainEvent {
	out := make([]DomainEvent, len(r.pending))
	copy(out, r.pending)
	return out
}

func (r *EventRecorder) ClearEvents() {
	r.pending = nil
}

// PullEvents returns pending events and clears the buffer.
func (r *EventRecorder) PullEvents() []DomainEvent {
	out := r.PendingEvents()
	r.ClearEvents()
	return out
}

// KeyOf returns the partition key of ev, falling back to its aggregate id.
func KeyOf(ev DomainEvent) string {
	if k, ok := ev.(Keyed); ok {
		if key := k.PartitionKey(); key != "" {
			return key
		}
	}
	return ev.AggregateID()
}
