// Package pipeline carries booking events between the request path and the
// asynchronous workers: topics, consumer groups, retries and dead letters.
package pipeline

import (
	"context"
	"strings"

	"bookingengine/internal/domain/booking"
)

const (
	TopicRequests      = "bookings.requests"
	TopicStatus        = "bookings.status"
	TopicNotifications = "bookings.notifications"

	HeaderEventID     = "event-id"
	HeaderEventType   = "event-type"
	HeaderContentType = "content-type"
)

// Message is one record on a topic. Key selects the partition, so every message
// with the same key is delivered in publish order within a group.
type Message struct {
	ID      string
	Topic   string
	Key     string
	Payload []byte
	Headers map[string]string
}

// Header returns a header value, tolerating a nil map.
func (m Message) Header(name string) string {
	if m.Headers == nil {
		return ""
	}
	return m.Headers[name]
}

type Handler interface {
	Handle(ctx context.Context, msg Message) error
}

type HandlerFunc func(ctx context.Context, msg Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Producer writes a message to a broker and waits for the broker to accept it.
type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Subscriber joins group on topic and feeds messages to h until ctx is done.
// A message is acknowledged only when h returns nil; otherwise it is redelivered.
// Several Subscribe calls with the same group share the topic's partitions.
type Subscriber interface {
	Subscribe(ctx context.Context, topic, group string, h Handler) error
}

// Publisher hands a message off without waiting. It never fails the caller.
type Publisher interface {
	Publish(msg Message)
}

// Topics applies an optional environment prefix to topic names.
type Topics struct {
	Prefix string
}

func (t Topics) name(base string) string {
	if t.Prefix == "" {
		return base
	}
	return strings.TrimSuffix(t.Prefix, ".") + "." + base
}

func (t Topics) Requests() string      { return t.name(TopicRequests) }
func (t Topics) Status() string        { return t.name(TopicStatus) }
func (t Topics) Notifications() string { return t.name(TopicNotifications) }

// ForEvent routes new requests to the decision side and every status change to the status topic.
func (t Topics) ForEvent(eventName string) string {
	if eventName == booking.EventRequested {
		return t.Requests()
	}
	return t.Status()
}
