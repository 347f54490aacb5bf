package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"bookingengine/internal/app/outbox"
	"bookingengine/internal/domain/shared/fault"
)

const envelopeContentType = "application/cloudevents+json"

// Envelope is the CloudEvents-style wrapper every event travels in.
type Envelope struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Source          string          `json:"source"`
	Time            time.Time       `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	Data            json.RawMessage `json:"data"`
}

// Encoder turns collected outbox records into routable messages.
type Encoder struct {
	Topics Topics
	Source string
}

func (e Encoder) source() string {
	if e.Source != "" {
		return e.Source
	}
	return "app://bookingengine"
}

func (e Encoder) Encode(rec outbox.EventRecord) (Message, error) {
	env := Envelope{
		SpecVersion:     "1.0",
		ID:              rec.ID,
		Type:            rec.Name + ".v1",
		Source:          e.source(),
		Time:            rec.OccurredAt,
		DataContentType: "application/json",
		Data:            rec.Payload,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return Message{}, err
	}
	headers := map[string]string{
		HeaderContentType: envelopeContentType,
		HeaderEventID:     rec.ID,
		HeaderEventType:   rec.Name,
	}
	for k, v := range rec.Headers {
		headers[k] = v
	}
	key := rec.Key
	if key == "" {
		key = rec.Aggregate
	}
	return Message{ID: rec.ID, Topic: e.Topics.ForEvent(rec.Name), Key: key, Payload: payload, Headers: headers}, nil
}

// Decode unwraps msg and unmarshals the event data into out. A payload that
// cannot be decoded will never succeed, so the error is permanent.
func Decode(msg Message, out any) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: malformed envelope: %v", fault.ErrInvalidInput, err)
	}
	if len(env.Data) == 0 {
		return Envelope{}, fmt.Errorf("%w: envelope %s has no data", fault.ErrInvalidInput, env.ID)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return Envelope{}, fmt.Errorf("%w: malformed event data: %v", fault.ErrInvalidInput, err)
	}
	return env, nil
}
