package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bookingengine/internal/app/pipeline"
)

// DeadLetterStore parks messages that exhausted their retries. Parking the same
// message twice for a group keeps the latest attempt.
type DeadLetterStore struct {
	col *mongo.Collection
}

func NewDeadLetterStore(ctx context.Context, db *mongo.Database) (*DeadLetterStore, error) {
	col := db.Collection("pipeline_dead_letters")
	_, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "parked_at", Value: -1}}})
	if err != nil {
		return nil, err
	}
	return &DeadLetterStore{col: col}, nil
}

type deadLetterDocument struct {
	ID        string            `bson:"_id"`
	MessageID string            `bson:"message_id"`
	Topic     string            `bson:"topic"`
	Key       string            `bson:"key"`
	Group     string            `bson:"group"`
	Payload   []byte            `bson:"payload"`
	Headers   map[string]string `bson:"headers"`
	Attempts  int               `bson:"attempts"`
	Error     string            `bson:"error"`
	ParkedAt  time.Time         `bson:"parked_at"`
}

func (s *DeadLetterStore) Park(ctx context.Context, rec pipeline.DeadLetterRecord) error {
	doc := deadLetterDocument{
		ID:        rec.Group + "/" + rec.Message.ID,
		MessageID: rec.Message.ID,
		Topic:     rec.Message.Topic,
		Key:       rec.Message.Key,
		Group:     rec.Group,
		Payload:   rec.Message.Payload,
		Headers:   rec.Message.Headers,
		Attempts:  rec.Attempts,
		Error:     rec.Error,
		ParkedAt:  rec.ParkedAt,
	}
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

// Recent returns up to limit parked messages, newest first.
func (s *DeadLetterStore) Recent(ctx context.Context, limit int64) ([]pipeline.DeadLetterRecord, error) {
	cur, err := s.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "parked_at", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []pipeline.DeadLetterRecord
	for cur.Next(ctx) {
		var doc deadLetterDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, pipeline.DeadLetterRecord{
			Message:  pipeline.Message{ID: doc.MessageID, Topic: doc.Topic, Key: doc.Key, Payload: doc.Payload, Headers: doc.Headers},
			Group:    doc.Group,
			Attempts: doc.Attempts,
			Error:    doc.Error,
			ParkedAt: doc.ParkedAt,
		})
	}
	return out, cur.Err()
}

var _ pipeline.DeadLetter = (*DeadLetterStore)(nil)
