package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bookingengine/internal/app/pipeline"
)

// InboxStore records which messages each consumer group has handled.
type InboxStore struct {
	col *mongo.Collection
}

func NewInboxStore(ctx context.Context, db *mongo.Database) (*InboxStore, error) {
	col := db.Collection("pipeline_inbox")
	_, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "event_id", Value: 1}, {Key: "consumer", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, err
	}
	return &InboxStore{col: col}, nil
}

func (s *InboxStore) Processed(ctx context.Context, group, messageID string) (bool, error) {
	n, err := s.col.CountDocuments(ctx, bson.M{"event_id": messageID, "consumer": group}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *InboxStore) MarkProcessed(ctx context.Context, group, messageID string) error {
	doc := bson.M{"event_id": messageID, "consumer": group, "processed_at": time.Now().UTC()}
	_, err := s.col.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

var _ pipeline.Inbox = (*InboxStore)(nil)
