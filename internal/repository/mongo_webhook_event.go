package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mansoorceksport/smmpanel/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// webhookEventRetention bounds how long replay markers are kept
const webhookEventRetention = 90 * 24 * time.Hour

// MongoWebhookEventRepository implements domain.WebhookEventRepository.
// The gateway event id is the document _id, so a replay fails the insert.
type MongoWebhookEventRepository struct {
	collection *mongo.Collection
}

func NewMongoWebhookEventRepository(db *mongo.Database) *MongoWebhookEventRepository {
	coll := db.Collection("webhook_events")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "received_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(webhookEventRetention.Seconds())),
	})

	return &MongoWebhookEventRepository{collection: coll}
}

func (r *MongoWebhookEventRepository) Record(ctx context.Context, event *domain.WebhookEvent) error {
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now()
	}
	if _, err := r.collection.InsertOne(ctx, event); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateEvent
		}
		return fmt.Errorf("failed to record webhook event: %w", err)
	}
	return nil
}
