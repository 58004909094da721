package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mansoorceksport/smmpanel/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const orderCounterID = "orders"

// MongoOrderRepository implements domain.OrderRepository
type MongoOrderRepository struct {
	collection *mongo.Collection
	counters   *mongo.Collection
}

func NewMongoOrderRepository(db *mongo.Database) *MongoOrderRepository {
	coll := db.Collection("orders")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "order_number", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "payment_status", Value: 1}}},
	})

	return &MongoOrderRepository{
		collection: coll,
		counters:   db.Collection("counters"),
	}
}

func (r *MongoOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	if order.ID == "" {
		order.ID = primitive.NewObjectID().Hex()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	order.UpdatedAt = order.CreatedAt

	if _, err := r.collection.InsertOne(ctx, order); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.WrapError(domain.KindConflict, "order number already used", err)
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *MongoOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var order domain.Order
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

// List returns orders newest first
func (r *MongoOrderRepository) List(ctx context.Context, filter domain.OrderFilter, page domain.Page) ([]*domain.Order, int64, error) {
	query := bson.M{}
	if filter.UserID != "" {
		query["user_id"] = filter.UserID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(page.Skip()).
		SetLimit(page.Limit)

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []*domain.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, total, nil
}

// UpdateStatus writes the status fields guarded by the previously read
// status and refund amount
func (r *MongoOrderRepository) UpdateStatus(ctx context.Context, order *domain.Order, guard domain.OrderGuard) error {
	filter := bson.M{
		"_id":           order.ID,
		"status":        guard.Status,
		"refund_amount": guard.RefundAmount,
	}
	update := bson.M{"$set": bson.M{
		"status":         order.Status,
		"payment_status": order.PaymentStatus,
		"start_count":    order.StartCount,
		"delivered":      order.Delivered,
		"remains":        order.Remains,
		"notes":          order.Notes,
		"refund_amount":  order.RefundAmount,
		"completed_at":   order.CompletedAt,
		"updated_at":     order.UpdatedAt,
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.NewError(domain.KindConflict, "order was modified concurrently")
	}
	return nil
}

// SetPaymentOutcome records a gateway outcome unless the order is already paid
func (r *MongoOrderRepository) SetPaymentOutcome(ctx context.Context, orderID, paymentStatus, status string) error {
	filter := bson.M{
		"_id":            orderID,
		"payment_status": bson.M{"$ne": domain.PaymentStatusPaid},
	}
	_, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"payment_status": paymentStatus,
		"status":         status,
		"updated_at":     time.Now(),
	}})
	if err != nil {
		return fmt.Errorf("failed to set order payment outcome: %w", err)
	}
	return nil
}

// NextSequence atomically increments the order counter document
func (r *MongoOrderRepository) NextSequence(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": orderCounterID},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to increment order sequence: %w", err)
	}
	return counter.Seq, nil
}

// StatusBreakdown counts a user's orders per status, optionally since a date
func (r *MongoOrderRepository) StatusBreakdown(ctx context.Context, userID string, since *time.Time) ([]domain.StatusBreakdown, error) {
	match := bson.M{"user_id": userID}
	if since != nil {
		match["created_at"] = bson.M{"$gte": *since}
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":    "$status",
			"count":  bson.M{"$sum": 1},
			"amount": bson.M{"$sum": "$total_amount"},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate order stats: %w", err)
	}
	defer cursor.Close(ctx)

	breakdown := []domain.StatusBreakdown{}
	if err := cursor.All(ctx, &breakdown); err != nil {
		return nil, fmt.Errorf("failed to decode order stats: %w", err)
	}
	return breakdown, nil
}
