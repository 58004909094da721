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

// MongoPaymentRepository implements domain.PaymentRepository
type MongoPaymentRepository struct {
	collection *mongo.Collection
}

func NewMongoPaymentRepository(db *mongo.Database) *MongoPaymentRepository {
	coll := db.Collection("payments")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "payment_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "checkout_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
	})

	return &MongoPaymentRepository{collection: coll}
}

func (r *MongoPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	if payment.ID == "" {
		payment.ID = primitive.NewObjectID().Hex()
	}
	now := time.Now()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, payment); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.WrapError(domain.KindConflict, "payment already exists", err)
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *MongoPaymentRepository) GetByPaymentID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	var payment domain.Payment
	err := r.collection.FindOne(ctx, bson.M{"payment_id": paymentID}).Decode(&payment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

// ListByUser returns a user's payments newest first
func (r *MongoPaymentRepository) ListByUser(ctx context.Context, userID string, page domain.Page) ([]*domain.Payment, int64, error) {
	query := bson.M{"user_id": userID}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(page.Skip()).
		SetLimit(page.Limit)

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}
	defer cursor.Close(ctx)

	var payments []*domain.Payment
	if err := cursor.All(ctx, &payments); err != nil {
		return nil, 0, fmt.Errorf("failed to decode payments: %w", err)
	}
	return payments, total, nil
}

func (r *MongoPaymentRepository) AttachCheckout(ctx context.Context, paymentID, checkoutID, checkoutURL string, response map[string]any) error {
	// The webhook may settle the payment before the checkout is recorded
	filter := bson.M{"payment_id": paymentID}
	update := bson.M{"$set": bson.M{
		"checkout_id":      checkoutID,
		"checkout_url":     checkoutURL,
		"gateway_response": response,
		"updated_at":       time.Now(),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to attach checkout: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Transition applies t only while the payment is still pending, which makes
// concurrent or replayed settlements of the same payment no-ops.
func (r *MongoPaymentRepository) Transition(ctx context.Context, paymentID string, t domain.PaymentTransition) (*domain.Payment, bool, error) {
	set := bson.M{
		"status":     t.Status,
		"updated_at": t.At,
	}
	if t.FailureReason != "" {
		set["failure_reason"] = t.FailureReason
	}
	if t.WebhookData != nil {
		set["webhook_data"] = t.WebhookData
	}
	if t.Status == domain.PaymentStatusPaid {
		set["paid_at"] = t.At
	}

	filter := bson.M{"payment_id": paymentID, "status": domain.PaymentStatusPending}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var payment domain.Payment
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&payment)
	if err == nil {
		return &payment, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, fmt.Errorf("failed to transition payment: %w", err)
	}

	current, err := r.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

// ListStalePending returns gateway payments with a checkout that are still pending
func (r *MongoPaymentRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int64) ([]*domain.Payment, error) {
	query := bson.M{
		"status":      domain.PaymentStatusPending,
		"method":      bson.M{"$ne": domain.PaymentMethodBalance},
		"checkout_id": bson.M{"$nin": bson.A{nil, ""}},
		"created_at":  bson.M{"$lt": cutoff},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(limit)

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale payments: %w", err)
	}
	defer cursor.Close(ctx)

	var payments []*domain.Payment
	if err := cursor.All(ctx, &payments); err != nil {
		return nil, fmt.Errorf("failed to decode stale payments: %w", err)
	}
	return payments, nil
}
