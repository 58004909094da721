package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mansoorceksport/smmpanel/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoStatsRepository implements domain.StatsRepository over the users,
// orders and payments collections.
type MongoStatsRepository struct {
	users    *mongo.Collection
	orders   *mongo.Collection
	payments *mongo.Collection
}

func NewMongoStatsRepository(db *mongo.Database) *MongoStatsRepository {
	return &MongoStatsRepository{
		users:    db.Collection("users"),
		orders:   db.Collection("orders"),
		payments: db.Collection("payments"),
	}
}

// paidTopUps matches settled gateway payments; balance payments are spending, not revenue
func paidTopUps(since *time.Time) bson.M {
	match := bson.M{
		"status": domain.PaymentStatusPaid,
		"method": bson.M{"$ne": domain.PaymentMethodBalance},
	}
	if since != nil {
		match["created_at"] = bson.M{"$gte": *since}
	}
	return match
}

// billableOrders excludes orders whose money went back to the buyer
func billableOrders(since time.Time) bson.M {
	return bson.M{
		"created_at":     bson.M{"$gte": since},
		"payment_status": domain.PaymentStatusPaid,
	}
}

func (r *MongoStatsRepository) CountUsers(ctx context.Context, activeOnly bool, since *time.Time) (int64, error) {
	query := bson.M{}
	if activeOnly {
		query["is_active"] = true
	}
	if since != nil {
		query["created_at"] = bson.M{"$gte": *since}
	}
	count, err := r.users.CountDocuments(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func (r *MongoStatsRepository) CountOrders(ctx context.Context, status string) (int64, error) {
	query := bson.M{}
	if status != "" {
		query["status"] = status
	}
	count, err := r.orders.CountDocuments(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

func (r *MongoStatsRepository) PaidRevenue(ctx context.Context) (domain.Money, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: paidTopUps(nil)}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$amount"}}}},
	}

	var result []struct {
		Total domain.Money `bson:"total"`
	}
	if err := r.aggregate(ctx, r.payments, pipeline, &result); err != nil {
		return 0, err
	}
	if len(result) == 0 {
		return 0, nil
	}
	return result[0].Total, nil
}

func (r *MongoStatsRepository) OrdersByStatus(ctx context.Context) ([]domain.StatusBreakdown, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":    "$status",
			"count":  bson.M{"$sum": 1},
			"amount": bson.M{"$sum": "$total_amount"},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	result := []domain.StatusBreakdown{}
	if err := r.aggregate(ctx, r.orders, pipeline, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *MongoStatsRepository) DailyRevenue(ctx context.Context, since time.Time) ([]domain.DailyRevenue, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: paidTopUps(&since)}},
		{{Key: "$group", Value: bson.M{
			"_id":     bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$created_at"}},
			"revenue": bson.M{"$sum": "$amount"},
			"count":   bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	result := []domain.DailyRevenue{}
	if err := r.aggregate(ctx, r.payments, pipeline, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *MongoStatsRepository) MonthlyRevenue(ctx context.Context, since time.Time) ([]domain.MonthlyRevenue, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: paidTopUps(&since)}},
		{{Key: "$group", Value: bson.M{
			"_id":     bson.M{"$dateToString": bson.M{"format": "%Y-%m", "date": "$created_at"}},
			"revenue": bson.M{"$sum": "$amount"},
			"count":   bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	result := []domain.MonthlyRevenue{}
	if err := r.aggregate(ctx, r.payments, pipeline, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *MongoStatsRepository) TopServices(ctx context.Context, limit int64) ([]domain.ServiceSales, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"payment_status": domain.PaymentStatusPaid}}},
		{{Key: "$group", Value: bson.M{
			"_id":      "$service_id",
			"name":     bson.M{"$first": "$service.name"},
			"platform": bson.M{"$first": "$service.platform"},
			"orders":   bson.M{"$sum": 1},
			"revenue":  bson.M{"$sum": "$total_amount"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "orders", Value: -1}, {Key: "revenue", Value: -1}}}},
		{{Key: "$limit", Value: limit}},
	}

	result := []domain.ServiceSales{}
	if err := r.aggregate(ctx, r.orders, pipeline, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *MongoStatsRepository) RevenueByPlatform(ctx context.Context, since time.Time) ([]domain.PlatformRevenue, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: billableOrders(since)}},
		{{Key: "$group", Value: bson.M{
			"_id":     "$service.platform",
			"orders":  bson.M{"$sum": 1},
			"revenue": bson.M{"$sum": "$total_amount"},
		}}},
		{{Key: "$sort", Value: bson.M{"revenue": -1}}},
	}

	result := []domain.PlatformRevenue{}
	if err := r.aggregate(ctx, r.orders, pipeline, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *MongoStatsRepository) TopUsers(ctx context.Context, since time.Time, limit int64) ([]domain.TopUser, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: billableOrders(since)}},
		{{Key: "$group", Value: bson.M{
			"_id":    "$user_id",
			"orders": bson.M{"$sum": 1},
			"spent":  bson.M{"$sum": "$total_amount"},
		}}},
		{{Key: "$sort", Value: bson.M{"spent": -1}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "users",
			"localField":   "_id",
			"foreignField": "_id",
			"as":           "user",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$user", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$project", Value: bson.M{
			"orders":   1,
			"spent":    1,
			"username": "$user.username",
			"email":    "$user.email",
		}}},
	}

	result := []domain.TopUser{}
	if err := r.aggregate(ctx, r.orders, pipeline, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *MongoStatsRepository) aggregate(ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline, out interface{}) error {
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("failed to aggregate %s: %w", coll.Name(), err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("failed to decode %s aggregation: %w", coll.Name(), err)
	}
	return nil
}
