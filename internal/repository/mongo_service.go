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

// MongoServiceRepository implements domain.ServiceRepository
type MongoServiceRepository struct {
	collection *mongo.Collection
}

func NewMongoServiceRepository(db *mongo.Database) *MongoServiceRepository {
	coll := db.Collection("services")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "platform", Value: 1}, {Key: "category", Value: 1}, {Key: "price", Value: 1}}},
		{Keys: bson.D{{Key: "is_active", Value: 1}}},
	})

	return &MongoServiceRepository{collection: coll}
}

func (r *MongoServiceRepository) Create(ctx context.Context, service *domain.Service) error {
	prepareService(service)
	if _, err := r.collection.InsertOne(ctx, service); err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	return nil
}

func (r *MongoServiceRepository) CreateMany(ctx context.Context, services []*domain.Service) error {
	if len(services) == 0 {
		return nil
	}
	docs := make([]interface{}, len(services))
	for i, s := range services {
		prepareService(s)
		docs[i] = s
	}
	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to create services: %w", err)
	}
	return nil
}

func prepareService(s *domain.Service) {
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
	if s.ID == "" {
		s.ID = primitive.NewObjectID().Hex()
	}
}

func (r *MongoServiceRepository) GetByID(ctx context.Context, id string) (*domain.Service, error) {
	var service domain.Service
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&service)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return &service, nil
}

// ListActive returns active services ordered by platform, category and price
func (r *MongoServiceRepository) ListActive(ctx context.Context, filter domain.ServiceFilter, page domain.Page) ([]*domain.Service, int64, error) {
	query := bson.M{"is_active": true}
	if filter.Platform != "" {
		query["platform"] = filter.Platform
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count services: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "platform", Value: 1}, {Key: "category", Value: 1}, {Key: "price", Value: 1}}).
		SetSkip(page.Skip()).
		SetLimit(page.Limit)

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list services: %w", err)
	}
	defer cursor.Close(ctx)

	var services []*domain.Service
	if err := cursor.All(ctx, &services); err != nil {
		return nil, 0, fmt.Errorf("failed to decode services: %w", err)
	}
	return services, total, nil
}

// Platforms summarises the active catalog per platform
func (r *MongoServiceRepository) Platforms(ctx context.Context) ([]domain.PlatformSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"is_active": true}}},
		{{Key: "$group", Value: bson.M{
			"_id":           "$platform",
			"categories":    bson.M{"$addToSet": "$category"},
			"service_count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate platforms: %w", err)
	}
	defer cursor.Close(ctx)

	platforms := []domain.PlatformSummary{}
	if err := cursor.All(ctx, &platforms); err != nil {
		return nil, fmt.Errorf("failed to decode platforms: %w", err)
	}
	return platforms, nil
}

// Update replaces the mutable fields of a service
func (r *MongoServiceRepository) Update(ctx context.Context, service *domain.Service) error {
	service.UpdatedAt = time.Now()
	update := bson.M{"$set": bson.M{
		"name":          service.Name,
		"description":   service.Description,
		"platform":      service.Platform,
		"category":      service.Category,
		"price":         service.Price,
		"currency":      service.Currency,
		"min_quantity":  service.MinQuantity,
		"max_quantity":  service.MaxQuantity,
		"delivery_time": service.DeliveryTime,
		"quality":       service.Quality,
		"is_active":     service.IsActive,
		"icon":          service.Icon,
		"features":      service.Features,
		"refill_policy": service.RefillPolicy,
		"average_time":  service.AverageTime,
		"updated_at":    service.UpdatedAt,
	}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": service.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update service: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MongoServiceRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"is_active": active, "updated_at": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to update service status: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MongoServiceRepository) Count(ctx context.Context) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count services: %w", err)
	}
	return count, nil
}
