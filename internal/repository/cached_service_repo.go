package repository

import (
	"context"
	"time"

	"github.com/mansoorceksport/smmpanel/internal/domain"
)

const (
	serviceByIDKeyPrefix = "service:id:"
	platformsKey         = "service:platforms"
	serviceKeysPattern   = "service:*"
)

// CachedServiceRepository wraps MongoServiceRepository with Redis caching of
// single-service lookups and the platform summary. Every write invalidates.
type CachedServiceRepository struct {
	mongo *MongoServiceRepository
	cache *RedisCacheRepository
	ttl   time.Duration
}

// NewCachedServiceRepository creates a new cached service repository
func NewCachedServiceRepository(mongo *MongoServiceRepository, cache *RedisCacheRepository, ttl time.Duration) *CachedServiceRepository {
	return &CachedServiceRepository{
		mongo: mongo,
		cache: cache,
		ttl:   ttl,
	}
}

// GetByID retrieves a service with caching
func (r *CachedServiceRepository) GetByID(ctx context.Context, id string) (*domain.Service, error) {
	key := serviceByIDKeyPrefix + id

	var service domain.Service
	if err := r.cache.Get(ctx, key, &service); err == nil {
		return &service, nil
	}

	result, err := r.mongo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Store in cache (ignore cache errors)
	_ = r.cache.Set(ctx, key, result, r.ttl)

	return result, nil
}

// Platforms retrieves the platform summary with caching
func (r *CachedServiceRepository) Platforms(ctx context.Context) ([]domain.PlatformSummary, error) {
	var platforms []domain.PlatformSummary
	if err := r.cache.Get(ctx, platformsKey, &platforms); err == nil {
		return platforms, nil
	}

	result, err := r.mongo.Platforms(ctx)
	if err != nil {
		return nil, err
	}

	_ = r.cache.Set(ctx, platformsKey, result, r.ttl)

	return result, nil
}

func (r *CachedServiceRepository) ListActive(ctx context.Context, filter domain.ServiceFilter, page domain.Page) ([]*domain.Service, int64, error) {
	return r.mongo.ListActive(ctx, filter, page)
}

func (r *CachedServiceRepository) Count(ctx context.Context) (int64, error) {
	return r.mongo.Count(ctx)
}

// Create creates a service and invalidates the platform summary
func (r *CachedServiceRepository) Create(ctx context.Context, service *domain.Service) error {
	if err := r.mongo.Create(ctx, service); err != nil {
		return err
	}
	_ = r.cache.Delete(ctx, platformsKey)
	return nil
}

// CreateMany bulk-inserts services (catalog seeding) and drops every cached
// catalog entry, since a seed usually follows a reset of the collection.
func (r *CachedServiceRepository) CreateMany(ctx context.Context, services []*domain.Service) error {
	if err := r.mongo.CreateMany(ctx, services); err != nil {
		return err
	}
	_ = r.cache.DeleteByPattern(ctx, serviceKeysPattern)
	return nil
}

// Update updates a service and invalidates caches
func (r *CachedServiceRepository) Update(ctx context.Context, service *domain.Service) error {
	if err := r.mongo.Update(ctx, service); err != nil {
		return err
	}
	_ = r.cache.Delete(ctx, serviceByIDKeyPrefix+service.ID, platformsKey)
	return nil
}

// SetActive toggles a service and invalidates caches
func (r *CachedServiceRepository) SetActive(ctx context.Context, id string, active bool) error {
	if err := r.mongo.SetActive(ctx, id, active); err != nil {
		return err
	}
	_ = r.cache.Delete(ctx, serviceByIDKeyPrefix+id, platformsKey)
	return nil
}
