package service

import (
	"context"
	"errors"
	"strings"

	"github.com/mansoorceksport/smmpanel/internal/domain"
	"go.uber.org/zap"
)

const defaultServicePageSize = 20

// CatalogService serves the service catalog to buyers and admins
type CatalogService struct {
	services domain.ServiceRepository
	logger   *zap.Logger
}

func NewCatalogService(services domain.ServiceRepository, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		services: services,
		logger:   logger.Named("catalog"),
	}
}

// CatalogPage is a page of active services grouped platform → category
type CatalogPage struct {
	Platforms  []domain.PlatformGroup `json:"platforms"`
	Items      []*domain.Service      `json:"items"`
	Pagination domain.Pagination      `json:"pagination"`
}

// LookupActive returns a service that can currently be ordered
func (s *CatalogService) LookupActive(ctx context.Context, serviceID string) (*domain.Service, error) {
	service, err := s.services.GetByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewError(domain.KindNotFound, "service not found")
		}
		return nil, err
	}
	if !service.IsActive {
		return nil, domain.NewError(domain.KindServiceUnavailable, "service is not available")
	}
	return service, nil
}

// Get returns a service regardless of its active flag, for admins
func (s *CatalogService) Get(ctx context.Context, serviceID string) (*domain.Service, error) {
	service, err := s.services.GetByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewError(domain.KindNotFound, "service not found")
		}
		return nil, err
	}
	return service, nil
}

// ListActive pages through the active catalog
func (s *CatalogService) ListActive(ctx context.Context, filter domain.ServiceFilter, page, limit int64) (*CatalogPage, error) {
	filter.Platform = strings.ToLower(filter.Platform)
	filter.Category = strings.ToLower(filter.Category)
	p := domain.NewPage(page, limit, defaultServicePageSize)

	services, total, err := s.services.ListActive(ctx, filter, p)
	if err != nil {
		return nil, err
	}
	if services == nil {
		services = []*domain.Service{}
	}

	return &CatalogPage{
		Platforms:  domain.GroupServices(services),
		Items:      services,
		Pagination: domain.NewPagination(p, total),
	}, nil
}

func (s *CatalogService) Platforms(ctx context.Context) ([]domain.PlatformSummary, error) {
	return s.services.Platforms(ctx)
}

// Create validates and stores a new service
func (s *CatalogService) Create(ctx context.Context, service *domain.Service) (*domain.Service, error) {
	service.ID = ""
	service.ApplyDefaults()
	if err := service.Validate(); err != nil {
		return nil, err
	}
	if err := s.services.Create(ctx, service); err != nil {
		return nil, err
	}
	s.logger.Info("service created", zap.String("service_id", service.ID), zap.String("name", service.Name))
	return service, nil
}

// Update applies a partial update and re-validates the result
func (s *CatalogService) Update(ctx context.Context, serviceID string, update domain.ServiceUpdate) (*domain.Service, error) {
	service, err := s.Get(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	update.Apply(service)
	service.ApplyDefaults()
	if err := service.Validate(); err != nil {
		return nil, err
	}
	if err := s.services.Update(ctx, service); err != nil {
		return nil, err
	}
	s.logger.Info("service updated", zap.String("service_id", service.ID))
	return service, nil
}

// Deactivate soft-deletes a service; existing orders keep their snapshot
func (s *CatalogService) Deactivate(ctx context.Context, serviceID string) error {
	if err := s.services.SetActive(ctx, serviceID, false); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewError(domain.KindNotFound, "service not found")
		}
		return err
	}
	s.logger.Info("service deactivated", zap.String("service_id", serviceID))
	return nil
}

// SeedDefaults inserts the starter catalog into an empty catalog
func (s *CatalogService) SeedDefaults(ctx context.Context) ([]*domain.Service, error) {
	count, err := s.services.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, domain.NewError(domain.KindConflict, "catalog already contains services").With("count", count)
	}

	services := DefaultServices()
	for _, svc := range services {
		svc.ApplyDefaults()
		if err := svc.Validate(); err != nil {
			return nil, err
		}
	}
	if err := s.services.CreateMany(ctx, services); err != nil {
		return nil, err
	}
	s.logger.Info("default catalog seeded", zap.Int("count", len(services)))
	return services, nil
}
