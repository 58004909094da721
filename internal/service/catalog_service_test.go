package service

import (
	"context"
	"errors"
	"testing"

	"github.com/mansoorceksport/smmpanel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedDefaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seeded, err := env.catalog.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Len(t, seeded, len(DefaultServices()))
	for _, svc := range seeded {
		assert.NotEmpty(t, svc.ID)
		assert.True(t, svc.IsActive)
	}

	_, err = env.catalog.SeedDefaults(ctx)
	assert.True(t, errors.Is(err, domain.ErrConflict), "seeding twice must not duplicate services")

	count, err := env.services.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(seeded)), count)
}

func TestListActiveGroupsByPlatform(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.catalog.SeedDefaults(ctx)
	require.NoError(t, err)

	page, err := env.catalog.ListActive(ctx, domain.ServiceFilter{}, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(len(DefaultServices())), page.Pagination.Total)
	assert.Equal(t, int64(20), page.Pagination.Limit)

	var grouped int
	for _, p := range page.Platforms {
		for _, c := range p.Categories {
			for _, s := range c.Services {
				assert.Equal(t, p.Platform, s.Platform)
				assert.Equal(t, c.Category, s.Category)
				grouped++
			}
		}
	}
	assert.Equal(t, len(page.Items), grouped)

	filtered, err := env.catalog.ListActive(ctx, domain.ServiceFilter{Platform: "INSTAGRAM"}, 1, 10)
	require.NoError(t, err)
	require.NotEmpty(t, filtered.Items)
	for _, s := range filtered.Items {
		assert.Equal(t, domain.PlatformInstagram, s.Platform)
	}
}

func TestCatalogAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.catalog.Create(ctx, &domain.Service{
		Name:         "Vues YouTube",
		Platform:     " YouTube ",
		Category:     "views",
		Price:        domain.MoneyFromMajor(300),
		MinQuantity:  1000,
		MaxQuantity:  1000000,
		DeliveryTime: "1-3 jours",
		IsActive:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PlatformYouTube, created.Platform)
	assert.Equal(t, domain.QualityStandard, created.Quality)
	assert.Equal(t, domain.RefillNone, created.RefillPolicy)

	_, err = env.catalog.Create(ctx, &domain.Service{
		Name: "Broken", Platform: "myspace", Category: "views", MinQuantity: 1, MaxQuantity: 2, DeliveryTime: "now",
	})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	updated, err := env.catalog.Update(ctx, created.ID, domain.ServiceUpdate{Price: ptr(domain.MoneyFromMajor(350))})
	require.NoError(t, err)
	assert.Equal(t, domain.MoneyFromMajor(350), updated.Price)

	_, err = env.catalog.Update(ctx, created.ID, domain.ServiceUpdate{MinQuantity: ptr(int64(2000000))})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	require.NoError(t, env.catalog.Deactivate(ctx, created.ID))
	_, err = env.catalog.LookupActive(ctx, created.ID)
	assert.True(t, errors.Is(err, domain.ErrServiceUnavailable))

	// Admins still see deactivated services
	got, err := env.catalog.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	assert.True(t, errors.Is(env.catalog.Deactivate(ctx, "missing"), domain.ErrNotFound))
	_, err = env.catalog.LookupActive(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestPlatforms(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedService(t, nil)
	env.seedService(t, func(s *domain.Service) { s.Category = domain.CategoryLikes })
	env.seedService(t, func(s *domain.Service) { s.Platform = domain.PlatformTikTok })

	platforms, err := env.catalog.Platforms(ctx)
	require.NoError(t, err)
	require.Len(t, platforms, 2)
	assert.Equal(t, domain.PlatformInstagram, platforms[0].Name)
	assert.Equal(t, int64(2), platforms[0].ServiceCount)
	assert.ElementsMatch(t, []string{domain.CategoryFollowers, domain.CategoryLikes}, platforms[0].Categories)
}
