package service

import "github.com/mansoorceksport/smmpanel/internal/domain"

// DefaultServices is the starter catalog inserted by SeedDefaults
func DefaultServices() []*domain.Service {
	return []*domain.Service{
		{
			Name:         "Followers Instagram Réels",
			Description:  "Followers Instagram de qualité avec profils réels",
			Platform:     domain.PlatformInstagram,
			Category:     domain.CategoryFollowers,
			Price:        domain.MoneyFromMajor(1500),
			MinQuantity:  100,
			MaxQuantity:  50000,
			DeliveryTime: "1-24h",
			Quality:      domain.QualityHigh,
			Features:     []string{"Profiles réels", "Livraison rapide", "Garantie 30 jours"},
			RefillPolicy: domain.Refill30Days,
			IsActive:     true,
		},
		{
			Name:         "Likes Instagram",
			Description:  "Likes Instagram instantanés de qualité",
			Platform:     domain.PlatformInstagram,
			Category:     domain.CategoryLikes,
			Price:        domain.MoneyFromMajor(800),
			MinQuantity:  50,
			MaxQuantity:  100000,
			DeliveryTime: "0-1h",
			Quality:      domain.QualityStandard,
			Features:     []string{"Livraison instantanée", "Profiles actifs"},
			IsActive:     true,
		},
		{
			Name:         "Followers TikTok",
			Description:  "Followers TikTok de qualité premium",
			Platform:     domain.PlatformTikTok,
			Category:     domain.CategoryFollowers,
			Price:        domain.MoneyFromMajor(1200),
			MinQuantity:  100,
			MaxQuantity:  100000,
			DeliveryTime: "1-6h",
			Quality:      domain.QualityHigh,
			IsActive:     true,
		},
		{
			Name:         "Vues TikTok",
			Description:  "Vues TikTok rapides et sécurisées",
			Platform:     domain.PlatformTikTok,
			Category:     domain.CategoryViews,
			Price:        domain.MoneyFromMajor(200),
			MinQuantity:  1000,
			MaxQuantity:  1000000,
			DeliveryTime: "0-1h",
			Quality:      domain.QualityStandard,
			IsActive:     true,
		},
		{
			Name:         "Abonnés YouTube",
			Description:  "Abonnés YouTube réels et permanents",
			Platform:     domain.PlatformYouTube,
			Category:     domain.CategorySubscribers,
			Price:        domain.MoneyFromMajor(2500),
			MinQuantity:  50,
			MaxQuantity:  10000,
			DeliveryTime: "1-3 jours",
			Quality:      domain.QualityPremium,
			RefillPolicy: domain.RefillLifetime,
			IsActive:     true,
		},
		{
			Name:         "Vues YouTube",
			Description:  "Vues YouTube de haute qualité",
			Platform:     domain.PlatformYouTube,
			Category:     domain.CategoryViews,
			Price:        domain.MoneyFromMajor(400),
			MinQuantity:  1000,
			MaxQuantity:  1000000,
			DeliveryTime: "6-24h",
			Quality:      domain.QualityHigh,
			IsActive:     true,
		},
	}
}
