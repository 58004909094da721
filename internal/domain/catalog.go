package domain

import (
	"context"
	"strings"
	"time"
)

// Platforms
const (
	PlatformInstagram = "instagram"
	PlatformTikTok    = "tiktok"
	PlatformYouTube   = "youtube"
	PlatformFacebook  = "facebook"
	PlatformTwitter   = "twitter"
)

// Categories
const (
	CategoryFollowers   = "followers"
	CategoryLikes       = "likes"
	CategoryViews       = "views"
	CategoryComments    = "comments"
	CategoryShares      = "shares"
	CategorySubscribers = "subscribers"
)

// Quality tiers
const (
	QualityStandard = "standard"
	QualityHigh     = "high"
	QualityPremium  = "premium"
)

// Refill policies
const (
	RefillNone     = "none"
	Refill30Days   = "30days"
	Refill60Days   = "60days"
	RefillLifetime = "lifetime"
)

var (
	platforms      = []string{PlatformInstagram, PlatformTikTok, PlatformYouTube, PlatformFacebook, PlatformTwitter}
	categories     = []string{CategoryFollowers, CategoryLikes, CategoryViews, CategoryComments, CategoryShares, CategorySubscribers}
	qualities      = []string{QualityStandard, QualityHigh, QualityPremium}
	refillPolicies = []string{RefillNone, Refill30Days, Refill60Days, RefillLifetime}
)

// Service is a purchasable catalog item, priced per 1000 units.
// Services are soft-deleted by clearing IsActive.
type Service struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Name         string    `bson:"name" json:"name"`
	Description  string    `bson:"description" json:"description"`
	Platform     string    `bson:"platform" json:"platform"`
	Category     string    `bson:"category" json:"category"`
	Price        Money     `bson:"price" json:"price"`
	Currency     string    `bson:"currency" json:"currency"`
	MinQuantity  int64     `bson:"min_quantity" json:"min_quantity"`
	MaxQuantity  int64     `bson:"max_quantity" json:"max_quantity"`
	DeliveryTime string    `bson:"delivery_time" json:"delivery_time"`
	Quality      string    `bson:"quality" json:"quality"`
	IsActive     bool      `bson:"is_active" json:"is_active"`
	Icon         string    `bson:"icon,omitempty" json:"icon,omitempty"`
	Features     []string  `bson:"features" json:"features"`
	RefillPolicy string    `bson:"refill_policy" json:"refill_policy"`
	AverageTime  string    `bson:"average_time,omitempty" json:"average_time,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// ApplyDefaults fills optional fields left empty by the caller
func (s *Service) ApplyDefaults() {
	s.Platform = strings.ToLower(strings.TrimSpace(s.Platform))
	s.Category = strings.ToLower(strings.TrimSpace(s.Category))
	if s.Currency == "" {
		s.Currency = DefaultCurrency
	}
	if s.Quality == "" {
		s.Quality = QualityStandard
	}
	if s.RefillPolicy == "" {
		s.RefillPolicy = RefillNone
	}
	if s.Features == nil {
		s.Features = []string{}
	}
}

// Validate checks the catalog invariants of a service
func (s *Service) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return NewValidationError("name", "name is required")
	}
	if strings.TrimSpace(s.DeliveryTime) == "" {
		return NewValidationError("delivery_time", "delivery time is required")
	}
	if !contains(platforms, s.Platform) {
		return NewValidationError("platform", "unknown platform").With("allowed", platforms)
	}
	if !contains(categories, s.Category) {
		return NewValidationError("category", "unknown category").With("allowed", categories)
	}
	if !contains(qualities, s.Quality) {
		return NewValidationError("quality", "unknown quality").With("allowed", qualities)
	}
	if !contains(refillPolicies, s.RefillPolicy) {
		return NewValidationError("refill_policy", "unknown refill policy").With("allowed", refillPolicies)
	}
	if s.Price < 0 {
		return NewValidationError("price", "price must not be negative")
	}
	if s.MinQuantity < 1 {
		return NewValidationError("min_quantity", "minimum quantity must be at least 1")
	}
	if s.MinQuantity > s.MaxQuantity {
		return NewValidationError("max_quantity", "maximum quantity must not be below minimum quantity")
	}
	return nil
}

// AcceptsQuantity reports whether quantity is within the service bounds
func (s *Service) AcceptsQuantity(quantity int64) bool {
	return quantity >= s.MinQuantity && quantity <= s.MaxQuantity
}

// Summary is the snapshot of a service stored on each order
func (s *Service) Summary() ServiceSummary {
	return ServiceSummary{
		ID:           s.ID,
		Name:         s.Name,
		Platform:     s.Platform,
		Category:     s.Category,
		DeliveryTime: s.DeliveryTime,
		Icon:         s.Icon,
	}
}

// ServiceUpdate is a partial admin update. Nil fields are left untouched.
type ServiceUpdate struct {
	Name         *string   `json:"name"`
	Description  *string   `json:"description"`
	Platform     *string   `json:"platform"`
	Category     *string   `json:"category"`
	Price        *Money    `json:"price"`
	MinQuantity  *int64    `json:"min_quantity"`
	MaxQuantity  *int64    `json:"max_quantity"`
	DeliveryTime *string   `json:"delivery_time"`
	Quality      *string   `json:"quality"`
	IsActive     *bool     `json:"is_active"`
	Icon         *string   `json:"icon"`
	Features     *[]string `json:"features"`
	RefillPolicy *string   `json:"refill_policy"`
	AverageTime  *string   `json:"average_time"`
}

// Apply copies the set fields of u onto s
func (u ServiceUpdate) Apply(s *Service) {
	setString(&s.Name, u.Name)
	setString(&s.Description, u.Description)
	setString(&s.Platform, u.Platform)
	setString(&s.Category, u.Category)
	setString(&s.DeliveryTime, u.DeliveryTime)
	setString(&s.Quality, u.Quality)
	setString(&s.Icon, u.Icon)
	setString(&s.RefillPolicy, u.RefillPolicy)
	setString(&s.AverageTime, u.AverageTime)
	if u.Price != nil {
		s.Price = *u.Price
	}
	if u.MinQuantity != nil {
		s.MinQuantity = *u.MinQuantity
	}
	if u.MaxQuantity != nil {
		s.MaxQuantity = *u.MaxQuantity
	}
	if u.IsActive != nil {
		s.IsActive = *u.IsActive
	}
	if u.Features != nil {
		s.Features = *u.Features
	}
}

// ServiceFilter narrows catalog listings
type ServiceFilter struct {
	Platform string
	Category string
}

// CategoryGroup is one category of a platform in a grouped listing
type CategoryGroup struct {
	Category string     `json:"category"`
	Services []*Service `json:"services"`
}

// PlatformGroup is one platform of a grouped listing
type PlatformGroup struct {
	Platform   string          `json:"platform"`
	Categories []CategoryGroup `json:"categories"`
}

// GroupServices groups an ordered service list platform → category,
// keeping the input order inside each group.
func GroupServices(services []*Service) []PlatformGroup {
	groups := []PlatformGroup{}
	for _, s := range services {
		if len(groups) == 0 || groups[len(groups)-1].Platform != s.Platform {
			groups = append(groups, PlatformGroup{Platform: s.Platform})
		}
		pg := &groups[len(groups)-1]
		if len(pg.Categories) == 0 || pg.Categories[len(pg.Categories)-1].Category != s.Category {
			pg.Categories = append(pg.Categories, CategoryGroup{Category: s.Category})
		}
		cg := &pg.Categories[len(pg.Categories)-1]
		cg.Services = append(cg.Services, s)
	}
	return groups
}

// PlatformSummary describes an active platform
type PlatformSummary struct {
	Name         string   `bson:"_id" json:"name"`
	Categories   []string `bson:"categories" json:"categories"`
	ServiceCount int64    `bson:"service_count" json:"service_count"`
}

// ServiceRepository defines operations for managing catalog services
type ServiceRepository interface {
	Create(ctx context.Context, service *Service) error
	CreateMany(ctx context.Context, services []*Service) error
	GetByID(ctx context.Context, id string) (*Service, error)
	ListActive(ctx context.Context, filter ServiceFilter, page Page) ([]*Service, int64, error)
	Platforms(ctx context.Context) ([]PlatformSummary, error)
	Update(ctx context.Context, service *Service) error
	SetActive(ctx context.Context, id string, active bool) error
	Count(ctx context.Context) (int64, error)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
