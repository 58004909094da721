package domain

import (
	"context"
	"strings"
	"time"
)

// Role constants
const (
	RoleUser      = "user"
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
)

// VIP levels
const (
	VIPBronze   = "bronze"
	VIPSilver   = "silver"
	VIPGold     = "gold"
	VIPPlatinum = "platinum"
)

// User is a panel account. Users are never deleted, only deactivated.
type User struct {
	ID              string      `bson:"_id,omitempty" json:"id"`
	Username        string      `bson:"username" json:"username"`
	Email           string      `bson:"email" json:"email"`
	PasswordHash    string      `bson:"password_hash" json:"-"`
	FirstName       string      `bson:"first_name" json:"first_name"`
	LastName        string      `bson:"last_name" json:"last_name"`
	Phone           string      `bson:"phone,omitempty" json:"phone,omitempty"`
	Avatar          string      `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Role            string      `bson:"role" json:"role"`
	Balance         Money       `bson:"balance" json:"balance"`
	TotalSpent      Money       `bson:"total_spent" json:"total_spent"`
	VIPLevel        string      `bson:"vip_level" json:"vip_level"`
	IsActive        bool        `bson:"is_active" json:"is_active"`
	IsEmailVerified bool        `bson:"is_email_verified" json:"is_email_verified"`
	LastLoginAt     *time.Time  `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
	Preferences     Preferences `bson:"preferences" json:"preferences"`
	SocialMedia     SocialMedia `bson:"social_media" json:"social_media"`
	CreatedAt       time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `bson:"updated_at" json:"updated_at"`
}

// Preferences holds per-user display and notification settings
type Preferences struct {
	Language      string        `bson:"language" json:"language"`
	Currency      string        `bson:"currency" json:"currency"`
	Notifications Notifications `bson:"notifications" json:"notifications"`
}

type Notifications struct {
	Email bool `bson:"email" json:"email"`
	SMS   bool `bson:"sms" json:"sms"`
	Push  bool `bson:"push" json:"push"`
}

// SocialMedia holds the user's own handles
type SocialMedia struct {
	Instagram string `bson:"instagram,omitempty" json:"instagram,omitempty"`
	TikTok    string `bson:"tiktok,omitempty" json:"tiktok,omitempty"`
	YouTube   string `bson:"youtube,omitempty" json:"youtube,omitempty"`
	Facebook  string `bson:"facebook,omitempty" json:"facebook,omitempty"`
}

// FullName joins first and last name
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// HasRole checks if user has one of the given roles
func (u *User) HasRole(roles ...string) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// ApplyDefaults fills the fields a freshly registered account starts with.
func (u *User) ApplyDefaults() {
	u.Email = NormalizeEmail(u.Email)
	u.Username = strings.TrimSpace(u.Username)
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.VIPLevel == "" {
		u.VIPLevel = VIPBronze
	}
	if u.Preferences.Language == "" {
		u.Preferences.Language = "fr"
	}
	if u.Preferences.Currency == "" {
		u.Preferences.Currency = DefaultCurrency
	}
	u.IsActive = true
}

// NormalizeEmail lower-cases and trims an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidRole reports whether role is assignable
func IsValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAdmin, RoleModerator:
		return true
	}
	return false
}

// ProfileUpdate lists the fields a user may change on their own profile.
// Nil fields are left untouched.
type ProfileUpdate struct {
	FirstName   *string      `json:"first_name"`
	LastName    *string      `json:"last_name"`
	Phone       *string      `json:"phone"`
	Avatar      *string      `json:"avatar"`
	Preferences *Preferences `json:"preferences"`
	SocialMedia *SocialMedia `json:"social_media"`
}

// Balance is the ledger view of a user
type Balance struct {
	Balance    Money  `bson:"balance" json:"balance"`
	TotalSpent Money  `bson:"total_spent" json:"total_spent"`
	Currency   string `bson:"-" json:"currency"`
}

// UserFilter narrows admin user listings
type UserFilter struct {
	Role     string
	IsActive *bool
	Search   string
}

// UserRepository defines operations for managing users
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
	SetActive(ctx context.Context, id string, active bool) (*User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context, filter UserFilter, page Page) ([]*User, int64, error)
}

// LedgerRepository mutates the monetary fields of a user document.
// Every method is a single atomic update and joins the transaction carried
// by ctx when there is one.
type LedgerRepository interface {
	// Debit decrements balance only when it covers amount and the user is active.
	Debit(ctx context.Context, userID string, amount Money) (*Balance, error)
	// Credit increments balance and total spent.
	Credit(ctx context.Context, userID string, amount Money) (*Balance, error)
	// Refund increments balance only.
	Refund(ctx context.Context, userID string, amount Money) (*Balance, error)
	GetBalance(ctx context.Context, userID string) (*Balance, error)
}
