package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/mansoorceksport/smmpanel/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 6
	minUsernameLength = 3
	maxUsernameLength = 30
)

// AuthService handles registration, login and bearer token authentication
type AuthService struct {
	users  domain.UserRepository
	tokens *TokenService
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(users domain.UserRepository, tokens *TokenService, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		logger: logger.Named("auth"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RegisterRequest contains the fields of a new account
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// LoginRequest contains email/password credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionInfo identifies the client a token pair is issued to
type SessionInfo struct {
	UserAgent string
	IPAddress string
}

// AuthResponse is returned by register, login and refresh
type AuthResponse struct {
	User   *domain.User `json:"user"`
	Tokens *TokenPair   `json:"tokens"`
}

func (r *RegisterRequest) validate() error {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = domain.NormalizeEmail(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)

	if n := len(r.Username); n < minUsernameLength || n > maxUsernameLength {
		return domain.NewValidationError("username", fmt.Sprintf("username must be %d to %d characters", minUsernameLength, maxUsernameLength))
	}
	if _, err := mail.ParseAddress(r.Email); err != nil || r.Email == "" {
		return domain.NewValidationError("email", "a valid email is required")
	}
	if len(r.Password) < minPasswordLength {
		return domain.NewValidationError("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if r.FirstName == "" {
		return domain.NewValidationError("first_name", "first name is required")
	}
	if r.LastName == "" {
		return domain.NewValidationError("last_name", "last name is required")
	}
	return nil
}

// Register creates a user account with a zero balance and signs it in
func (s *AuthService) Register(ctx context.Context, req RegisterRequest, session SessionInfo) (*AuthResponse, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	if err := s.ensureAvailable(ctx, req.Email, req.Username); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &domain.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        strings.TrimSpace(req.Phone),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	user.ApplyDefaults()
	// Registration never grants elevated roles
	user.Role = domain.RoleUser

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	tokens, err := s.tokens.GenerateTokenPair(ctx, user, session.UserAgent, session.IPAddress)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("username", user.Username))
	return &AuthResponse{User: user, Tokens: tokens}, nil
}

func (s *AuthService) ensureAvailable(ctx context.Context, email, username string) error {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return domain.NewError(domain.KindConflict, "an account with this email already exists").With("field", "email")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return domain.NewError(domain.KindConflict, "this username is already taken").With("field", "username")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

// Login verifies credentials and issues a token pair. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, req LoginRequest, session SessionInfo) (*AuthResponse, error) {
	email := domain.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, domain.NewValidationError("email", "email and password are required")
	}

	invalid := domain.NewError(domain.KindUnauthenticated, "invalid email or password")

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, invalid
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, invalid
	}
	if !user.IsActive {
		return nil, domain.NewError(domain.KindUnauthenticated, "account is deactivated")
	}

	now := s.now()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to record last login", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}

	tokens, err := s.tokens.GenerateTokenPair(ctx, user, session.UserAgent, session.IPAddress)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID))
	return &AuthResponse{User: user, Tokens: tokens}, nil
}

// Authenticate resolves a bearer token to an active user
func (s *AuthService) Authenticate(ctx context.Context, bearer string) (*domain.User, error) {
	claims, err := s.tokens.ParseAccessToken(bearer)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewError(domain.KindUnauthenticated, "user not found")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.NewError(domain.KindUnauthenticated, "account is deactivated")
	}
	return user, nil
}

// Refresh rotates a refresh token into a new token pair
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, session SessionInfo) (*TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, domain.NewValidationError("refresh_token", "refresh token is required")
	}
	return s.tokens.RefreshAccessToken(ctx, refreshToken, session.UserAgent, session.IPAddress)
}

// Logout revokes the given refresh token. Access tokens expire on their own.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.tokens.RevokeRefreshToken(ctx, refreshToken)
}
