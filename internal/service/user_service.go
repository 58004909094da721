package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mansoorceksport/smmpanel/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const defaultUserPageSize = 20

// UserService manages profiles and, for admins, accounts
type UserService struct {
	users  domain.UserRepository
	ledger *LedgerService
	tokens *TokenService
	logger *zap.Logger
}

func NewUserService(users domain.UserRepository, ledger *LedgerService, tokens *TokenService, logger *zap.Logger) *UserService {
	return &UserService{
		users:  users,
		ledger: ledger,
		tokens: tokens,
		logger: logger.Named("users"),
	}
}

func (s *UserService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdateProfile changes the allow-listed profile fields only
func (s *UserService) UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) (*domain.User, error) {
	if update.FirstName != nil && strings.TrimSpace(*update.FirstName) == "" {
		return nil, domain.NewValidationError("first_name", "first name must not be empty")
	}
	if update.LastName != nil && strings.TrimSpace(*update.LastName) == "" {
		return nil, domain.NewValidationError("last_name", "last name must not be empty")
	}
	if p := update.Preferences; p != nil && p.Currency != "" && p.Currency != domain.DefaultCurrency {
		return nil, domain.NewValidationError("preferences.currency", "only "+domain.DefaultCurrency+" is supported")
	}
	return s.users.UpdateProfile(ctx, userID, update)
}

func (s *UserService) Balance(ctx context.Context, userID string) (*domain.Balance, error) {
	return s.ledger.Balance(ctx, userID)
}

// ChangePasswordRequest carries the current password for verification
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword replaces the password after checking the current one and
// signs out every other session.
func (s *UserService) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error {
	if len(req.NewPassword) < minPasswordLength {
		return domain.NewValidationError("new_password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return domain.NewValidationError("current_password", "current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return err
	}
	if err := s.tokens.RevokeAllUserTokens(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke sessions after password change", zap.String("user_id", userID), zap.Error(err))
	}

	s.logger.Info("password changed", zap.String("user_id", userID))
	return nil
}

// List returns users for the admin console
func (s *UserService) List(ctx context.Context, filter domain.UserFilter, page, limit int64) (*domain.PagedResult[*domain.User], error) {
	if filter.Role != "" && !domain.IsValidRole(filter.Role) {
		return nil, domain.NewValidationError("role", "unknown role")
	}
	filter.Search = strings.TrimSpace(filter.Search)
	p := domain.NewPage(page, limit, defaultUserPageSize)
	users, total, err := s.users.List(ctx, filter, p)
	if err != nil {
		return nil, err
	}
	return domain.NewPagedResult(users, p, total), nil
}

// SetStatus activates or deactivates an account. Deactivation revokes every
// refresh token; outstanding access tokens stop working at the next request
// because authentication checks the active flag.
func (s *UserService) SetStatus(ctx context.Context, actorID, userID string, active bool) (*domain.User, error) {
	if actorID == userID && !active {
		return nil, domain.NewValidationError("is_active", "you cannot deactivate your own account")
	}

	user, err := s.users.SetActive(ctx, userID, active)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewError(domain.KindNotFound, "user not found")
		}
		return nil, err
	}
	if !active {
		if err := s.tokens.RevokeAllUserTokens(ctx, userID); err != nil {
			return nil, err
		}
	}

	s.logger.Info("user status changed",
		zap.String("user_id", userID),
		zap.String("actor_id", actorID),
		zap.Bool("active", active),
	)
	return user, nil
}
