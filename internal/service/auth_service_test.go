package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mansoorceksport/smmpanel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerRequest(username string) RegisterRequest {
	return RegisterRequest{
		Username:  username,
		Email:     "  " + username + "@Example.com ",
		Password:  "secret123",
		FirstName: "Amine",
		LastName:  "Kaci",
	}
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.auth.Register(ctx, registerRequest("amine"), SessionInfo{UserAgent: "test", IPAddress: "127.0.0.1"})
	require.NoError(t, err)

	assert.Equal(t, "amine@example.com", resp.User.Email)
	assert.Equal(t, domain.RoleUser, resp.User.Role)
	assert.Equal(t, domain.Money(0), resp.User.Balance)
	assert.True(t, resp.User.IsActive)
	assert.NotEqual(t, "secret123", resp.User.PasswordHash)
	assert.NotEmpty(t, resp.Tokens.AccessToken)
	assert.NotEmpty(t, resp.Tokens.RefreshToken)
	assert.Equal(t, int64(15*60), resp.Tokens.ExpiresIn)

	_, err = env.auth.Register(ctx, registerRequest("amine"), SessionInfo{})
	assert.True(t, errors.Is(err, domain.ErrConflict))

	dup := registerRequest("other")
	dup.Username = "amine"
	_, err = env.auth.Register(ctx, dup, SessionInfo{})
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := map[string]func(r *RegisterRequest){
		"short username": func(r *RegisterRequest) { r.Username = "ab" },
		"bad email":      func(r *RegisterRequest) { r.Email = "not-an-email" },
		"short password": func(r *RegisterRequest) { r.Password = "12345" },
		"no first name":  func(r *RegisterRequest) { r.FirstName = " " },
		"no last name":   func(r *RegisterRequest) { r.LastName = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			req := registerRequest("valid_user")
			mutate(&req)
			_, err := env.auth.Register(context.Background(), req, SessionInfo{})
			assert.True(t, errors.Is(err, domain.ErrValidation), "got %v", err)
		})
	}
	assert.Empty(t, env.store.users)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	registered, err := env.auth.Register(ctx, registerRequest("amine"), SessionInfo{})
	require.NoError(t, err)

	resp, err := env.auth.Login(ctx, LoginRequest{Email: "AMINE@example.com", Password: "secret123"}, SessionInfo{})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, resp.User.ID)
	assert.NotNil(t, resp.User.LastLoginAt)

	_, err = env.auth.Login(ctx, LoginRequest{Email: "amine@example.com", Password: "wrong"}, SessionInfo{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthenticated))

	_, unknownErr := env.auth.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "secret123"}, SessionInfo{})
	assert.Equal(t, err.Error(), unknownErr.Error(), "unknown email and wrong password look the same")

	_, err = env.users.SetActive(ctx, registered.User.ID, false)
	require.NoError(t, err)
	_, err = env.auth.Login(ctx, LoginRequest{Email: "amine@example.com", Password: "secret123"}, SessionInfo{})
	assert.True(t, errors.Is(err, domain.ErrUnauthenticated))
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	resp, err := env.auth.Register(ctx, registerRequest("amine"), SessionInfo{})
	require.NoError(t, err)

	user, err := env.auth.Authenticate(ctx, resp.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, user.ID)

	_, err = env.auth.Authenticate(ctx, "garbage")
	assert.Same(t, domain.ErrInvalidToken, err)

	t.Run("expired", func(t *testing.T) {
		env.tokens.now = func() time.Time { return time.Now().Add(-time.Hour) }
		stale, err := env.tokens.GenerateAccessToken(resp.User)
		env.tokens.now = time.Now
		require.NoError(t, err)

		_, err = env.auth.Authenticate(ctx, stale)
		assert.Same(t, domain.ErrTokenExpired, err)
	})

	t.Run("foreign secret", func(t *testing.T) {
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, domain.PanelClaims{
			UserID: resp.User.ID,
			Role:   domain.RoleAdmin,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}).SignedString([]byte("someone-else"))
		require.NoError(t, err)

		_, err = env.auth.Authenticate(ctx, forged)
		assert.Same(t, domain.ErrInvalidToken, err)
	})

	t.Run("deactivated", func(t *testing.T) {
		_, err := env.users.SetActive(ctx, resp.User.ID, false)
		require.NoError(t, err)
		_, err = env.auth.Authenticate(ctx, resp.Tokens.AccessToken)
		assert.True(t, errors.Is(err, domain.ErrUnauthenticated))
	})
}

func TestRefreshRotatesTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	resp, err := env.auth.Register(ctx, registerRequest("amine"), SessionInfo{})
	require.NoError(t, err)

	rotated, err := env.auth.Refresh(ctx, resp.Tokens.RefreshToken, SessionInfo{})
	require.NoError(t, err)
	assert.NotEqual(t, resp.Tokens.RefreshToken, rotated.RefreshToken)

	_, err = env.auth.Refresh(ctx, resp.Tokens.RefreshToken, SessionInfo{})
	assert.True(t, errors.Is(err, domain.ErrUnauthenticated), "a refresh token works once")

	require.NoError(t, env.auth.Logout(ctx, rotated.RefreshToken))
	_, err = env.auth.Refresh(ctx, rotated.RefreshToken, SessionInfo{})
	assert.True(t, errors.Is(err, domain.ErrUnauthenticated))

	_, err = env.auth.Refresh(ctx, "", SessionInfo{})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}
