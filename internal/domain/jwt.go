package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// PanelClaims represents the access token claims
type PanelClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
