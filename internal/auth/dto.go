package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/perkpilot/backend/pkg/db/models"
)

// LoginRequest carries dashboard login credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserSummary is the user shape returned after login.
type UserSummary struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	Role        string     `json:"role"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// RefreshRequest carries the expired-or-live access token plus its refresh token.
type RefreshRequest struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshResponse carries the freshly rotated token pair.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// LoginResponse carries the minted token pair and the authenticated user.
type LoginResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         UserSummary `json:"user"`
}

func userSummary(user *models.User, roleLabel string) UserSummary {
	return UserSummary{
		ID:          user.ID,
		Email:       user.Email,
		Username:    user.Username,
		Role:        roleLabel,
		LastLoginAt: user.LastLoginAt,
	}
}
