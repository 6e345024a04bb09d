package api

import (
	"time"

	"github.com/platinummonkey/spkrepo/pkg/models"
)

// CreateArchitectureRequest is the body of POST /architecture
type CreateArchitectureRequest struct {
	Code string `json:"code"`
}

// DeleteRequest is the body of the DELETE endpoints
type DeleteRequest struct {
	ID int64 `json:"id"`
}

// LoginResponse is returned by a successful login
type LoginResponse struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
	User      models.UserSummary `json:"user"`
	Roles     []models.Role      `json:"roles"`
}

// ForgotPasswordRequest is the body of POST /password/forgot
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the body of POST /password/reset
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// StatusResponse acknowledges an operation without a result
type StatusResponse struct {
	Status string `json:"status"`
}

// APIKeyResponse carries a freshly generated API key
type APIKeyResponse struct {
	APIKey string `json:"api_key"`
}

// MeResponse describes the authenticated user
type MeResponse struct {
	User   models.UserSummary `json:"user"`
	Roles  []models.Role      `json:"roles"`
	Method string             `json:"method"`
}

// GitHubLoginResponse carries the GitHub authorization URL
type GitHubLoginResponse struct {
	URL string `json:"url"`
}
