package dto

import (
	"time"

	"github.com/zero71st/farmgate/internal/config"
	"github.com/zero71st/farmgate/internal/security/domain"
	"github.com/zero71st/farmgate/internal/session"
	userDomain "github.com/zero71st/farmgate/internal/user/domain"
)

// LoginResponse contains the result of an interactive login.
// SECURITY: The API key is only returned once and must be saved securely.
type LoginResponse struct {
	APIKey           string     `json:"api_key"` //nolint:gosec // returned once on login
	SessionID        string     `json:"session_id"`
	Role             string     `json:"role"`
	SessionExpiresAt time.Time  `json:"session_expires_at"`
	KeyExpiresAt     *time.Time `json:"key_expires_at,omitempty"`
}

// IssueKeyResponse contains the result of issuing a new API key.
// SECURITY: The key is only returned once and must be saved securely.
type IssueKeyResponse struct {
	Key       string      `json:"key"` //nolint:gosec // returned once on issuance
	APIKey    KeyResponse `json:"api_key"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
}

// KeyResponse represents an API key in API responses (excludes the digest).
type KeyResponse struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Label      string     `json:"label"`
	Role       string     `json:"role"`
	UsageCount int64      `json:"usage_count"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
}

// MapKeyToResponse converts a domain API key to an API response.
func MapKeyToResponse(key *domain.APIKey) KeyResponse {
	return KeyResponse{
		ID:         key.ID.String(),
		UserID:     key.UserID.String(),
		Label:      key.Label,
		Role:       key.Role,
		UsageCount: key.UsageCount,
		LastUsedAt: key.LastUsedAt,
		ExpiresAt:  key.ExpiresAt,
		IsActive:   key.IsActive,
		CreatedAt:  key.CreatedAt,
	}
}

// ListKeysResponse represents a list of API keys in API responses.
type ListKeysResponse struct {
	Data []KeyResponse `json:"data"`
}

// MapKeysToListResponse converts a slice of domain API keys to a list API response.
func MapKeysToListResponse(keys []*domain.APIKey) ListKeysResponse {
	keyResponses := make([]KeyResponse, 0, len(keys))
	for _, key := range keys {
		keyResponses = append(keyResponses, MapKeyToResponse(key))
	}
	return ListKeysResponse{
		Data: keyResponses,
	}
}

// RevokeAllResponse reports how many keys a bulk revocation touched.
type RevokeAllResponse struct {
	RevokedCount int `json:"revoked_count"`
}

// MeResponse describes the authenticated caller as seen by the pipeline.
type MeResponse struct {
	UserID      string    `json:"user_id"`
	Role        string    `json:"role"`
	Permissions []string  `json:"permissions"`
	SessionID   string    `json:"session_id,omitempty"`
	ClientIP    string    `json:"client_ip"`
	RequestTime time.Time `json:"request_time"`
}

// MapSecurityContextToMeResponse converts a request identity to an API response.
func MapSecurityContextToMeResponse(sc *domain.SecurityContext) MeResponse {
	return MeResponse{
		UserID:      sc.UserID.String(),
		Role:        sc.Role,
		Permissions: sc.Permissions,
		SessionID:   sc.SessionID,
		ClientIP:    sc.ClientIP,
		RequestTime: sc.RequestTime,
	}
}

// UserResponse represents a user in API responses (excludes the password hash).
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// MapUserToResponse converts a domain user to an API response.
func MapUserToResponse(user *userDomain.User) UserResponse {
	return UserResponse{
		ID:        user.ID.String(),
		Username:  user.Username,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
	}
}

// SecurityStatusResponse summarizes the live state of the security pipeline.
type SecurityStatusResponse struct {
	Sessions          session.Stats     `json:"sessions"`
	RateLimitPolicies []RateLimitPolicy `json:"rate_limit_policies"`
	DetailedErrors    bool              `json:"detailed_errors"`
	GeneratedAt       time.Time         `json:"generated_at"`
}

// RateLimitPolicy describes a configured rate-limit policy in the status response.
type RateLimitPolicy struct {
	Name            string   `json:"name"`
	AppliesTo       []string `json:"applies_to"`
	RequestsPerHour int      `json:"requests_per_hour"`
	WindowMinutes   int      `json:"window_minutes"`
}

// MapPoliciesToResponse converts configured policies to status response entries.
func MapPoliciesToResponse(policies []config.RateLimitPolicy) []RateLimitPolicy {
	out := make([]RateLimitPolicy, 0, len(policies))
	for _, p := range policies {
		out = append(out, RateLimitPolicy{
			Name:            p.Name,
			AppliesTo:       p.AppliesTo,
			RequestsPerHour: p.RequestsPerHour,
			WindowMinutes:   p.WindowMinutes,
		})
	}
	return out
}
