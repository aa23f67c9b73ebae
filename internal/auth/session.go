package auth

import "time"

// Authentication methods recorded on tokens
const (
	AuthMethodPassword = "password"
	AuthMethodOAuth    = "oauth"
)

// SessionData represents the authenticated session context for a request
type SessionData struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	TokenID    string    `json:"token_id"`
	ExpiresAt  time.Time `json:"expires_at"`
	AuthMethod string    `json:"auth_method"` // "password", "oauth"
	Token      string    `json:"-"`
}

// NewSessionData builds the request session from validated claims
func NewSessionData(claims *JWTClaims, token string) *SessionData {
	s := &SessionData{
		UserID:     claims.UserID,
		Username:   claims.Username,
		TokenID:    claims.ID,
		AuthMethod: claims.AuthMethod,
		Token:      token,
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s
}
