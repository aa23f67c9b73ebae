package client

// API paths served by the orgpulse server
const (
	PathCurrentUser = "/api/v1/users/current"
	PathLogin       = "/api/v1/users/login"
	PathLogout      = "/api/v1/users/logout"
	PathOAuth       = "/api/v1/users/oauth"
	PathToken       = "/api/v1/users/token"
	PathSSOMethods  = "/api/v1/sso/methods"
)

// User represents the authenticated user
type User struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
}

// Project represents a project the user is a member of
type Project struct {
	ID   uint64 `json:"id"`
	Name string `json:"name,omitempty"`
}

// SessionResponse is the payload of GET /api/v1/users/current.
// Both fields are absent for an anonymous session.
type SessionResponse struct {
	User     *User     `json:"user,omitempty"`
	Projects []Project `json:"projects,omitempty"`
}

// SSOMethod describes a single sign-on provider
type SSOMethod struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// SSOMethodsResponse is the payload of GET /api/v1/sso/methods
type SSOMethodsResponse struct {
	Methods []SSOMethod `json:"methods"`
}

// SSOQuery describes the request used to fetch SSO methods.
// Two equal queries always yield the same request.
type SSOQuery struct {
	Path string
}

// DefaultSSOQuery returns the query for the server's SSO methods endpoint
func DefaultSSOQuery() SSOQuery {
	return SSOQuery{Path: PathSSOMethods}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
