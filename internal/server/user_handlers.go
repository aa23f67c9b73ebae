package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/orgpulse/orgpulse/internal/auth"
	"github.com/orgpulse/orgpulse/internal/models"
	"github.com/orgpulse/orgpulse/internal/tasks"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" binding:"required" validate:"username"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token string     `json:"token"`
	User  UserDetail `json:"user"`
}

// UserDetail represents user information returned in responses
type UserDetail struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
}

// ProjectDetail represents a project in responses
type ProjectDetail struct {
	ID   uint64 `json:"id"`
	Name string `json:"name,omitempty"`
}

// CurrentUserResponse is the current session
type CurrentUserResponse struct {
	User     UserDetail      `json:"user"`
	Projects []ProjectDetail `json:"projects"`
}

func newUserDetail(u *models.User) UserDetail {
	return UserDetail{
		Username: u.Username,
		Email:    u.Email,
		Avatar:   u.AvatarURL(),
	}
}

// getCurrentUser returns the logged in user and their projects
func (s *Server) getCurrentUser(c *gin.Context) {
	session, _ := GetSessionData(c)

	var user models.User
	if err := models.FindByID(s.db, session.UserID, &user); err != nil {
		respondWithError(c, s.logger, http.StatusUnauthorized, err, "User not found")
		return
	}

	projects, err := models.ProjectsForUser(s.db, user.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to list projects")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	resp := CurrentUserResponse{
		User:     newUserDetail(&user),
		Projects: make([]ProjectDetail, 0, len(projects)),
	}
	for _, p := range projects {
		resp.Projects = append(resp.Projects, ProjectDetail{ID: p.ID, Name: p.Name})
	}

	c.JSON(http.StatusOK, resp)
}

// getToken shows the token of the current session, so a browser SSO login
// can be handed over to the CLI
func (s *Server) getToken(c *gin.Context) {
	session, _ := GetSessionData(c)
	c.JSON(http.StatusOK, gin.H{
		"token":      session.Token,
		"expires_at": session.ExpiresAt,
	})
}

// login authenticates with username and password
func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid username"})
		return
	}

	user, err := models.FindUserByUsername(s.db, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}

	token, ok := s.issueSession(c, user, auth.AuthMethodPassword)
	if !ok {
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("User logged in")

	c.JSON(http.StatusOK, LoginResponse{
		Token: token,
		User:  newUserDetail(user),
	})
}

// logout revokes the current token if there is one. It always succeeds so
// clients can clear local state unconditionally.
func (s *Server) logout(c *gin.Context) {
	s.clearSessionCookie(c)

	session, ok := GetSessionData(c)
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}

	if err := models.RevokeSession(s.db, session.TokenID, session.UserID, session.ExpiresAt); err != nil {
		s.logger.Error().Err(err).Str("user_id", session.UserID).Msg("Failed to revoke session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log out"})
		return
	}

	// Best effort: the scheduled prune catches anything this misses
	if s.enqueuer != nil {
		if _, err := tasks.EnqueuePruneAt(c.Request.Context(), s.enqueuer, session.ExpiresAt.Add(time.Minute)); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to schedule revoked session pruning")
		}
	}

	s.logger.Info().Str("user_id", session.UserID).Str("username", session.Username).Msg("User logged out")
	c.Status(http.StatusNoContent)
}

// oauthCallback is the service URL the identity provider redirects to with a
// ticket. It validates the ticket, signs the user in and redirects on.
func (s *Server) oauthCallback(c *gin.Context) {
	if s.tickets == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "SSO login is not configured"})
		return
	}

	ticket := c.Query("ticket")
	if ticket == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing ticket"})
		return
	}
	redirect := c.Query("redirect")

	identity, err := s.tickets.Validate(c.Request.Context(), s.serviceURL(c, redirect), ticket)
	if err != nil {
		respondWithError(c, s.logger, http.StatusUnauthorized, err, "SSO login failed")
		return
	}

	user, err := models.UpsertSSOUser(s.db, identity.Username, identity.Email)
	if err != nil {
		s.logger.Error().Err(err).Str("username", identity.Username).Msg("Failed to upsert SSO user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if _, ok := s.issueSession(c, user, auth.AuthMethodOAuth); !ok {
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("User logged in with SSO")

	c.Redirect(http.StatusFound, safeRedirect(redirect))
}

// issueSession creates a token for user and sets the session cookie
func (s *Server) issueSession(c *gin.Context, user *models.User, method string) (string, bool) {
	token, claims, err := auth.GenerateToken(user.ID, user.Username, method, s.config.Server.TokenTTL)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return "", false
	}

	maxAge := int(time.Until(claims.ExpiresAt.Time).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, maxAge, "/", "", s.secureCookies(), true)

	return token, true
}

func (s *Server) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", s.secureCookies(), true)
}

func (s *Server) secureCookies() bool {
	return strings.HasPrefix(s.config.Server.SiteAddr, "https://")
}

// serviceURL rebuilds the URL the identity provider redirected to, minus the
// ticket. It must match the service the login was started with, so the public
// site address wins over whatever host the request reached us on.
func (s *Server) serviceURL(c *gin.Context, redirect string) string {
	return s.publicOrigin(c) + c.Request.URL.Path + "?redirect=" + encodeComponent(redirect)
}

// publicOrigin is the configured site address, or the request's own origin
// when none is configured
func (s *Server) publicOrigin(c *gin.Context) string {
	if site := strings.TrimRight(s.config.Server.SiteAddr, "/"); site != "" {
		return site
	}

	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + c.Request.Host
}

// safeRedirect only allows local absolute paths
func safeRedirect(redirect string) string {
	if !strings.HasPrefix(redirect, "/") || strings.HasPrefix(redirect, "//") || strings.HasPrefix(redirect, "/\\") {
		return "/"
	}
	return redirect
}

func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
