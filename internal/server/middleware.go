package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/orgpulse/orgpulse/internal/auth"
	"github.com/orgpulse/orgpulse/internal/models"
)

const (
	bearerPrefix = "Bearer "
	// SessionCookie carries the token for browser sessions
	SessionCookie = "orgpulse_token"
)

var (
	ErrMissingToken      = errors.New("missing token")
	ErrInvalidAuthFormat = errors.New("invalid authorization header format")
	ErrInvalidToken      = errors.New("invalid token")
	ErrRevokedToken      = errors.New("token revoked")
	ErrUserNotFound      = errors.New("user not found")
)

func setSession(c *gin.Context, sessionData *auth.SessionData) {
	c.Set("session", sessionData)
}

func GetSessionData(c *gin.Context) (*auth.SessionData, bool) {
	session, exists := c.Get("session")
	if !exists {
		return nil, false
	}

	sessionData, ok := session.(*auth.SessionData)
	return sessionData, ok
}

// extractToken reads the bearer token, falling back to the session cookie
func extractToken(c *gin.Context) (string, error) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			return "", ErrInvalidAuthFormat
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
		if token == "" {
			return "", ErrMissingToken
		}
		return token, nil
	}

	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie, nil
	}

	return "", ErrMissingToken
}

func respondWithError(c *gin.Context, log zerolog.Logger, statusCode int, err error, message string) {
	log.Warn().Err(err).Msg(message)
	c.JSON(statusCode, gin.H{"error": message})
	c.Abort()
}

// SessionMiddleware validates the request token. With required set, requests
// without a valid session get 401; otherwise they continue anonymously.
func SessionMiddleware(db *gorm.DB, log zerolog.Logger, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, status, err := authenticate(c, db, log)
		if err != nil {
			if !required {
				c.Next()
				return
			}
			message := "Invalid or expired token"
			switch {
			case errors.Is(err, ErrMissingToken):
				message = "Not logged in"
			case errors.Is(err, ErrInvalidAuthFormat):
				message = "Invalid authorization header format"
			case status == http.StatusInternalServerError:
				message = "Internal server error"
			}
			respondWithError(c, log, status, err, message)
			return
		}

		setSession(c, session)
		c.Next()
	}
}

func authenticate(c *gin.Context, db *gorm.DB, log zerolog.Logger) (*auth.SessionData, int, error) {
	token, err := extractToken(c)
	if err != nil {
		return nil, http.StatusUnauthorized, err
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to validate JWT token")
		return nil, http.StatusUnauthorized, ErrInvalidToken
	}

	revoked, err := models.IsSessionRevoked(db, claims.ID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to check token revocation")
		return nil, http.StatusInternalServerError, err
	}
	if revoked {
		return nil, http.StatusUnauthorized, ErrRevokedToken
	}

	var user models.User
	if err := models.FindByID(db, claims.UserID, &user); err != nil {
		log.Debug().Err(err).Str("user_id", claims.UserID).Msg("User not found")
		return nil, http.StatusUnauthorized, ErrUserNotFound
	}

	return auth.NewSessionData(claims, token), http.StatusOK, nil
}
