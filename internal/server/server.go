// Package server serves the orgpulse HTTP API: the current session, password
// and SSO login, logout and the list of SSO methods.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/orgpulse/orgpulse/internal/auth"
	"github.com/orgpulse/orgpulse/internal/config"
	"github.com/orgpulse/orgpulse/internal/tasks"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._@-]{1,64}$`)

// Server represents the HTTP server
type Server struct {
	router    *gin.Engine
	db        *gorm.DB
	config    *config.Config
	oauth     config.OAuthConfig
	logger    zerolog.Logger
	validator *validator.Validate
	enqueuer  tasks.Enqueuer
	tickets   TicketValidator
	version   string
}

// Option configures a Server
type Option func(*Server)

// WithEnqueuer sets the task queue used to schedule revocation pruning
func WithEnqueuer(q tasks.Enqueuer) Option {
	return func(s *Server) {
		s.enqueuer = q
	}
}

// WithOAuth enables SSO ticket validation
func WithOAuth(cfg config.OAuthConfig) Option {
	return func(s *Server) {
		s.oauth = cfg
	}
}

// WithTicketValidator overrides the ticket validator built from the OAuth config
func WithTicketValidator(v TicketValidator) Option {
	return func(s *Server) {
		s.tickets = v
	}
}

// New creates a new server instance on an opened and migrated database
func New(cfg *config.Config, db *gorm.DB, zlog zerolog.Logger, version string, opts ...Option) (*Server, error) {
	secret := cfg.Server.SecretKey
	if secret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		secret = hex.EncodeToString(b)
		zlog.Warn().Msg("SECRET_KEY not set - using a random secret, sessions will not survive a restart")
	}
	auth.InitializeJWT(secret)

	validate, err := newValidator()
	if err != nil {
		return nil, err
	}

	server := &Server{
		db:        db,
		config:    cfg,
		logger:    zlog,
		validator: validate,
		version:   version,
	}
	for _, opt := range opts {
		opt(server)
	}
	if server.tickets == nil && server.oauth.Enabled() {
		server.tickets = NewCASValidator(server.oauth, nil)
	}

	server.setupRouter()

	return server, nil
}

// newValidator returns a validator with the custom request rules registered
func newValidator() (*validator.Validate, error) {
	validate := validator.New()
	err := validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register username validation: %w", err)
	}
	return validate, nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{strings.TrimRight(s.config.Server.SiteAddr, "/")},
		AllowMethods:     []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s.router.GET("/health", s.healthCheck)

	api := s.router.Group("/api/v1")
	{
		// Public endpoints
		api.POST("/users/login", s.login)
		api.GET("/users/oauth", s.oauthCallback)
		api.GET("/sso/methods", s.listSSOMethods)

		// Logout works with or without a valid session
		api.POST("/users/logout", SessionMiddleware(s.db, s.logger, false), s.logout)

		authed := api.Group("")
		authed.Use(SessionMiddleware(s.db, s.logger, true))
		{
			authed.GET("/users/current", s.getCurrentUser)
			authed.GET("/users/token", s.getToken)
		}
	}
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "orgpulse-api",
		"version":   s.version,
	})
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until ctx is done, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := s.config.Server.ListenAddr

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	s.logger.Info().Msg("Server shutdown complete")
	return nil
}
