package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	// Database Configuration
	Database DatabaseConfig

	// Redis Configuration
	Redis RedisConfig

	// Logging Configuration
	Logging LoggingConfig

	// Server Configuration
	Server ServerConfig

	// Worker Configuration
	Worker WorkerConfig

	// BootstrapPath is the YAML file declaring users, projects and SSO methods
	BootstrapPath string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Address string // Redis address (host:port)
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// ServerConfig holds API server configuration
type ServerConfig struct {
	ListenAddr string
	SecretKey  string
	// SiteAddr is the public origin of the web UI, used for CORS and cookies
	SiteAddr string
	TokenTTL time.Duration
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	// PruneSchedule is a 5-field cron expression
	PruneSchedule string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	tokenTTL := 7 * 24 * time.Hour
	if raw := os.Getenv("TOKEN_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
		}
		tokenTTL = d
	}

	return &Config{
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", "orgpulse.sqlite"),
		},
		Redis: RedisConfig{
			Address: getEnv("REDIS_ADDRESS", "localhost:6379"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Server: ServerConfig{
			ListenAddr: getEnv("LISTEN_ADDR", ":14318"),
			SecretKey:  os.Getenv("SECRET_KEY"),
			SiteAddr:   getEnv("SITE_ADDR", "http://localhost:14318"),
			TokenTTL:   tokenTTL,
		},
		Worker: WorkerConfig{
			PruneSchedule: getEnv("PRUNE_SCHEDULE", "0 * * * *"),
		},
		BootstrapPath: getEnv("ORGPULSE_CONFIG", "orgpulse.yaml"),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Bootstrap is the declarative content synced into the database at startup
type Bootstrap struct {
	Users      []BootstrapUser      `yaml:"users"`
	Projects   []BootstrapProject   `yaml:"projects"`
	SSOMethods []BootstrapSSOMethod `yaml:"sso_methods"`
	Auth       BootstrapAuth        `yaml:"auth"`
}

// BootstrapUser declares a password user
type BootstrapUser struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Email    string `yaml:"email"`
	Avatar   string `yaml:"avatar"`
}

// BootstrapProject declares a project and its members by username
type BootstrapProject struct {
	ID      uint64   `yaml:"id"`
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
}

// BootstrapSSOMethod declares a single sign-on method
type BootstrapSSOMethod struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	Enabled *bool  `yaml:"enabled"`
}

// IsEnabled reports whether the method is enabled, defaulting to true
func (m BootstrapSSOMethod) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// BootstrapAuth holds identity provider settings
type BootstrapAuth struct {
	OAuth OAuthConfig `yaml:"oauth"`
}

// OAuthConfig describes the CAS-style ticket validation endpoint
type OAuthConfig struct {
	Host      string `yaml:"host"`
	TokenPath string `yaml:"token_path"`
}

// Enabled reports whether ticket validation is configured
func (c OAuthConfig) Enabled() bool {
	return c.Host != ""
}

// LoadBootstrap reads the bootstrap file. A missing file yields an empty bootstrap.
func LoadBootstrap(path string) (*Bootstrap, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Bootstrap{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read bootstrap file: %w", err)
	}

	return ParseBootstrap(data)
}

// ParseBootstrap parses and validates bootstrap YAML
func ParseBootstrap(data []byte) (*Bootstrap, error) {
	var b Bootstrap
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse bootstrap file: %w", err)
	}

	if b.Auth.OAuth.TokenPath == "" {
		b.Auth.OAuth.TokenPath = "/serviceValidate"
	}

	usernames := make(map[string]bool, len(b.Users))
	for _, u := range b.Users {
		if u.Username == "" {
			return nil, fmt.Errorf("bootstrap user without username")
		}
		if usernames[u.Username] {
			return nil, fmt.Errorf("duplicate bootstrap user '%s'", u.Username)
		}
		usernames[u.Username] = true
	}

	projectIDs := make(map[uint64]bool, len(b.Projects))
	for _, p := range b.Projects {
		if p.ID == 0 {
			return nil, fmt.Errorf("project '%s' must have a positive id", p.Name)
		}
		if projectIDs[p.ID] {
			return nil, fmt.Errorf("duplicate project id %d", p.ID)
		}
		projectIDs[p.ID] = true
	}

	return &b, nil
}
