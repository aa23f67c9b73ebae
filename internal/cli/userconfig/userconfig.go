package userconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	configDirName  = "orgpulse"
	configFileName = "config.json"
)

// UserConfig represents the user's local configuration stored in ~/.config/orgpulse/config.json
type UserConfig struct {
	SelectedServer string `json:"selected_server"`
	// SelectedProjects maps a server URL to the project id chosen with `orgpulse use`
	SelectedProjects map[string]string `json:"selected_projects,omitempty"`
}

// GetConfigPath returns the path to the user config file
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", configDirName)
	return filepath.Join(configDir, configFileName), nil
}

// Load reads the user configuration file
func Load() (*UserConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	// If config doesn't exist, return empty config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return &UserConfig{}, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read user config file: %w", err)
	}

	var cfg UserConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the user configuration to a file
func Save(cfg *UserConfig) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write user config file: %w", err)
	}

	return nil
}

// SetSelectedServer updates the selected server URL and saves the config
func SetSelectedServer(serverURL string) error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	cfg.SelectedServer = normalize(serverURL)
	return Save(cfg)
}

// GetSelectedServer returns the selected server URL, or empty string if not set
func GetSelectedServer() (string, error) {
	cfg, err := Load()
	if err != nil {
		return "", err
	}

	return cfg.SelectedServer, nil
}

// SetSelectedProject stores the project id for a server. An empty id clears it.
func SetSelectedProject(serverURL, projectID string) error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	key := normalize(serverURL)
	if projectID == "" {
		delete(cfg.SelectedProjects, key)
		return Save(cfg)
	}
	if cfg.SelectedProjects == nil {
		cfg.SelectedProjects = make(map[string]string)
	}
	cfg.SelectedProjects[key] = projectID
	return Save(cfg)
}

// GetSelectedProject returns the project id selected for a server, or empty string
func GetSelectedProject(serverURL string) (string, error) {
	cfg, err := Load()
	if err != nil {
		return "", err
	}

	return cfg.SelectedProjects[normalize(serverURL)], nil
}

func normalize(serverURL string) string {
	return strings.TrimRight(serverURL, "/")
}
