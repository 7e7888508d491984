package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Concept2 Concept2Config `json:"concept2"`
	Sync     SyncConfig     `json:"sync"`
}

// Concept2Config holds the logbook API credentials
type Concept2Config struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	BaseURL      string `json:"base_url,omitempty"`  // override for testing
	TokenURL     string `json:"token_url,omitempty"` // override for testing
}

// SyncConfig holds sync behavior settings
type SyncConfig struct {
	BudgetMinutes int `json:"budget_minutes"` // wall-clock budget for a whole run
}

// ErrNoConfig is returned when the config file doesn't exist
var ErrNoConfig = errors.New("config file not found")

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Sync: SyncConfig{
			BudgetMinutes: 10,
		},
	}
}

// Load reads the configuration from ~/.ergsync/config.json. Credentials can
// also come from the environment (or a .env file in the working directory):
// CONCEPT2_CLIENT_ID and CONCEPT2_CLIENT_SECRET take precedence over the file.
func Load() (*Config, error) {
	path, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	// A missing .env is fine; the environment may be set directly.
	godotenv.Load()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if cfg, ok := fromEnvOnly(); ok {
			return cfg, nil
		}
		return nil, ErrNoConfig
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnv(&cfg)

	// Apply defaults for missing values
	defaults := DefaultConfig()
	if cfg.Sync.BudgetMinutes == 0 {
		cfg.Sync.BudgetMinutes = defaults.Sync.BudgetMinutes
	}

	return &cfg, nil
}

// applyEnv overrides credentials from the environment.
func applyEnv(cfg *Config) {
	if v := os.Getenv("CONCEPT2_CLIENT_ID"); v != "" {
		cfg.Concept2.ClientID = v
	}
	if v := os.Getenv("CONCEPT2_CLIENT_SECRET"); v != "" {
		cfg.Concept2.ClientSecret = v
	}
}

// fromEnvOnly builds a config purely from the environment, for setups that
// never write a config file.
func fromEnvOnly() (*Config, bool) {
	id := os.Getenv("CONCEPT2_CLIENT_ID")
	secret := os.Getenv("CONCEPT2_CLIENT_SECRET")
	if id == "" || secret == "" {
		return nil, false
	}
	cfg := DefaultConfig()
	cfg.Concept2.ClientID = id
	cfg.Concept2.ClientSecret = secret
	return &cfg, true
}

// Save writes the configuration to ~/.ergsync/config.json
func Save(cfg *Config) error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CreateExample creates an example config file if none exists
func CreateExample() error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}

	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return nil // Config exists, don't overwrite
	}

	example := DefaultConfig()
	example.Concept2 = Concept2Config{
		ClientID:     "YOUR_CLIENT_ID",
		ClientSecret: "YOUR_CLIENT_SECRET",
	}

	return Save(&example)
}

// Validate checks if the config has required fields
func (c *Config) Validate() error {
	if c.Concept2.ClientID == "" || c.Concept2.ClientID == "YOUR_CLIENT_ID" {
		return errors.New("concept2.client_id is required - request API access at https://log.concept2.com/developers")
	}
	if c.Concept2.ClientSecret == "" || c.Concept2.ClientSecret == "YOUR_CLIENT_SECRET" {
		return errors.New("concept2.client_secret is required - request API access at https://log.concept2.com/developers")
	}
	if c.Sync.BudgetMinutes < 0 {
		return fmt.Errorf("sync.budget_minutes must not be negative, got %d", c.Sync.BudgetMinutes)
	}
	return nil
}

// getConfigPath returns the path to the config file
func getConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".ergsync", "config.json"), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".ergsync"), nil
}
