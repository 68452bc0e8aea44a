package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config represents configuration data for the JAR console.
type Config struct {
	PanelURL              string `yaml:"panel_url" validate:"required,url"`
	APIKey                string `yaml:"api_key"`
	ListenAddr            string `yaml:"listen_addr" validate:"required"`
	DataDirectory         string `yaml:"data_directory" validate:"required"`
	HistoryLimit          int    `yaml:"history_limit" validate:"min=1,max=100000"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds" validate:"min=0,max=300"`
	LogLevel              string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFile               string `yaml:"log_file"`
}

// RequestTimeout returns the per-request timeout; zero leaves the transport default in place.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// HistoryPath is the file holding recorded status listings.
func (c Config) HistoryPath() string {
	return filepath.Join(c.DataDirectory, "jar_history.json")
}

// DefaultConfig returns sensible defaults in case no configuration file is provided.
func DefaultConfig() Config {
	return Config{
		PanelURL:      "http://127.0.0.1:9999/api/v1",
		ListenAddr:    ":8080",
		DataDirectory: filepath.Join(".dist", "data"),
		HistoryLimit:  500,
		LogLevel:      "info",
	}
}

// Load reads configuration from yaml file. Missing files fall back to defaults.
// JARCONSOLE_PANEL_URL and JARCONSOLE_API_KEY override the file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(content, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.PanelURL = getEnv("JARCONSOLE_PANEL_URL", cfg.PanelURL)
	cfg.APIKey = getEnv("JARCONSOLE_API_KEY", cfg.APIKey)
	cfg.PanelURL = strings.TrimSuffix(strings.TrimSpace(cfg.PanelURL), "/")

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultConfig().ListenAddr
	}
	if cfg.DataDirectory == "" {
		cfg.DataDirectory = DefaultConfig().DataDirectory
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultConfig().HistoryLimit
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultConfig().LogLevel
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
