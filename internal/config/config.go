// Package config resolves CLI settings from the environment, an optional
// .env file and the encrypted credential store.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/manthysbr/isamurai-go/internal/core/domain"
	"github.com/manthysbr/isamurai-go/pkg/isamurai"
)

// Load reads envFile (when it exists) into the process environment, then
// builds the configuration from ISAMURAI_* and LOG_* variables. Variables
// already set in the environment win over the file.
func Load(envFile string) (*domain.AppConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	cfg := domain.DefaultConfig(DataDir())

	cfg.API.APIKey = strings.TrimSpace(getEnv("ISAMURAI_API_KEY", ""))
	cfg.API.BaseURL = getEnv("ISAMURAI_BASE_URL", "")
	cfg.Storage.DBPath = getEnv("ISAMURAI_DB_PATH", cfg.Storage.DBPath)
	cfg.Storage.SecretKey = getEnv("ISAMURAI_SECRET_KEY", "")
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	var err error
	if cfg.API.PollInterval, err = getEnvAsDuration("ISAMURAI_POLL_INTERVAL", cfg.API.PollInterval); err != nil {
		return nil, err
	}
	if cfg.API.Timeout, err = getEnvAsDuration("ISAMURAI_TIMEOUT", cfg.API.Timeout); err != nil {
		return nil, err
	}
	if cfg.API.RateLimit, err = getEnvAsFloat("ISAMURAI_RATE_LIMIT", cfg.API.RateLimit); err != nil {
		return nil, err
	}
	if cfg.API.RateBurst, err = getEnvAsInt("ISAMURAI_RATE_BURST", cfg.API.RateBurst); err != nil {
		return nil, err
	}
	if cfg.API.ValidateResponses, err = getEnvAsBool("ISAMURAI_VALIDATE_RESPONSES", false); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyCredentials fills the API key and base URL from saved credentials
// where the environment left them empty.
func ApplyCredentials(cfg *domain.AppConfig, creds Credentials) {
	if cfg.API.APIKey == "" {
		cfg.API.APIKey = creds.APIKey
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = creds.BaseURL
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = isamurai.DefaultBaseURL
	}
}

// DataDir is where the history database and generated secret key live.
func DataDir() string {
	if d := os.Getenv("ISAMURAI_HOME"); d != "" {
		return d
	}
	return filepath.Join(homeDir(), ".isamurai")
}

func homeDir() string {
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return h
	}
	return os.TempDir()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s", "2m") or bare seconds ("90").
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		raw = strconv.FormatFloat(secs, 'f', -1, 64) + "s"
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, os.Getenv(key))
	}
	return d, nil
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, raw)
	}
	return v, nil
}

func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s: invalid number %q", key, raw)
	}
	return v, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, raw)
	}
	return v, nil
}
