package domain

import (
	"path/filepath"
	"time"

	"github.com/manthysbr/isamurai-go/pkg/isamurai"
)

// AppConfig is the resolved CLI configuration.
type AppConfig struct {
	API     APIConfig     `json:"api"`
	Storage StorageConfig `json:"storage"`
	Log     LogConfig     `json:"log"`
}

// APIConfig configures the iSamurai client.
type APIConfig struct {
	APIKey string `json:"api_key"`

	// BaseURL falls back to the saved login URL, then isamurai.DefaultBaseURL.
	BaseURL string `json:"base_url"`

	PollInterval      time.Duration `json:"poll_interval"`
	Timeout           time.Duration `json:"timeout"`
	RateLimit         float64       `json:"rate_limit"` // requests per second, 0 = unlimited
	RateBurst         int           `json:"rate_burst"`
	ValidateResponses bool          `json:"validate_responses"`
}

// StorageConfig locates local state.
type StorageConfig struct {
	DBPath    string `json:"db_path"`
	SecretKey string `json:"-"`
	KeyPath   string `json:"key_path"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json or text
}

// DefaultConfig returns safe defaults rooted at dataDir.
func DefaultConfig(dataDir string) *AppConfig {
	return &AppConfig{
		API: APIConfig{
			PollInterval: isamurai.DefaultPollInterval,
			Timeout:      isamurai.DefaultWaitTimeout,
			RateBurst:    1,
		},
		Storage: StorageConfig{
			DBPath:  filepath.Join(dataDir, "history.db"),
			KeyPath: filepath.Join(dataDir, "secret.key"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
