package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/manthysbr/isamurai-go/internal/core/domain"
)

const credentialsKey = "credentials"

// SettingsRepository is the minimal DB interface for settings persistence.
type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SaveSetting(ctx context.Context, key string, value string) error
}

// Credentials are the account details saved by `isamurai login`.
type Credentials struct {
	APIKey  string    `json:"api_key"`
	BaseURL string    `json:"base_url,omitempty"`
	SavedAt time.Time `json:"saved_at"`
}

// CredentialStore keeps the API key encrypted at rest and decrypted in
// memory.
type CredentialStore struct {
	mu     sync.RWMutex
	logger *slog.Logger
	secret *SecretKey
	repo   SettingsRepository
	creds  Credentials
}

// NewCredentialStore loads any saved credentials. A database without saved
// credentials yields an empty store.
func NewCredentialStore(ctx context.Context, logger *slog.Logger, repo SettingsRepository, secret *SecretKey) (*CredentialStore, error) {
	store := &CredentialStore{
		logger: logger,
		secret: secret,
		repo:   repo,
	}

	creds, err := store.load(ctx)
	switch {
	case errors.Is(err, domain.ErrSettingNotFound):
		logger.Debug("no saved credentials")
	case err != nil:
		return nil, err
	default:
		store.creds = creds
	}
	return store, nil
}

// Credentials returns the decrypted credentials.
func (s *CredentialStore) Credentials() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// Masked returns credentials safe to print.
func (s *CredentialStore) Masked() Credentials {
	c := s.Credentials()
	c.APIKey = MaskSecret(c.APIKey)
	return c
}

// Save encrypts and persists update. An empty or masked APIKey keeps the
// stored key, so a masked value echoed back never overwrites it.
func (s *CredentialStore) Save(ctx context.Context, update Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	update.APIKey = strings.TrimSpace(update.APIKey)
	if update.APIKey == "" || isMasked(update.APIKey) {
		update.APIKey = s.creds.APIKey
	}
	if update.APIKey == "" {
		return errors.New("api key is required")
	}
	update.BaseURL = strings.TrimRight(strings.TrimSpace(update.BaseURL), "/")
	if update.SavedAt.IsZero() {
		update.SavedAt = time.Now().UTC()
	}

	enc, err := s.secret.Encrypt(update.APIKey)
	if err != nil {
		return fmt.Errorf("encrypt api key: %w", err)
	}

	raw, err := json.Marshal(storedCredentials{
		EncryptedAPIKey: enc,
		BaseURL:         update.BaseURL,
		SavedAt:         update.SavedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	if err := s.repo.SaveSetting(ctx, credentialsKey, string(raw)); err != nil {
		return err
	}

	s.creds = update
	s.logger.Info("credentials saved", "api_key", MaskSecret(update.APIKey), "base_url", update.BaseURL)
	return nil
}

func (s *CredentialStore) load(ctx context.Context) (Credentials, error) {
	raw, err := s.repo.GetSetting(ctx, credentialsKey)
	if err != nil {
		return Credentials{}, err
	}

	var stored storedCredentials
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return Credentials{}, fmt.Errorf("unmarshal credentials: %w", err)
	}

	creds := Credentials{BaseURL: stored.BaseURL, SavedAt: stored.SavedAt}
	key, err := s.secret.Decrypt(stored.EncryptedAPIKey)
	if err != nil {
		// A rotated secret key leaves the saved key unreadable; behave as logged out.
		s.logger.Warn("failed to decrypt saved API key", "error", err)
	} else {
		creds.APIKey = key
	}
	return creds, nil
}

// storedCredentials is the DB representation with encrypted fields
type storedCredentials struct {
	EncryptedAPIKey string    `json:"encrypted_api_key"`
	BaseURL         string    `json:"base_url,omitempty"`
	SavedAt         time.Time `json:"saved_at"`
}
