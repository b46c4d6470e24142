package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manthysbr/isamurai-go/internal/core/domain"
)

type memSettings struct {
	values map[string]string
	getErr error
}

func newMemSettings() *memSettings {
	return &memSettings{values: map[string]string{}}
}

func (m *memSettings) GetSetting(ctx context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrSettingNotFound, key)
	}
	return v, nil
}

func (m *memSettings) SaveSetting(ctx context.Context, key string, value string) error {
	m.values[key] = value
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSecret(t *testing.T, passphrase string) *SecretKey {
	t.Helper()
	sk, err := NewSecretKey(passphrase, "")
	require.NoError(t, err)
	return sk
}

func TestCredentialStore_SaveAndReload(t *testing.T) {
	ctx := context.Background()
	repo := newMemSettings()
	secret := testSecret(t, "passphrase")

	store, err := NewCredentialStore(ctx, discardLogger(), repo, secret)
	require.NoError(t, err)
	assert.Empty(t, store.Credentials().APIKey)

	require.NoError(t, store.Save(ctx, Credentials{APIKey: " isk_live_abcdef ", BaseURL: "https://eu.isamur.ai/api/"}))

	raw := repo.values[credentialsKey]
	assert.NotContains(t, raw, "isk_live_abcdef", "key is encrypted at rest")
	assert.Contains(t, raw, `"encrypted_api_key":"enc:`)

	reloaded, err := NewCredentialStore(ctx, discardLogger(), repo, secret)
	require.NoError(t, err)
	creds := reloaded.Credentials()
	assert.Equal(t, "isk_live_abcdef", creds.APIKey)
	assert.Equal(t, "https://eu.isamur.ai/api", creds.BaseURL)
	assert.False(t, creds.SavedAt.IsZero())

	assert.Equal(t, "****cdef", reloaded.Masked().APIKey)
}

func TestCredentialStore_MaskedUpdateKeepsKey(t *testing.T) {
	ctx := context.Background()
	store, err := NewCredentialStore(ctx, discardLogger(), newMemSettings(), testSecret(t, "p"))
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, Credentials{APIKey: "isk_original"}))
	require.NoError(t, store.Save(ctx, Credentials{APIKey: store.Masked().APIKey, BaseURL: "https://x.test/api"}))

	assert.Equal(t, "isk_original", store.Credentials().APIKey)
	assert.Equal(t, "https://x.test/api", store.Credentials().BaseURL)
}

func TestCredentialStore_RequiresKey(t *testing.T) {
	ctx := context.Background()
	repo := newMemSettings()
	store, err := NewCredentialStore(ctx, discardLogger(), repo, testSecret(t, "p"))
	require.NoError(t, err)

	assert.Error(t, store.Save(ctx, Credentials{APIKey: "  "}))
	assert.Empty(t, repo.values)
}

func TestCredentialStore_RotatedSecretActsLoggedOut(t *testing.T) {
	ctx := context.Background()
	repo := newMemSettings()

	store, err := NewCredentialStore(ctx, discardLogger(), repo, testSecret(t, "old"))
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, Credentials{APIKey: "isk_old", BaseURL: "https://a.test"}))

	rotated, err := NewCredentialStore(ctx, discardLogger(), repo, testSecret(t, "new"))
	require.NoError(t, err)
	assert.Empty(t, rotated.Credentials().APIKey)
	assert.Equal(t, "https://a.test", rotated.Credentials().BaseURL)
}

func TestCredentialStore_LoadErrors(t *testing.T) {
	ctx := context.Background()

	broken := newMemSettings()
	broken.getErr = errors.New("disk on fire")
	_, err := NewCredentialStore(ctx, discardLogger(), broken, testSecret(t, "p"))
	assert.ErrorContains(t, err, "disk on fire")

	garbled := newMemSettings()
	garbled.values[credentialsKey] = "{not json"
	_, err = NewCredentialStore(ctx, discardLogger(), garbled, testSecret(t, "p"))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "unmarshal credentials"))
}
