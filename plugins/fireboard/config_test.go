package fireboard

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/gohome-fireboard/internal/config"
)

func TestConfigFromDefaults(t *testing.T) {
	cfg, err := ConfigFrom(&config.FireboardConfig{APIKey: " k "})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, "k", cfg.Credentials.APIKey)
	assert.Equal(t, 60*time.Second, cfg.ScanInterval)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5*time.Minute, cfg.DeviceCacheTTL)
	assert.Equal(t, 10*time.Minute, cfg.DiscoveryRetry)
}

func TestConfigFromSecretFiles(t *testing.T) {
	dir := t.TempDir()
	pwFile := filepath.Join(dir, "password")
	require.NoError(t, os.WriteFile(pwFile, []byte("s3cret\n"), 0o600))

	cfg, err := ConfigFrom(&config.FireboardConfig{
		APIURL:              "http://localhost:8000/api/",
		Username:            "a@b.com",
		PasswordFile:        pwFile,
		ScanIntervalSeconds: 45,
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/api", cfg.BaseURL)
	assert.Equal(t, "s3cret", cfg.Credentials.Password)
	assert.Equal(t, 45*time.Second, cfg.ScanInterval)
	assert.False(t, cfg.Credentials.UsesAPIKey())

	_, err = ConfigFrom(&config.FireboardConfig{Username: "a", PasswordFile: filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestConfigFromRejectsBadInput(t *testing.T) {
	cases := map[string]*config.FireboardConfig{
		"nil":        nil,
		"no creds":   {},
		"both modes": {APIKey: "k", Username: "u", Password: "p"},
		"bad url":    {APIKey: "k", APIURL: "fireboard.io"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ConfigFrom(in)
			assert.Error(t, err)
		})
	}
}
