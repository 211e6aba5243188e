package fireboard

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joshp123/gohome-fireboard/internal/config"
	"github.com/joshp123/gohome-fireboard/internal/session"
)

const (
	DefaultBaseURL        = "https://fireboard.io/api"
	defaultScanInterval   = 60 * time.Second
	defaultRequestTimeout = 10 * time.Second
	defaultDeviceCacheTTL = 5 * time.Minute
	defaultDiscoveryRetry = 10 * time.Minute
)

// Config defines runtime configuration for the Fireboard client.
type Config struct {
	BaseURL            string
	Credentials        session.Credentials
	ScanInterval       time.Duration
	RequestTimeout     time.Duration
	DeviceCacheTTL     time.Duration
	DiscoveryRetry     time.Duration
	MaxRequestsPerHour int
	SessionStore       config.SessionStoreConfig
}

func ConfigFrom(cfg *config.FireboardConfig) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("fireboard config is required")
	}

	creds := session.Credentials{
		APIKey:   strings.TrimSpace(cfg.APIKey),
		Username: strings.TrimSpace(cfg.Username),
		Password: cfg.Password,
	}
	if creds.APIKey == "" && cfg.APIKeyFile != "" {
		key, err := session.ReadSecretFile(cfg.APIKeyFile)
		if err != nil {
			return Config{}, fmt.Errorf("read fireboard api_key_file: %w", err)
		}
		creds.APIKey = key
	}
	if creds.Password == "" && cfg.PasswordFile != "" {
		pw, err := session.ReadSecretFile(cfg.PasswordFile)
		if err != nil {
			return Config{}, fmt.Errorf("read fireboard password_file: %w", err)
		}
		creds.Password = pw
	}
	if creds.UsesAPIKey() == creds.CanLogin() {
		return Config{}, fmt.Errorf("fireboard requires either api_key or username and password")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Config{}, fmt.Errorf("fireboard api_url %q must be an http(s) url", cfg.APIURL)
	}

	return Config{
		BaseURL:            baseURL,
		Credentials:        creds,
		ScanInterval:       seconds(cfg.ScanIntervalSeconds, defaultScanInterval),
		RequestTimeout:     seconds(cfg.RequestTimeoutSeconds, defaultRequestTimeout),
		DeviceCacheTTL:     seconds(cfg.DeviceCacheTTLSeconds, defaultDeviceCacheTTL),
		DiscoveryRetry:     seconds(cfg.DiscoveryRetrySeconds, defaultDiscoveryRetry),
		MaxRequestsPerHour: cfg.MaxRequestsPerHour,
		SessionStore:       cfg.SessionStore,
	}, nil
}

func seconds(v int, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return time.Duration(v) * time.Second
}
