package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the server and CLI look for configuration.
const DefaultPath = "/etc/gohome/config.yaml"

const (
	MinScanIntervalSeconds     = 30
	MaxScanIntervalSeconds     = 300
	DefaultScanIntervalSeconds = 60
)

// Config is the root GoHome configuration.
type Config struct {
	Core      CoreConfig       `yaml:"core"`
	Logging   LoggingConfig    `yaml:"logging"`
	MQTT      MQTTConfig       `yaml:"mqtt"`
	Fireboard *FireboardConfig `yaml:"fireboard"`
}

// CoreConfig holds listener addresses and plugin selection.
type CoreConfig struct {
	GRPCAddr     string   `yaml:"grpc_addr"`
	HTTPAddr     string   `yaml:"http_addr"`
	DashboardDir string   `yaml:"dashboard_dir"`
	Plugins      []string `yaml:"plugins"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MQTTConfig contains broker settings for the Home Assistant bridge.
type MQTTConfig struct {
	Enabled         bool             `yaml:"enabled"`
	Broker          MQTTBrokerConfig `yaml:"broker"`
	Auth            MQTTAuthConfig   `yaml:"auth"`
	QoS             int              `yaml:"qos"`
	DiscoveryPrefix string           `yaml:"discovery_prefix"`
	BaseTopic       string           `yaml:"base_topic"`
}

type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// FireboardConfig configures the Fireboard cloud plugin.
type FireboardConfig struct {
	APIURL                string             `yaml:"api_url"`
	APIKey                string             `yaml:"api_key"`
	APIKeyFile            string             `yaml:"api_key_file"`
	Username              string             `yaml:"username"`
	Password              string             `yaml:"password"`
	PasswordFile          string             `yaml:"password_file"`
	ScanIntervalSeconds   int                `yaml:"scan_interval_seconds"`
	RequestTimeoutSeconds int                `yaml:"request_timeout_seconds"`
	DeviceCacheTTLSeconds int                `yaml:"device_cache_ttl_seconds"`
	DiscoveryRetrySeconds int                `yaml:"discovery_retry_seconds"`
	MaxRequestsPerHour    int                `yaml:"max_requests_per_hour"`
	SessionStore          SessionStoreConfig `yaml:"session_store"`
}

// SessionStoreConfig points at optional token persistence.
type SessionStoreConfig struct {
	Path              string `yaml:"path"`
	BlobEndpoint      string `yaml:"blob_endpoint"`
	BlobBucket        string `yaml:"blob_bucket"`
	BlobPrefix        string `yaml:"blob_prefix"`
	BlobAccessKeyFile string `yaml:"blob_access_key_file"`
	BlobSecretKeyFile string `yaml:"blob_secret_key_file"`
	BlobRegion        string `yaml:"blob_region"`
}

// BlobEnabled reports whether an S3 mirror is configured.
func (s SessionStoreConfig) BlobEnabled() bool {
	return strings.TrimSpace(s.BlobEndpoint) != "" && strings.TrimSpace(s.BlobBucket) != ""
}

// Load reads the YAML file at path over defaults, applies env overrides and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes. Exposed for tests and the CLI.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Fireboard != nil {
		cfg.Fireboard.applyDefaults()
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with listener, logging and MQTT defaults.
func Default() *Config {
	return &Config{
		Core: CoreConfig{
			GRPCAddr: ":9000",
			HTTPAddr: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "gohome-fireboard",
			},
			QoS:             1,
			DiscoveryPrefix: "homeassistant",
			BaseTopic:       "gohome/fireboard",
		},
	}
}

func (f *FireboardConfig) applyDefaults() {
	if f.APIURL == "" {
		f.APIURL = "https://fireboard.io/api"
	}
	if f.ScanIntervalSeconds == 0 {
		f.ScanIntervalSeconds = DefaultScanIntervalSeconds
	}
	if f.RequestTimeoutSeconds == 0 {
		f.RequestTimeoutSeconds = 10
	}
	if f.DeviceCacheTTLSeconds == 0 {
		f.DeviceCacheTTLSeconds = 300
	}
	if f.DiscoveryRetrySeconds == 0 {
		f.DiscoveryRetrySeconds = 600
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GOHOME_GRPC_ADDR"); v != "" {
		cfg.Core.GRPCAddr = v
	}
	if v := os.Getenv("GOHOME_HTTP_ADDR"); v != "" {
		cfg.Core.HTTPAddr = v
	}
	if v := os.Getenv("GOHOME_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("GOHOME_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GOHOME_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("GOHOME_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GOHOME_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	fireboardEnv := map[string]*string{}
	if cfg.Fireboard != nil {
		fireboardEnv = map[string]*string{
			"GOHOME_FIREBOARD_API_URL":  &cfg.Fireboard.APIURL,
			"GOHOME_FIREBOARD_API_KEY":  &cfg.Fireboard.APIKey,
			"GOHOME_FIREBOARD_USERNAME": &cfg.Fireboard.Username,
			"GOHOME_FIREBOARD_PASSWORD": &cfg.Fireboard.Password,
		}
	}
	for key, target := range fireboardEnv {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Core.GRPCAddr == "" {
		errs = append(errs, "core.grpc_addr is required")
	}
	if c.Core.HTTPAddr == "" {
		errs = append(errs, "core.http_addr is required")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if strings.TrimSpace(c.MQTT.BaseTopic) == "" {
			errs = append(errs, "mqtt.base_topic is required")
		}
	}

	if c.Fireboard != nil {
		errs = append(errs, c.Fireboard.validate()...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (f *FireboardConfig) validate() []string {
	var errs []string

	u, err := url.Parse(f.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, "fireboard.api_url must be an http(s) URL")
	}

	hasKey := f.APIKey != "" || f.APIKeyFile != ""
	hasUser := f.Username != ""
	hasPassword := f.Password != "" || f.PasswordFile != ""
	switch {
	case hasKey && (hasUser || hasPassword):
		errs = append(errs, "fireboard: set either api_key or username/password, not both")
	case !hasKey && !hasUser:
		errs = append(errs, "fireboard: api_key or username/password is required")
	case hasUser && !hasPassword:
		errs = append(errs, "fireboard.password is required with username")
	}

	if f.ScanIntervalSeconds < MinScanIntervalSeconds || f.ScanIntervalSeconds > MaxScanIntervalSeconds {
		errs = append(errs, fmt.Sprintf("fireboard.scan_interval_seconds must be between %d and %d", MinScanIntervalSeconds, MaxScanIntervalSeconds))
	}
	if f.RequestTimeoutSeconds < 0 {
		errs = append(errs, "fireboard.request_timeout_seconds must not be negative")
	}
	if f.DeviceCacheTTLSeconds < 0 {
		errs = append(errs, "fireboard.device_cache_ttl_seconds must not be negative")
	}
	if f.MaxRequestsPerHour < 0 {
		errs = append(errs, "fireboard.max_requests_per_hour must not be negative")
	}

	store := f.SessionStore
	if store.BlobEndpoint != "" || store.BlobBucket != "" {
		if !store.BlobEnabled() || store.BlobAccessKeyFile == "" || store.BlobSecretKeyFile == "" {
			errs = append(errs, "fireboard.session_store: blob_endpoint, blob_bucket, blob_access_key_file and blob_secret_key_file go together")
		}
	}

	return errs
}
