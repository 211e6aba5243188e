package fireboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/joshp123/gohome-fireboard/internal/rate"
	"github.com/joshp123/gohome-fireboard/internal/session"
)

const (
	providerID      = "fireboard"
	maxResponseSize = 8 << 20
	cacheCleanup    = 10 * time.Minute
	ratelimitPause  = time.Minute
)

// Client talks to the Fireboard cloud API and learns which endpoints work.
// One Client belongs to one configured account.
type Client struct {
	baseURL    string
	auth       *session.Manager
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	entries []cacheEntry
	profile map[string]any

	devices *cache.Cache // device id -> Device
	misses  *cache.Cache // family name or "profile" -> struct{}
}

type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	logger     *slog.Logger
	store      session.Store
	mirror     session.Store
}

func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = client }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = logger }
}

// WithSessionStore overrides the token store built from config.
func WithSessionStore(store session.Store) Option {
	return func(o *clientOptions) { o.store = store }
}

// WithSessionMirror overrides the remote token mirror built from config.
func WithSessionMirror(store session.Store) Option {
	return func(o *clientOptions) { o.mirror = store }
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	o := clientOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	logger := o.logger.With("plugin", providerID)

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.MaxRequestsPerHour > 0 {
		decl := rate.Provider(providerID).
			MaxRequestsPer(rate.Hour, cfg.MaxRequestsPerHour).
			CooldownOn429(ratelimitPause)
		httpClient = rate.WrapHTTP(decl, httpClient)
	}

	if o.store == nil && cfg.SessionStore.Path != "" {
		store, err := session.NewFileStore(cfg.SessionStore.Path)
		if err != nil {
			return nil, err
		}
		o.store = store
	}
	if o.mirror == nil && cfg.SessionStore.BlobEnabled() {
		mirror, err := session.NewS3Store(cfg.SessionStore)
		if err != nil {
			return nil, err
		}
		o.mirror = mirror
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	sessOpts := []session.Option{
		session.WithHTTPClient(&http.Client{Transport: httpClient.Transport, Timeout: timeout}),
		session.WithLogger(o.logger),
	}
	if o.store != nil {
		sessOpts = append(sessOpts, session.WithStore(o.store))
	}
	if o.mirror != nil {
		sessOpts = append(sessOpts, session.WithMirror(o.mirror))
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	auth, err := session.NewManager(providerID, baseURL, cfg.Credentials, sessOpts...)
	if err != nil {
		return nil, err
	}

	ttl := cfg.DeviceCacheTTL
	if ttl <= 0 {
		ttl = defaultDeviceCacheTTL
	}
	retry := cfg.DiscoveryRetry
	if retry <= 0 {
		retry = defaultDiscoveryRetry
	}

	return &Client{
		baseURL:    baseURL,
		auth:       auth,
		httpClient: httpClient,
		timeout:    timeout,
		logger:     logger,
		devices:    cache.New(ttl, cacheCleanup),
		misses:     cache.New(retry, cacheCleanup),
	}, nil
}

// Session exposes the auth manager, mainly for explicit login at validation time.
func (c *Client) Session() *session.Manager {
	return c.auth
}

// Request performs one API call against base/resource. A 2xx returns the
// decoded JSON payload, or nil when the body is not JSON. Other statuses
// return (nil, status, nil). A 401 in credential mode triggers one
// re-authentication and one retry. The error is reserved for auth and
// transport failures.
func (c *Client) Request(ctx context.Context, method, resource string, params url.Values, body any) (any, int, error) {
	payload, status, err := c.do(ctx, method, resource, params, body)
	if err != nil {
		return nil, 0, err
	}
	if status != http.StatusUnauthorized || !c.auth.CanReauthenticate() {
		return payload, status, nil
	}

	c.logger.Info("token rejected, re-authenticating", "resource", resource)
	if err := c.auth.Reauthenticate(ctx); err != nil {
		return nil, status, err
	}
	payload, status, err = c.do(ctx, method, resource, params, body)
	if err != nil {
		return nil, 0, err
	}
	if status == http.StatusUnauthorized {
		c.logger.Warn("request still unauthorized after re-authentication", "resource", resource)
	}
	return payload, status, nil
}

func (c *Client) do(ctx context.Context, method, resource string, params url.Values, body any) (any, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + "/" + strings.TrimLeft(resource, "/")
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("encode %s body: %w", resource, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.auth.Authorize(ctx, req); err != nil {
		return nil, 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(method, "error").Inc()
		c.logger.Debug("request failed", "method", method, "resource", resource, "error", err)
		return nil, 0, fmt.Errorf("%s %s: %w", method, resource, err)
	}
	defer resp.Body.Close()
	requestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: read body: %w", method, resource, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("request rejected", "method", method, "resource", resource, "status", resp.StatusCode)
		return nil, resp.StatusCode, nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, resp.StatusCode, nil
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		c.logger.Warn("response is not json", "method", method, "resource", resource, "status", resp.StatusCode)
		return nil, resp.StatusCode, nil
	}
	return payload, resp.StatusCode, nil
}

// unauthorized converts a final 401 into an error in credential mode, where
// it means the fresh token was rejected too.
func (c *Client) unauthorized(status int) error {
	if status == http.StatusUnauthorized && c.auth.CanReauthenticate() {
		return fmt.Errorf("%w: %w", ErrUnauthorized, session.ErrAuthFailed)
	}
	return nil
}
