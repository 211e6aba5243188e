// Package session owns credential handling for cloud APIs that use a static
// API key or a username/password login returning a DRF-style token.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/joshp123/gohome-fireboard/internal/lookup"
)

const (
	HeaderAPIKey     = "X-API-KEY"
	DefaultLoginPath = "rest-auth/login/"

	tokenType    = "Token"
	loginTimeout = 10 * time.Second
)

var (
	ErrAuthFailed    = errors.New("authentication failed")
	ErrNoCredentials = errors.New("no credentials configured")
)

// AuthError describes a failed login. Status is zero when the server was never reached.
type AuthError struct {
	Status int
	Body   string
	Err    error
}

func (e *AuthError) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("authentication failed: %v", e.Err)
	case e.Err != nil:
		return fmt.Sprintf("authentication failed %d: %v", e.Status, e.Err)
	default:
		return fmt.Sprintf("authentication failed %d: %s", e.Status, strings.TrimSpace(e.Body))
	}
}

func (e *AuthError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrAuthFailed, e.Err}
	}
	return []error{ErrAuthFailed}
}

// Rejected reports whether the server answered the login.
func (e *AuthError) Rejected() bool {
	return e.Status != 0
}

// Credentials select the auth mode: APIKey, or Username and Password.
type Credentials struct {
	APIKey   string
	Username string
	Password string
}

func (c Credentials) UsesAPIKey() bool {
	return c.APIKey != ""
}

func (c Credentials) CanLogin() bool {
	return c.Username != "" && c.Password != ""
}

// Manager authenticates lazily and decorates outbound requests.
type Manager struct {
	provider   string
	baseURL    string
	loginPath  string
	creds      Credentials
	httpClient *http.Client
	store      Store
	mirror     Store
	logger     *slog.Logger

	// authMu serializes logins; mu guards token.
	authMu   sync.Mutex
	mu       sync.Mutex
	token    *oauth2.Token
	restored bool
}

type Option func(*Manager)

func WithHTTPClient(client *http.Client) Option {
	return func(m *Manager) { m.httpClient = client }
}

// WithStore persists tokens locally so restarts can skip the login.
func WithStore(store Store) Option {
	return func(m *Manager) { m.store = store }
}

// WithMirror adds a remote copy of the persisted token.
func WithMirror(store Store) Option {
	return func(m *Manager) { m.mirror = store }
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithLoginPath(p string) Option {
	return func(m *Manager) { m.loginPath = strings.TrimLeft(p, "/") }
}

func NewManager(provider, baseURL string, creds Credentials, opts ...Option) (*Manager, error) {
	if provider == "" {
		return nil, fmt.Errorf("provider is required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if !creds.UsesAPIKey() && !creds.CanLogin() {
		return nil, ErrNoCredentials
	}

	m := &Manager{
		provider:   provider,
		baseURL:    baseURL,
		loginPath:  DefaultLoginPath,
		creds:      creds,
		httpClient: &http.Client{Timeout: loginTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "session", "provider", provider)
	return m, nil
}

// CanReauthenticate reports whether a 401 can be answered with a fresh login.
func (m *Manager) CanReauthenticate() bool {
	return !m.creds.UsesAPIKey() && m.creds.CanLogin()
}

// Authenticated reports whether requests can be authorized without a login.
func (m *Manager) Authenticated() bool {
	if m.creds.UsesAPIKey() {
		return true
	}
	return m.heldToken() != nil
}

// Authorize sets the auth header on req, logging in first if no token is held.
func (m *Manager) Authorize(ctx context.Context, req *http.Request) error {
	if m.creds.UsesAPIKey() {
		req.Header.Set(HeaderAPIKey, m.creds.APIKey)
		return nil
	}
	token, err := m.ensureToken(ctx)
	if err != nil {
		return err
	}
	token.SetAuthHeader(req)
	return nil
}

// Authenticate performs a login and stores the token.
func (m *Manager) Authenticate(ctx context.Context) error {
	m.authMu.Lock()
	defer m.authMu.Unlock()
	return m.authenticateLocked(ctx)
}

// Reauthenticate drops the held token and logs in again.
func (m *Manager) Reauthenticate(ctx context.Context) error {
	m.authMu.Lock()
	defer m.authMu.Unlock()
	m.Invalidate()
	return m.authenticateLocked(ctx)
}

// Invalidate forgets the held token.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()
	tokenValid.WithLabelValues(m.provider).Set(0)
}

func (m *Manager) ensureToken(ctx context.Context) (*oauth2.Token, error) {
	if token := m.heldToken(); token != nil {
		return token, nil
	}

	m.authMu.Lock()
	defer m.authMu.Unlock()

	if token := m.heldToken(); token != nil {
		return token, nil
	}
	if token := m.restore(ctx); token != nil {
		return token, nil
	}
	if err := m.authenticateLocked(ctx); err != nil {
		return nil, err
	}
	return m.heldToken(), nil
}

func (m *Manager) heldToken() *oauth2.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *Manager) authenticateLocked(ctx context.Context) error {
	if !m.creds.CanLogin() {
		return ErrNoCredentials
	}

	token, err := m.login(ctx)
	if err != nil {
		loginFailure.WithLabelValues(m.provider).Inc()
		tokenValid.WithLabelValues(m.provider).Set(0)
		return err
	}

	m.mu.Lock()
	m.token = token
	m.mu.Unlock()

	loginSuccess.WithLabelValues(m.provider).Inc()
	tokenValid.WithLabelValues(m.provider).Set(1)
	m.logger.Info("login succeeded")

	m.persist(ctx, token)
	return nil
}

func (m *Manager) login(ctx context.Context) (*oauth2.Token, error) {
	body, err := json.Marshal(map[string]string{
		"username": m.creds.Username,
		"password": m.creds.Password,
	})
	if err != nil {
		return nil, &AuthError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/"+m.loginPath, bytes.NewReader(body))
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.logger.Error("login request failed", "error", err)
		return nil, &AuthError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &AuthError{Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		m.logger.Error("login rejected", "status", resp.StatusCode, "body", strings.TrimSpace(string(data)))
		return nil, &AuthError{Status: resp.StatusCode, Body: string(data)}
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		m.logger.Error("login response is not json", "status", resp.StatusCode)
		return nil, &AuthError{Status: resp.StatusCode, Err: err}
	}

	key, ok := lookup.String(payload, "key", "token", "auth_token")
	if !ok {
		m.logger.Error("login response missing token", "status", resp.StatusCode)
		return nil, &AuthError{Status: resp.StatusCode, Body: "response missing token"}
	}

	return &oauth2.Token{AccessToken: key, TokenType: tokenType}, nil
}

func (m *Manager) restore(ctx context.Context) *oauth2.Token {
	m.mu.Lock()
	if m.restored {
		m.mu.Unlock()
		return nil
	}
	m.restored = true
	m.mu.Unlock()

	for _, store := range []Store{m.store, m.mirror} {
		if store == nil {
			continue
		}
		data, err := store.Load(ctx, m.provider)
		if err != nil {
			if !errors.Is(err, ErrStateNotFound) {
				m.logger.Warn("load session state", "error", err)
			}
			continue
		}
		state, err := DecodeState(data)
		if err != nil {
			m.logger.Warn("decode session state", "error", err)
			continue
		}
		if !state.Matches(m.provider, m.baseURL, m.creds.Username) {
			continue
		}

		token := &oauth2.Token{AccessToken: state.Token, TokenType: tokenType}
		m.mu.Lock()
		m.token = token
		m.mu.Unlock()
		tokenValid.WithLabelValues(m.provider).Set(1)
		m.logger.Info("restored session token")
		return token
	}
	return nil
}

func (m *Manager) persist(ctx context.Context, token *oauth2.Token) {
	if m.store == nil && m.mirror == nil {
		return
	}
	data, err := encodeState(State{
		Provider:   m.provider,
		BaseURL:    m.baseURL,
		Username:   m.creds.Username,
		Token:      token.AccessToken,
		ObtainedAt: time.Now().UTC(),
	})
	if err != nil {
		m.logger.Warn("encode session state", "error", err)
		return
	}

	if m.store != nil {
		if err := m.store.Save(ctx, m.provider, data); err != nil {
			m.logger.Warn("persist session state", "error", err)
		}
	}
	if m.mirror != nil {
		if err := m.mirror.Save(ctx, m.provider, data); err != nil {
			remotePersistOK.WithLabelValues(m.provider).Set(0)
			m.logger.Warn("mirror session state", "error", err)
			return
		}
		remotePersistOK.WithLabelValues(m.provider).Set(1)
	}
}
