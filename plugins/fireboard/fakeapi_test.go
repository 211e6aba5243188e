package fireboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joshp123/gohome-fireboard/internal/logging"
	"github.com/joshp123/gohome-fireboard/internal/session"
)

const loginRoute = "POST /rest-auth/login/"

var apiKeyCreds = session.Credentials{APIKey: "test-key"}

// route is a canned response. A zero status means 200.
type route struct {
	status int
	body   any
}

// fakeAPI answers "METHOD /path" routes and 404s everything else.
type fakeAPI struct {
	*httptest.Server

	mu      sync.Mutex
	routes  map[string]route
	calls   []string
	bodies  map[string]map[string]any
	queries map[string]string

	// token, when set, is required as "Token <token>" on non-login routes.
	token string
}

func newFakeAPI(t *testing.T, routes map[string]route) *fakeAPI {
	t.Helper()
	f := &fakeAPI{
		routes:  map[string]route{},
		bodies:  map[string]map[string]any{},
		queries: map[string]string{},
	}
	for k, v := range routes {
		f.routes[k] = v
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

func (f *fakeAPI) handle(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path

	var body map[string]any
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	f.mu.Lock()
	f.calls = append(f.calls, key)
	if body != nil {
		f.bodies[key] = body
	}
	f.queries[key] = r.URL.RawQuery
	rt, ok := f.routes[key]
	token := f.token
	f.mu.Unlock()

	if token != "" && key != loginRoute && r.Header.Get("Authorization") != "Token "+token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}

	status := rt.status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if rt.body != nil {
		_ = json.NewEncoder(w).Encode(rt.body)
	}
}

func (f *fakeAPI) set(key string, rt route) {
	f.mu.Lock()
	f.routes[key] = rt
	f.mu.Unlock()
}

func (f *fakeAPI) requireToken(token string) {
	f.mu.Lock()
	f.token = token
	f.mu.Unlock()
}

func (f *fakeAPI) reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) count(key string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == key {
			n++
		}
	}
	return n
}

func (f *fakeAPI) body(key string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[key]
}

func (f *fakeAPI) query(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[key]
}

func testConfig(baseURL string, creds session.Credentials) Config {
	return Config{
		BaseURL:        baseURL,
		Credentials:    creds,
		RequestTimeout: 2 * time.Second,
		DeviceCacheTTL: time.Minute,
		DiscoveryRetry: time.Minute,
	}
}

func newTestClient(t *testing.T, baseURL string, creds session.Credentials) *Client {
	t.Helper()
	c, err := NewClient(testConfig(baseURL, creds), WithLogger(logging.Discard()))
	require.NoError(t, err)
	return c
}

// smokerRoutes is one device with one channel plus its temps and alerts.
func smokerRoutes() map[string]route {
	return map[string]route{
		"GET /v1/devices": {body: []any{map[string]any{
			"id":    7,
			"title": "Smoker",
			"channels": []any{map[string]any{
				"id": 3, "channel": 1, "channel_label": "Brisket", "current_temp": 225.0,
			}},
		}}},
		"GET /v1/devices/7": {body: map[string]any{"id": 7, "title": "Smoker", "hw_ver": "FBX2"}},
		"GET /v1/devices/7/temps": {body: []any{
			map[string]any{"channel": 1, "temp": 230.5, "degreetype": 2},
		}},
		"GET /v1/devices/7/alerts": {body: []any{
			map[string]any{"id": 55, "channel": 1, "max": 250},
		}},
	}
}
