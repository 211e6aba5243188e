package fireboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/gohome-fireboard/internal/logging"
	"github.com/joshp123/gohome-fireboard/internal/rate"
	"github.com/joshp123/gohome-fireboard/internal/session"
)

func ptr[T any](v T) *T { return &v }

func TestLoginHappensOnceBeforeFirstRequest(t *testing.T) {
	routes := smokerRoutes()
	routes[loginRoute] = route{body: map[string]any{"key": "abc"}}
	api := newFakeAPI(t, routes)
	api.requireToken("abc")

	client := newTestClient(t, api.URL, session.Credentials{Username: "a@b.com", Password: "x"})

	_, err := client.GetDevices(context.Background())
	require.NoError(t, err)
	_, err = client.GetDevices(context.Background())
	require.NoError(t, err)

	calls := api.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, loginRoute, calls[0])
	assert.Equal(t, 1, api.count(loginRoute))
}

func TestSecondUnauthorizedFailsWithoutLooping(t *testing.T) {
	var logins, requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest-auth/login/" {
			atomic.AddInt32(&logins, 1)
			_, _ = w.Write([]byte(`{"key":"k"}`))
			return
		}
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, session.Credentials{Username: "cook", Password: "pw"})
	devices, err := client.GetDevices(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.True(t, IsAuthError(err))
	assert.NotNil(t, devices)
	assert.Empty(t, devices)
	assert.Equal(t, int32(2), atomic.LoadInt32(&logins), "initial login plus one re-authentication")
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests), "original request plus one retry")
}

func TestRequestRetriesOnceWithFreshToken(t *testing.T) {
	var logins int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest-auth/login/" {
			if atomic.AddInt32(&logins, 1) == 1 {
				_, _ = w.Write([]byte(`{"key":"stale"}`))
				return
			}
			_, _ = w.Write([]byte(`{"key":"fresh"}`))
			return
		}
		if r.Header.Get("Authorization") != "Token fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[{"id":1}]`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, session.Credentials{Username: "cook", Password: "pw"})
	payload, status, err := client.Request(context.Background(), http.MethodGet, "v1/devices", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, payload, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&logins))
}

func TestGetDevicesReusesLearnedEndpoint(t *testing.T) {
	routes := smokerRoutes()
	routes[loginRoute] = route{body: map[string]any{"key": "abc"}}
	api := newFakeAPI(t, routes)
	api.requireToken("abc")

	client := newTestClient(t, api.URL, session.Credentials{Username: "a@b.com", Password: "x"})

	devices, err := client.GetDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "7", devices[0].ID)
	assert.Equal(t, "Smoker", devices[0].Title)
	require.Len(t, devices[0].Channels, 1)
	require.NotNil(t, devices[0].Channels[0].Temperature)
	assert.Equal(t, 225.0, *devices[0].Channels[0].Temperature)
	assert.Equal(t, "v1/devices", client.WorkingEndpoints()["devices:devices"])

	api.reset()
	devices, err = client.GetDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, []string{"GET /v1/devices"}, api.Calls())
}

func TestGetDevicesUnwrapsResponseShapes(t *testing.T) {
	payloads := map[string]any{
		"bare list": []any{map[string]any{"id": 1}},
		"devices":   map[string]any{"devices": []any{map[string]any{"id": 1}}},
		"results":   map[string]any{"results": []any{map[string]any{"id": 1}}},
	}
	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			api := newFakeAPI(t, map[string]route{"GET /v1/devices": {body: payload}})
			client := newTestClient(t, api.URL, apiKeyCreds)

			devices, err := client.GetDevices(context.Background())
			require.NoError(t, err)
			require.Len(t, devices, 1)
			assert.Equal(t, "1", devices[0].ID)
			assert.Equal(t, "Fireboard 1", devices[0].Title)
		})
	}
}

func TestGetDevicesNeverReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, apiKeyCreds)
	devices, err := client.GetDevices(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, devices)
	assert.Empty(t, devices)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	devices, err = newTestClient(t, server.URL, apiKeyCreds).GetDevices(ctx)
	assert.Error(t, err)
	assert.NotNil(t, devices)
}

func TestDiscoverySweepCachesEveryShape(t *testing.T) {
	api := newFakeAPI(t, map[string]route{
		"GET /v1/devices":     {body: []any{map[string]any{"id": 1}}},
		"GET /v2/device/list": {body: []any{map[string]any{"id": 2}}},
	})
	client := newTestClient(t, api.URL, apiKeyCreds)

	devices, err := client.GetDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "1", devices[0].ID)

	endpoints := client.WorkingEndpoints()
	assert.Equal(t, "v1/devices", endpoints["devices:devices"])
	assert.Equal(t, "v2/device/list", endpoints["devices:device/list"])
	assert.Equal(t, 1, api.count("GET /v1/devices"), "payload from the sweep is reused")
}

func TestFailedDiscoveryIsNotRepeated(t *testing.T) {
	api := newFakeAPI(t, nil)
	client := newTestClient(t, api.URL, apiKeyCreds)

	devices, err := client.GetDevices(context.Background())
	require.NoError(t, err)
	assert.Empty(t, devices)

	api.reset()
	_, err = client.GetDevices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"GET /v1/devices/",
		"GET /v1/devices.json",
		"GET /devices/",
	}, api.Calls(), "only fallbacks while discovery is backed off")
}

func TestFallbackEndpointIsLearned(t *testing.T) {
	api := newFakeAPI(t, map[string]route{
		"GET /v1/devices/": {body: map[string]any{"devices": []any{map[string]any{"id": 4}}}},
	})
	client := newTestClient(t, api.URL, apiKeyCreds)

	devices, err := client.GetDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "v1/devices/", client.WorkingEndpoints()["devices:devices/"])

	api.reset()
	_, err = client.GetDevices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"GET /v1/devices/"}, api.Calls())
}

func TestDevicesFromProfile(t *testing.T) {
	api := newFakeAPI(t, map[string]route{
		"GET /rest-auth/user/": {body: map[string]any{
			"id":      5,
			"devices": []any{map[string]any{"id": 9, "title": "Kamado"}},
		}},
	})
	client := newTestClient(t, api.URL, apiKeyCreds)

	devices, err := client.GetDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "Kamado", devices[0].Title)
	assert.Equal(t, "rest-auth/user/", client.WorkingEndpoints()["devices:profile"])
	assert.Zero(t, api.count("GET /v1/devices"))

	api.reset()
	_, err = client.GetDevices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"GET /rest-auth/user/"}, api.Calls())
}

func TestUserScopedDevicesFallback(t *testing.T) {
	api := newFakeAPI(t, map[string]route{
		"GET /rest-auth/user/":     {body: map[string]any{"id": 5, "email": "a@b.com"}},
		"GET /v1/users/5/devices/": {body: []any{map[string]any{"id": 11}}},
	})
	client := newTestClient(t, api.URL, apiKeyCreds)

	devices, err := client.GetDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "11", devices[0].ID)
	assert.Equal(t, "v1/users/{user}/devices/", client.WorkingEndpoints()["devices:users/{user}/devices/"])
}

func TestAPIKeyUnauthorizedIsTreatedAsMissingEndpoint(t *testing.T) {
	api := newFakeAPI(t, map[string]route{
		"GET /v1/devices": {status: http.StatusUnauthorized},
		"GET /v2/devices": {body: []any{map[string]any{"id": 2}}},
	})
	client := newTestClient(t, api.URL, apiKeyCreds)

	devices, err := client.GetDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "v2/devices", client.WorkingEndpoints()["devices:devices"])
}

func TestChannelTemperatureFieldOrder(t *testing.T) {
	ch := parseChannel(map[string]any{"channel": 2, "current_temp": 72.5})
	require.NotNil(t, ch.Temperature)
	assert.Equal(t, 72.5, *ch.Temperature)
	assert.Equal(t, "Channel 2", ch.Name)

	ch = parseChannel(map[string]any{"channel": 1, "temp": 100.0, "current_temp": 72.5})
	require.NotNil(t, ch.Temperature)
	assert.Equal(t, 100.0, *ch.Temperature)

	ch = parseChannel(map[string]any{"channel": 1})
	assert.Nil(t, ch.Temperature)
}

func TestUnitInference(t *testing.T) {
	cases := []struct {
		in   map[string]any
		want string
	}{
		{map[string]any{"unit": "°C"}, UnitCelsius},
		{map[string]any{"unit": "celsius"}, UnitCelsius},
		{map[string]any{"unit": "F"}, UnitFahrenheit},
		{map[string]any{"unit": "fahrenheit"}, UnitFahrenheit},
		{map[string]any{"degreetype": 1}, UnitCelsius},
		{map[string]any{"degreetype": 2}, UnitFahrenheit},
		{map[string]any{}, UnitFahrenheit},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, unitOf(tc.in), "%v", tc.in)
	}
}

func TestApplyReadings(t *testing.T) {
	d := Device{
		Channels: []Channel{{Number: 1, Name: "Brisket", Temperature: ptr(225.0), Unit: UnitFahrenheit}},
		Temps: []Reading{
			{Channel: 1, Temperature: 230.5, Unit: UnitFahrenheit},
			{Channel: 2, Temperature: 40, Unit: UnitCelsius},
		},
	}
	applyReadings(&d)

	require.Len(t, d.Channels, 2)
	assert.Equal(t, 230.5, *d.Channels[0].Temperature)
	assert.Equal(t, "Brisket", d.Channels[0].Name)
	assert.Equal(t, "Channel 2", d.Channels[1].Name)
	assert.Equal(t, UnitCelsius, d.Channels[1].Unit)
}

func TestGetDeviceCacheAndInvalidate(t *testing.T) {
	api := newFakeAPI(t, smokerRoutes())
	client := newTestClient(t, api.URL, apiKeyCreds)

	device, ok, err := client.GetDevice(context.Background(), "7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Smoker", device.Title)
	assert.Equal(t, "FBX2", device.Model)

	api.reset()
	_, ok, err = client.GetDevice(context.Background(), "7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, api.Calls())

	api.set("GET /v1/devices/7", route{body: map[string]any{"id": 7, "title": "Renamed"}})
	client.InvalidateDevice("7")
	device, _, err = client.GetDevice(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", device.Title)
	assert.Equal(t, []string{"GET /v1/devices/7"}, api.Calls())
}

func TestGetDeviceCacheExpires(t *testing.T) {
	api := newFakeAPI(t, smokerRoutes())
	cfg := testConfig(api.URL, apiKeyCreds)
	cfg.DeviceCacheTTL = 20 * time.Millisecond
	client, err := NewClient(cfg, WithLogger(logging.Discard()))
	require.NoError(t, err)

	_, _, err = client.GetDevice(context.Background(), "7")
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)

	api.reset()
	_, ok, err := client.GetDevice(context.Background(), "7")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"GET /v1/devices/7"}, api.Calls())
}

func TestGetDeviceUnknown(t *testing.T) {
	api := newFakeAPI(t, nil)
	client := newTestClient(t, api.URL, apiKeyCreds)

	_, ok, err := client.GetDevice(context.Background(), "404")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetTemperaturesAndAlerts(t *testing.T) {
	api := newFakeAPI(t, smokerRoutes())
	client := newTestClient(t, api.URL, apiKeyCreds)

	temps, err := client.GetTemperatures(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, []Reading{{Channel: 1, Temperature: 230.5, Unit: UnitFahrenheit}}, temps)

	alerts, err := client.GetAlerts(context.Background(), "7")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "55", alerts[0].ID)
	assert.Equal(t, "7", alerts[0].Device)
	assert.Equal(t, "1", alerts[0].Channel)
	require.NotNil(t, alerts[0].Max)
	assert.Equal(t, 250.0, *alerts[0].Max)

	empty, err := client.GetAlerts(context.Background(), "8")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestCreateAlertSendsOnlySetFields(t *testing.T) {
	api := newFakeAPI(t, map[string]route{
		"POST /v1/alerts/": {status: http.StatusCreated, body: map[string]any{"id": 99, "device": 7, "channel": 1, "min": 200}},
	})
	client := newTestClient(t, api.URL, apiKeyCreds)

	alert, err := client.CreateAlert(context.Background(), NewAlert{Device: "7", Channel: "1", Min: ptr(200.0)})
	require.NoError(t, err)
	assert.Equal(t, "99", alert.ID)
	assert.Equal(t, "7", alert.Device)
	assert.Nil(t, alert.Max)

	assert.Equal(t, map[string]any{"device": "7", "channel": "1", "min": 200.0}, api.body("POST /v1/alerts/"))
	assert.Equal(t, "v1/alerts/", client.WorkingEndpoints()["alert_create:alerts/"])
}

func TestCreateAlertRequiresDeviceAndChannel(t *testing.T) {
	api := newFakeAPI(t, nil)
	client := newTestClient(t, api.URL, apiKeyCreds)

	_, err := client.CreateAlert(context.Background(), NewAlert{Device: "7"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Empty(t, api.Calls())
}

func TestUpdateAlert(t *testing.T) {
	api := newFakeAPI(t, map[string]route{
		"PUT /v1/alerts/55/": {body: map[string]any{"id": 55, "max": 230, "enabled": false}},
	})
	client := newTestClient(t, api.URL, apiKeyCreds)

	alert, err := client.UpdateAlert(context.Background(), "55", AlertUpdate{Max: ptr(230.0), Enabled: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, "55", alert.ID)
	assert.Equal(t, 230.0, *alert.Max)
	assert.False(t, *alert.Enabled)
	assert.Equal(t, map[string]any{"max": 230.0, "enabled": false}, api.body("PUT /v1/alerts/55/"))

	_, err = client.UpdateAlert(context.Background(), "55", AlertUpdate{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDeleteAlertUsesLearnedEndpoint(t *testing.T) {
	api := newFakeAPI(t, map[string]route{
		"DELETE /alerts/55/": {status: http.StatusNoContent},
		"DELETE /alerts/56/": {status: http.StatusNoContent},
	})
	client := newTestClient(t, api.URL, apiKeyCreds)

	require.NoError(t, client.DeleteAlert(context.Background(), "55"))
	assert.Equal(t, []string{"DELETE /v1/alerts/55/", "DELETE /alerts/55/"}, api.Calls())

	api.reset()
	require.NoError(t, client.DeleteAlert(context.Background(), "56"))
	assert.Equal(t, []string{"DELETE /alerts/56/"}, api.Calls())
}

func TestDeleteMissingAlertFailsCleanly(t *testing.T) {
	api := newFakeAPI(t, nil)
	client := newTestClient(t, api.URL, apiKeyCreds)

	var err error
	require.NotPanics(t, func() {
		err = client.DeleteAlert(context.Background(), "404")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoWorkingEndpoint)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, api.Calls(), 2)
}

func TestSessions(t *testing.T) {
	api := newFakeAPI(t, map[string]route{
		"GET /v1/sessions":           {body: map[string]any{"results": []any{map[string]any{"id": 1, "title": "Brisket"}}}},
		"GET /v1/devices/7/sessions": {body: []any{map[string]any{"id": 2, "name": "Ribs"}}},
		"GET /v1/sessions/1":         {body: map[string]any{"id": 1, "title": "Brisket", "start_time": "2026-07-04T08:00:00Z"}},
		"GET /v1/sessions/1/temps":   {body: map[string]any{"data": []any{map[string]any{"channel": 1, "temp": 200}}}},
	})
	client := newTestClient(t, api.URL, apiKeyCreds)
	ctx := context.Background()

	sessions, err := client.GetSessions(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Brisket", sessions[0].Title)
	assert.Equal(t, "limit=10", api.query("GET /v1/sessions"))

	sessions, err = client.GetSessions(ctx, "7", 3)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Ribs", sessions[0].Title)
	assert.Equal(t, "limit=3", api.query("GET /v1/devices/7/sessions"))

	cook, ok, err := client.GetSession(ctx, "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2026-07-04T08:00:00Z", cook.Start)

	temps, err := client.GetSessionTemps(ctx, "1")
	require.NoError(t, err)
	assert.Len(t, temps, 1)

	_, ok, err = client.GetSession(ctx, "404")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRateGuardBlocksLocally(t *testing.T) {
	api := newFakeAPI(t, map[string]route{"GET /v1/devices": {body: []any{map[string]any{"id": 1}}}})
	cfg := testConfig(api.URL, apiKeyCreds)
	cfg.MaxRequestsPerHour = 1
	client, err := NewClient(cfg, WithLogger(logging.Discard()))
	require.NoError(t, err)

	_, status, err := client.Request(context.Background(), http.MethodGet, "v1/devices", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	_, _, err = client.Request(context.Background(), http.MethodGet, "v1/devices", nil, nil)
	var rle rate.RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, 1, api.count("GET /v1/devices"))
}

func TestRequestNonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, apiKeyCreds)
	payload, status, err := client.Request(context.Background(), http.MethodGet, "v1/devices", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Nil(t, payload)
}

func TestCandidateTimeoutMovesOn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/devices":
			select {
			case <-time.After(300 * time.Millisecond):
			case <-r.Context().Done():
			}
			_, _ = w.Write([]byte(`[{"id":1}]`))
		case "/v2/devices":
			_, _ = w.Write([]byte(`{"results":[{"id":2}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	cfg := testConfig(server.URL, apiKeyCreds)
	cfg.RequestTimeout = 100 * time.Millisecond
	client, err := NewClient(cfg, WithLogger(logging.Discard()))
	require.NoError(t, err)

	devices, err := client.GetDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "2", devices[0].ID)
	assert.Equal(t, "v2/devices", client.WorkingEndpoints()["devices:devices"])
}

func TestFailedDiscoveryIsScopedToDevice(t *testing.T) {
	api := newFakeAPI(t, smokerRoutes())
	client := newTestClient(t, api.URL, apiKeyCreds)
	ctx := context.Background()

	_, ok, err := client.GetDevice(ctx, "8")
	require.NoError(t, err)
	assert.False(t, ok)

	api.reset()
	_, ok, err = client.GetDevice(ctx, "8")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{
		"GET /v1/devices/8/",
		"GET /v1/devices/8.json",
		"GET /devices/8/",
	}, api.Calls(), "the same device stays backed off")

	device, ok, err := client.GetDevice(ctx, "7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "FBX2", device.Model)
	assert.Equal(t, "v1/devices/{id}", client.WorkingEndpoints()["device:devices/{id}"])
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memoryStore) Load(_ context.Context, provider string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[provider]
	if !ok {
		return nil, session.ErrStateNotFound
	}
	return data, nil
}

func (m *memoryStore) Save(_ context.Context, provider string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[provider] = data
	return nil
}

func TestSessionMirrorReceivesToken(t *testing.T) {
	routes := smokerRoutes()
	routes[loginRoute] = route{body: map[string]any{"key": "abc"}}
	api := newFakeAPI(t, routes)
	mirror := &memoryStore{data: map[string][]byte{}}

	client, err := NewClient(testConfig(api.URL, session.Credentials{Username: "cook", Password: "pw"}),
		WithLogger(logging.Discard()), WithSessionMirror(mirror))
	require.NoError(t, err)

	_, err = client.GetDevices(context.Background())
	require.NoError(t, err)

	state, err := session.DecodeState(mirror.data["fireboard"])
	require.NoError(t, err)
	assert.Equal(t, "abc", state.Token)
	assert.Equal(t, "cook", state.Username)
}
