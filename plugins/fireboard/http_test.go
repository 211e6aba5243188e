package fireboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(p *Plugin) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	p.RegisterHTTP(r.Group("/api/fireboard"))
	return r
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHTTPSnapshot(t *testing.T) {
	p := newTestPlugin(t, newFakeAPI(t, smokerRoutes()))
	r := newTestRouter(p)

	w := serve(r, http.MethodGet, "/api/fireboard/snapshot", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	p.coordinator.Refresh(context.Background())
	w = serve(r, http.MethodGet, "/api/fireboard/snapshot", "")
	require.Equal(t, http.StatusOK, w.Code)
	snap := decode(t, w)
	assert.Equal(t, "ok", snap["api_status"])
	devices := snap["devices"].([]any)
	require.Len(t, devices, 1)
	channel := devices[0].(map[string]any)["channels"].([]any)[0].(map[string]any)
	assert.Equal(t, 230.5, channel["temperature"])
}

func TestHTTPDevices(t *testing.T) {
	p := newTestPlugin(t, newFakeAPI(t, smokerRoutes()))
	r := newTestRouter(p)

	w := serve(r, http.MethodGet, "/api/fireboard/devices", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["devices"], 1)

	w = serve(r, http.MethodGet, "/api/fireboard/devices/7", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "FBX2", decode(t, w)["model"])

	w = serve(r, http.MethodGet, "/api/fireboard/devices/8", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(r, http.MethodGet, "/api/fireboard/devices/7/temps", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["temps"], 1)

	w = serve(r, http.MethodGet, "/api/fireboard/devices/7/alerts", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["alerts"], 1)
}

func TestHTTPAlerts(t *testing.T) {
	routes := smokerRoutes()
	routes["POST /v1/alerts/"] = route{status: http.StatusCreated, body: map[string]any{"id": 99, "device": 7, "channel": 1}}
	routes["PUT /v1/alerts/99/"] = route{body: map[string]any{"id": 99, "max": 240}}
	routes["DELETE /v1/alerts/99/"] = route{status: http.StatusNoContent}
	api := newFakeAPI(t, routes)
	r := newTestRouter(newTestPlugin(t, api))

	w := serve(r, http.MethodPost, "/api/fireboard/alerts", `{"device_id":7,"channel_id":1,"max_temp":"250"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "99", decode(t, w)["id"])
	assert.Equal(t, map[string]any{"device": "7", "channel": "1", "max": 250.0}, api.body("POST /v1/alerts/"))

	w = serve(r, http.MethodPost, "/api/fireboard/alerts", `{"device_id":7}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, http.MethodPost, "/api/fireboard/alerts", `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, http.MethodPut, "/api/fireboard/alerts/99", `{"max_temp":240}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 240.0, decode(t, w)["max"])

	w = serve(r, http.MethodDelete, "/api/fireboard/alerts/99", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(r, http.MethodDelete, "/api/fireboard/alerts/404", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHTTPRefresh(t *testing.T) {
	p := newTestPlugin(t, newFakeAPI(t, smokerRoutes()))
	r := newTestRouter(p)

	w := serve(r, http.MethodPost, "/api/fireboard/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["api_status"])

	w = serve(r, http.MethodPost, "/api/fireboard/refresh", `{"device_id":"7"}`)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHTTPSessionsLimit(t *testing.T) {
	r := newTestRouter(newTestPlugin(t, newFakeAPI(t, nil)))

	w := serve(r, http.MethodGet, "/api/fireboard/sessions?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, http.MethodGet, "/api/fireboard/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["sessions"])

	w = serve(r, http.MethodGet, "/api/fireboard/sessions/1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
