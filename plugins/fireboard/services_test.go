package fireboard

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/gohome-fireboard/internal/logging"
)

func TestParseCreateAlert(t *testing.T) {
	req, err := ParseCreateAlert(map[string]any{
		"device_id":  7.0,
		"channel_id": "1",
		"min_temp":   "180",
		"max_temp":   225,
	})
	require.NoError(t, err)
	assert.Equal(t, "7", req.DeviceID)
	assert.Equal(t, "1", req.ChannelID)
	assert.Equal(t, 180.0, *req.MinTemp)
	assert.Equal(t, 225.0, *req.MaxTemp)

	req, err = ParseCreateAlert(map[string]any{"device_id": "7", "channel_id": 2, "min_temp": ""})
	require.NoError(t, err)
	assert.Nil(t, req.MinTemp)
	assert.Nil(t, req.MaxTemp)

	bad := []map[string]any{
		{"channel_id": "1"},
		{"device_id": "7"},
		{"device_id": "7", "channel_id": "1", "max_temp": "hot"},
		{"device_id": "7", "channel_id": "1", "min_temp": 300, "max_temp": 200},
	}
	for _, args := range bad {
		_, err := ParseCreateAlert(args)
		assert.ErrorIs(t, err, ErrInvalidArgument, "%v", args)
	}
}

func TestParseUpdateAlert(t *testing.T) {
	req, err := ParseUpdateAlert(map[string]any{"alert_id": 55.0, "enabled": "false"})
	require.NoError(t, err)
	assert.Equal(t, "55", req.AlertID)
	require.NotNil(t, req.Update.Enabled)
	assert.False(t, *req.Update.Enabled)

	_, err = ParseUpdateAlert(map[string]any{"alert_id": "55"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = ParseUpdateAlert(map[string]any{"alert_id": "55", "enabled": "maybe"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestParseIDs(t *testing.T) {
	id, err := ParseAlertID(map[string]any{"alert_id": 12.0})
	require.NoError(t, err)
	assert.Equal(t, "12", id)

	_, err = ParseAlertID(map[string]any{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.Equal(t, "7", ParseDeviceID(map[string]any{"device_id": 7.0}))
	assert.Empty(t, ParseDeviceID(nil))
}

func TestServicesRefreshAfterMutation(t *testing.T) {
	routes := smokerRoutes()
	routes["POST /v1/alerts/"] = route{status: http.StatusCreated, body: map[string]any{"id": 99}}
	api := newFakeAPI(t, routes)
	client := newTestClient(t, api.URL, apiKeyCreds)
	coordinator := NewCoordinator(client, 0, logging.Discard())
	services := NewServices(client, coordinator, logging.Discard())

	var updates int
	coordinator.OnUpdate(func(Snapshot) { updates++ })

	alert, err := services.CreateAlert(context.Background(), CreateAlertRequest{DeviceID: "7", ChannelID: "1", MaxTemp: ptr(250.0)})
	require.NoError(t, err)
	assert.Equal(t, "99", alert.ID)
	assert.Equal(t, 1, updates)

	err = services.DeleteAlert(context.Background(), "404")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, updates, "failed mutations do not refresh")
}

func TestServicesRefreshDataInvalidatesDevice(t *testing.T) {
	api := newFakeAPI(t, smokerRoutes())
	client := newTestClient(t, api.URL, apiKeyCreds)
	coordinator := NewCoordinator(client, 0, logging.Discard())
	services := NewServices(client, coordinator, logging.Discard())

	_, _, err := client.GetDevice(context.Background(), "7")
	require.NoError(t, err)

	api.set("GET /v1/devices/7", route{body: map[string]any{"id": 7, "title": "Smoker", "hw_ver": "FBX3"}})
	services.RefreshData(context.Background(), "7")

	device, ok, err := client.GetDevice(context.Background(), "7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "FBX3", device.Model)
}
