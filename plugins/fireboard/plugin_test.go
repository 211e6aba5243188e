package fireboard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/gohome-fireboard/internal/config"
	"github.com/joshp123/gohome-fireboard/internal/core"
	"github.com/joshp123/gohome-fireboard/internal/logging"
)

func newTestPlugin(t *testing.T, api *fakeAPI) *Plugin {
	t.Helper()
	client := newTestClient(t, api.URL, apiKeyCreds)
	coordinator := NewCoordinator(client, 0, logging.Discard())
	return &Plugin{
		client:      client,
		coordinator: coordinator,
		services:    NewServices(client, coordinator, logging.Discard()),
		logger:      logging.Discard(),
	}
}

func TestNewPlugin(t *testing.T) {
	p, err := NewPlugin(&config.FireboardConfig{APIKey: "k"}, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, "fireboard", p.ID())
	assert.Equal(t, []string{ServiceName}, p.Manifest().Services)
	assert.NotEmpty(t, p.AgentsMD())
	require.Len(t, p.Dashboards(), 1)
	assert.NotEmpty(t, p.Dashboards()[0].JSON)
	assert.NotEmpty(t, p.Collectors())

	_, err = NewPlugin(&config.FireboardConfig{}, logging.Discard())
	assert.Error(t, err)
}

func TestPluginHealthFollowsSnapshot(t *testing.T) {
	api := newFakeAPI(t, smokerRoutes())
	p := newTestPlugin(t, api)

	assert.Equal(t, core.HealthHealthy, p.Health())
	assert.Equal(t, "waiting for first poll", p.HealthMessage())

	p.coordinator.Refresh(context.Background())
	assert.Equal(t, core.HealthHealthy, p.Health())
	assert.Equal(t, "1 devices", p.HealthMessage())

	empty := newTestPlugin(t, newFakeAPI(t, nil))
	empty.coordinator.Refresh(context.Background())
	assert.Equal(t, core.HealthDegraded, empty.Health())
	assert.Equal(t, "no devices found", empty.HealthMessage())
}

func TestPluginRegisterMQTTPublishesCurrentSnapshot(t *testing.T) {
	api := newFakeAPI(t, smokerRoutes())
	p := newTestPlugin(t, api)
	p.coordinator.Refresh(context.Background())

	broker := newFakeBroker()
	require.NoError(t, p.RegisterMQTT(context.Background(), broker, testTopics))
	assert.Equal(t, 1, broker.count("gohome/fireboard/7/1/state"))

	p.coordinator.Refresh(context.Background())
	assert.Equal(t, 2, broker.count("gohome/fireboard/7/1/state"))
}
