package core

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"

	"github.com/joshp123/gohome-fireboard/internal/mqtt"
)

// HealthStatus represents plugin health states for registry reporting.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "HEALTHY"
	HealthDegraded HealthStatus = "DEGRADED"
	HealthError    HealthStatus = "ERROR"
)

// Dashboard is a Grafana dashboard asset embedded by the plugin.
type Dashboard struct {
	Name string
	JSON []byte
}

// Manifest describes a plugin for discovery and registry metadata.
type Manifest struct {
	PluginID    string
	DisplayName string
	Version     string
	Services    []string
}

// Plugin is the compile-time contract for all GoHome plugins.
type Plugin interface {
	ID() string
	Manifest() Manifest
	AgentsMD() string
	Dashboards() []Dashboard
	RegisterGRPC(*grpc.Server)
	Collectors() []prometheus.Collector
	Health() HealthStatus
	HealthMessage() string
}

// HTTPRegistrant allows plugins to expose HTTP handlers under /api/<plugin id>.
type HTTPRegistrant interface {
	RegisterHTTP(*gin.RouterGroup)
}

// Runner is implemented by plugins with background work such as polling.
// Run blocks until ctx is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// MQTTRegistrant allows plugins to bridge state and commands over MQTT.
type MQTTRegistrant interface {
	RegisterMQTT(ctx context.Context, broker mqtt.Broker, topics mqtt.Topics) error
}
