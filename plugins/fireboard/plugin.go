package fireboard

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"

	"github.com/joshp123/gohome-fireboard/internal/config"
	"github.com/joshp123/gohome-fireboard/internal/core"
	"github.com/joshp123/gohome-fireboard/internal/mqtt"
	"github.com/joshp123/gohome-fireboard/internal/rate"
	"github.com/joshp123/gohome-fireboard/internal/session"
)

//go:embed AGENTS.md
var agentsMD string

//go:embed dashboard.json
var dashboardJSON []byte

var (
	_ core.Plugin         = (*Plugin)(nil)
	_ core.Runner         = (*Plugin)(nil)
	_ core.HTTPRegistrant = (*Plugin)(nil)
	_ core.MQTTRegistrant = (*Plugin)(nil)
)

// Plugin implements the GoHome plugin contract for a Fireboard account.
type Plugin struct {
	client      *Client
	coordinator *Coordinator
	services    *Services
	logger      *slog.Logger
}

// NewPlugin builds the client and coordinator. No network I/O happens until Run.
func NewPlugin(cfg *config.FireboardConfig, logger *slog.Logger) (*Plugin, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("plugin", providerID)

	c, err := ConfigFrom(cfg)
	if err != nil {
		return nil, err
	}
	client, err := NewClient(c, WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("fireboard client: %w", err)
	}
	coordinator := NewCoordinator(client, c.ScanInterval, logger)

	return &Plugin{
		client:      client,
		coordinator: coordinator,
		services:    NewServices(client, coordinator, logger),
		logger:      logger,
	}, nil
}

func (p *Plugin) ID() string {
	return providerID
}

func (p *Plugin) Manifest() core.Manifest {
	return core.Manifest{
		PluginID:    providerID,
		DisplayName: "Fireboard",
		Version:     "0.1.0",
		Services:    []string{ServiceName},
	}
}

func (p *Plugin) AgentsMD() string {
	return agentsMD
}

func (p *Plugin) Dashboards() []core.Dashboard {
	return []core.Dashboard{{Name: "fireboard-overview", JSON: dashboardJSON}}
}

func (p *Plugin) RegisterGRPC(server *grpc.Server) {
	service{client: p.client, coordinator: p.coordinator, services: p.services}.RPCService().MustRegister(server)
}

func (p *Plugin) RegisterHTTP(r *gin.RouterGroup) {
	httpAPI{client: p.client, coordinator: p.coordinator, services: p.services}.register(r)
}

// RegisterMQTT listens for commands and publishes every new snapshot.
func (p *Plugin) RegisterMQTT(ctx context.Context, broker mqtt.Broker, topics mqtt.Topics) error {
	pub := NewPublisher(broker, p.services, topics, p.logger)
	if err := pub.Start(ctx); err != nil {
		return err
	}
	p.coordinator.OnUpdate(func(snap Snapshot) {
		if err := pub.Publish(snap); err != nil {
			p.logger.Warn("mqtt publish incomplete", "error", err)
		}
	})
	if snap, ok := p.coordinator.Snapshot(); ok {
		return pub.Publish(snap)
	}
	return nil
}

// Run polls until ctx is cancelled.
func (p *Plugin) Run(ctx context.Context) error {
	return p.coordinator.Run(ctx)
}

func (p *Plugin) Collectors() []prometheus.Collector {
	collectors := []prometheus.Collector{NewMetricsCollector(p.coordinator)}
	collectors = append(collectors, RequestCollectors()...)
	collectors = append(collectors, session.MetricsCollectors()...)
	collectors = append(collectors, rate.MetricsCollectors()...)
	return collectors
}

func (p *Plugin) Health() core.HealthStatus {
	snap, ok := p.coordinator.Snapshot()
	if !ok {
		return core.HealthHealthy
	}
	switch snap.APIStatus {
	case StatusOK:
		return core.HealthHealthy
	case StatusAuthFailed, StatusNoDevices:
		return core.HealthDegraded
	default:
		return core.HealthError
	}
}

func (p *Plugin) HealthMessage() string {
	snap, ok := p.coordinator.Snapshot()
	if !ok {
		return "waiting for first poll"
	}
	if snap.Error != "" {
		return snap.Error
	}
	return fmt.Sprintf("%d devices", len(snap.Devices))
}
