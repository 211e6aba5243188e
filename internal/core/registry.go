package core

import (
	"context"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joshp123/gohome-fireboard/internal/rpc"
)

const RegistryServiceName = "gohome.registry.v1.Registry"

// PluginSummary is one ListPlugins row.
type PluginSummary struct {
	PluginID    string `json:"plugin_id"`
	DisplayName string `json:"display_name"`
	Version     string `json:"version"`
	Status      string `json:"status"`
}

type DashboardRef struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// PluginDescriptor is the DescribePlugin payload.
type PluginDescriptor struct {
	PluginID      string         `json:"plugin_id"`
	DisplayName   string         `json:"display_name"`
	Version       string         `json:"version"`
	Services      []string       `json:"services"`
	AgentsMD      string         `json:"agents_md"`
	Status        string         `json:"status"`
	HealthMessage string         `json:"health_message"`
	Dashboards    []DashboardRef `json:"dashboards"`
}

// RegistryService provides plugin discovery to clients.
type RegistryService struct {
	plugins []Plugin
	mu      sync.RWMutex
}

func NewRegistryService(plugins []Plugin) *RegistryService {
	return &RegistryService{plugins: plugins}
}

// Service exposes the registry over gRPC.
func (r *RegistryService) Service() rpc.Service {
	return rpc.Service{
		Name: RegistryServiceName,
		Methods: []rpc.Method{
			{Name: "ListPlugins", Handler: func(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
				return rpc.Encode("plugins", r.ListPlugins(ctx))
			}},
			{Name: "DescribePlugin", Handler: func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				id := req.GetFields()["plugin_id"].GetStringValue()
				if id == "" {
					return nil, status.Error(codes.InvalidArgument, "plugin_id is required")
				}
				desc, ok := r.DescribePlugin(ctx, id)
				if !ok {
					return nil, status.Errorf(codes.NotFound, "plugin %q not found", id)
				}
				return rpc.Encode("plugin", desc)
			}},
		},
	}
}

func (r *RegistryService) ListPlugins(ctx context.Context) []PluginSummary {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]PluginSummary, 0, len(r.plugins))
	for _, p := range r.plugins {
		manifest := p.Manifest()
		out = append(out, PluginSummary{
			PluginID:    manifest.PluginID,
			DisplayName: manifest.DisplayName,
			Version:     manifest.Version,
			Status:      string(p.Health()),
		})
	}
	return out
}

func (r *RegistryService) DescribePlugin(ctx context.Context, id string) (PluginDescriptor, bool) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		manifest := p.Manifest()
		if manifest.PluginID != id {
			continue
		}

		descriptor := PluginDescriptor{
			PluginID:      manifest.PluginID,
			DisplayName:   manifest.DisplayName,
			Version:       manifest.Version,
			Services:      manifest.Services,
			AgentsMD:      p.AgentsMD(),
			Status:        string(p.Health()),
			HealthMessage: p.HealthMessage(),
		}
		for _, d := range p.Dashboards() {
			descriptor.Dashboards = append(descriptor.Dashboards, DashboardRef{
				Name: d.Name,
				Path: "/dashboards/" + manifest.PluginID + "/" + d.Name + ".json",
			})
		}
		return descriptor, true
	}
	return PluginDescriptor{}, false
}
