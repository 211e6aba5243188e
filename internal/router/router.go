package router

import (
	"google.golang.org/grpc"

	"github.com/joshp123/gohome-fireboard/internal/core"
)

// RegisterPlugins registers plugin services and core services on the gRPC server.
func RegisterPlugins(server *grpc.Server, plugins []core.Plugin) {
	core.NewRegistryService(plugins).Service().MustRegister(server)

	for _, p := range plugins {
		p.RegisterGRPC(server)
	}
}
