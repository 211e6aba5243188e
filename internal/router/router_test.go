package router

import (
	"testing"

	"google.golang.org/grpc"

	"github.com/joshp123/gohome-fireboard/internal/core"
)

func TestRegisterPluginsExposesRegistry(t *testing.T) {
	server := grpc.NewServer()
	RegisterPlugins(server, []core.Plugin{})

	info := server.GetServiceInfo()
	svc, ok := info[core.RegistryServiceName]
	if !ok {
		t.Fatalf("registry service not registered: %v", info)
	}
	if len(svc.Methods) != 2 {
		t.Fatalf("expected 2 registry methods, got %d", len(svc.Methods))
	}
}
