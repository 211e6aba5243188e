package plugins

import (
	"log/slog"

	"github.com/joshp123/gohome-fireboard/internal/config"
	"github.com/joshp123/gohome-fireboard/internal/core"
)

// Factory builds a plugin instance from the loaded config.
// It returns false when the plugin is not configured.
type Factory func(cfg *config.Config, logger *slog.Logger) (core.Plugin, bool, error)

var compiled []Factory

// Register adds a compiled-in plugin factory to the registry.
func Register(factory Factory) {
	compiled = append(compiled, factory)
}

// Compiled returns the configured plugin instances for this build.
func Compiled(cfg *config.Config, logger *slog.Logger) ([]core.Plugin, error) {
	if cfg == nil {
		return nil, nil
	}
	out := make([]core.Plugin, 0, len(compiled))
	for _, factory := range compiled {
		plugin, ok, err := factory(cfg, logger)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, plugin)
	}
	return out, nil
}
