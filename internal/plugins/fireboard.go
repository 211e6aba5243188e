package plugins

import (
	"log/slog"

	"github.com/joshp123/gohome-fireboard/internal/config"
	"github.com/joshp123/gohome-fireboard/internal/core"
	"github.com/joshp123/gohome-fireboard/plugins/fireboard"
)

func init() {
	Register(func(cfg *config.Config, logger *slog.Logger) (core.Plugin, bool, error) {
		if cfg.Fireboard == nil {
			return nil, false, nil
		}
		p, err := fireboard.NewPlugin(cfg.Fireboard, logger)
		if err != nil {
			return nil, false, err
		}
		return p, true, nil
	})
}
