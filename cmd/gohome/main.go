package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshp123/gohome-fireboard/internal/config"
	"github.com/joshp123/gohome-fireboard/internal/core"
	"github.com/joshp123/gohome-fireboard/internal/logging"
	"github.com/joshp123/gohome-fireboard/internal/mqtt"
	"github.com/joshp123/gohome-fireboard/internal/plugins"
	"github.com/joshp123/gohome-fireboard/internal/router"
	"github.com/joshp123/gohome-fireboard/internal/server"
)

var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", envOrDefault("GOHOME_CONFIG", config.DefaultPath), "Path to config.yaml")
	flag.Parse()

	if err := run(*configPath); err != nil {
		logging.Default().Error("gohome exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging, version).Logger

	compiled, err := plugins.Compiled(cfg, logger)
	if err != nil {
		return fmt.Errorf("build plugins: %w", err)
	}
	enabled, all := core.EnabledSet(cfg.Core.Plugins)
	if err := core.ValidateEnabledPlugins(compiled, enabled, all); err != nil {
		return err
	}
	active := core.FilterPlugins(compiled, enabled, all)
	if err := core.ValidatePlugins(active); err != nil {
		return err
	}
	for _, p := range active {
		logger.Info("plugin enabled", "plugin", p.ID(), "version", p.Manifest().Version)
	}

	registry := core.MetricsRegistry(active)
	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "gohome_build_info",
		Help:        "Build information",
		ConstLabels: prometheus.Labels{"version": version},
	}, func() float64 { return 1 }))

	if err := core.WriteDashboards(cfg.Core.DashboardDir, active); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	grpcServer, err := server.NewGRPCServer(cfg.Core.GRPCAddr, logger)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	router.RegisterPlugins(grpcServer.Server, active)

	httpServer := server.NewHTTPServer(cfg.Core.HTTPAddr, server.NewEngine(active, registry, logger))

	if cfg.MQTT.Enabled {
		broker, err := mqtt.Connect(cfg.MQTT, logger)
		if err != nil {
			return err
		}
		defer broker.Close()
		topics := mqtt.TopicsFrom(cfg.MQTT)
		for _, p := range active {
			if reg, ok := p.(core.MQTTRegistrant); ok {
				if err := reg.RegisterMQTT(ctx, broker, topics); err != nil {
					return fmt.Errorf("mqtt %s: %w", p.ID(), err)
				}
			}
		}
	}

	var wg sync.WaitGroup
	for _, p := range active {
		runner, ok := p.(core.Runner)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(id string, runner core.Runner) {
			defer wg.Done()
			if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("plugin stopped", "plugin", id, "error", err)
			}
		}(p.ID(), runner)
	}

	errs := make(chan error, 2)
	go func() { errs <- httpServer.ListenAndServe() }()
	go func() { errs <- grpcServer.Serve() }()
	logger.Info("gohome started", "grpc_addr", cfg.Core.GRPCAddr, "http_addr", cfg.Core.HTTPAddr)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errs:
		logger.Error("server failed", "error", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("http shutdown", "error", serr)
	}
	grpcServer.Server.GracefulStop()
	wg.Wait()
	return err
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
