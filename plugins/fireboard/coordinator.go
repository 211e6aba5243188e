package fireboard

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

const noDevicesMessage = "no devices found"

type source interface {
	GetProfile(ctx context.Context) (map[string]any, error)
	GetDevices(ctx context.Context) ([]Device, error)
	GetDevice(ctx context.Context, id string) (Device, bool, error)
	GetTemperatures(ctx context.Context, deviceID string) ([]Reading, error)
	GetAlerts(ctx context.Context, deviceID string) ([]Alert, error)
	WorkingEndpoints() map[string]string
}

// Coordinator polls the API on an interval and keeps the latest snapshot.
// Polls never overlap.
type Coordinator struct {
	src      source
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	pollMu sync.Mutex

	mu        sync.RWMutex
	snapshot  Snapshot
	has       bool
	listeners []func(Snapshot)
}

func NewCoordinator(client *Client, interval time.Duration, logger *slog.Logger) *Coordinator {
	return newCoordinator(client, interval, logger)
}

func newCoordinator(src source, interval time.Duration, logger *slog.Logger) *Coordinator {
	if interval <= 0 {
		interval = defaultScanInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		src:      src,
		interval: interval,
		logger:   logger.With("component", "coordinator"),
		now:      time.Now,
	}
}

// Run polls immediately and then once per interval until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info("starting poll loop", "interval", c.interval.String())
	c.Refresh(ctx)

	timer := time.NewTimer(c.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("poll loop stopped")
			return nil
		case <-timer.C:
			c.Refresh(ctx)
			timer.Reset(c.interval)
		}
	}
}

// Refresh runs one poll now, waiting for any poll in progress first.
func (c *Coordinator) Refresh(ctx context.Context) Snapshot {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()

	snap := c.fetch(ctx)

	c.mu.Lock()
	c.snapshot = snap
	c.has = true
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
	return snap
}

// Snapshot returns the latest poll result.
func (c *Coordinator) Snapshot() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot, c.has
}

// OnUpdate registers fn to receive every new snapshot.
func (c *Coordinator) OnUpdate(fn func(Snapshot)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

func (c *Coordinator) fetch(ctx context.Context) (snap Snapshot) {
	start := c.now()
	snap = Snapshot{
		Devices:          []Device{},
		WorkingEndpoints: map[string]string{},
		UpdatedAt:        start.UTC(),
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("poll panicked", "panic", r)
			snap = Snapshot{
				Profile:          snap.Profile,
				Devices:          []Device{},
				WorkingEndpoints: map[string]string{},
				Error:            fmt.Sprintf("unexpected error: %v", r),
				APIStatus:        StatusError,
				UpdatedAt:        start.UTC(),
			}
		}
	}()

	profile, err := c.src.GetProfile(ctx)
	if err != nil {
		return c.failed(snap, err)
	}
	snap.Profile = profile

	devices, err := c.src.GetDevices(ctx)
	snap.WorkingEndpoints = c.src.WorkingEndpoints()
	if err != nil {
		return c.failed(snap, err)
	}
	if len(devices) == 0 {
		c.logger.Warn(noDevicesMessage)
		snap.Error = noDevicesMessage
		snap.APIStatus = StatusNoDevices
		return snap
	}

	for i := range devices {
		if err := c.augment(ctx, &devices[i]); err != nil {
			snap.Devices = devices
			snap.WorkingEndpoints = c.src.WorkingEndpoints()
			return c.failed(snap, err)
		}
	}

	snap.Devices = devices
	snap.WorkingEndpoints = c.src.WorkingEndpoints()
	snap.APIStatus = StatusOK
	c.logger.Debug("poll complete", "devices", len(devices), "duration_ms", c.now().Sub(start).Milliseconds())
	return snap
}

// augment fills detail, temperatures and alerts for one device.
func (c *Coordinator) augment(ctx context.Context, d *Device) error {
	if len(d.Channels) == 0 {
		detail, ok, err := c.src.GetDevice(ctx, d.ID)
		if err != nil {
			return err
		}
		if ok {
			d.Channels = detail.Channels
			if d.UUID == "" {
				d.UUID = detail.UUID
			}
			if d.Model == defaultModel && detail.Model != "" {
				d.Model = detail.Model
			}
		}
	}

	temps, err := c.src.GetTemperatures(ctx, d.ID)
	if err != nil {
		return err
	}
	if len(temps) > 0 {
		d.Temps = temps
	}
	if d.Temps == nil {
		d.Temps = []Reading{}
	}
	applyReadings(d)

	alerts, err := c.src.GetAlerts(ctx, d.ID)
	if err != nil {
		return err
	}
	d.Alerts = alerts
	return nil
}

func (c *Coordinator) failed(snap Snapshot, err error) Snapshot {
	snap.Error = err.Error()
	if IsAuthError(err) {
		c.logger.Error("authentication failed", "error", err)
		snap.APIStatus = StatusAuthFailed
		return snap
	}
	c.logger.Error("poll failed", "error", err)
	snap.APIStatus = StatusError
	return snap
}
