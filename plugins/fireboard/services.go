package fireboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joshp123/gohome-fireboard/internal/lookup"
)

// Services implements the user-invokable actions shared by the gRPC, HTTP
// and MQTT surfaces.
type Services struct {
	client      *Client
	coordinator *Coordinator
	logger      *slog.Logger
}

func NewServices(client *Client, coordinator *Coordinator, logger *slog.Logger) *Services {
	if logger == nil {
		logger = slog.Default()
	}
	return &Services{client: client, coordinator: coordinator, logger: logger.With("component", "services")}
}

type CreateAlertRequest struct {
	DeviceID  string
	ChannelID string
	MinTemp   *float64
	MaxTemp   *float64
}

type UpdateAlertRequest struct {
	AlertID string
	Update  AlertUpdate
}

// ParseCreateAlert reads create_alert arguments. Ids may be strings or
// numbers; temperatures may be numbers or numeric strings.
func ParseCreateAlert(args map[string]any) (CreateAlertRequest, error) {
	req := CreateAlertRequest{}
	var ok bool
	if req.DeviceID, ok = lookup.String(args, "device_id"); !ok {
		return req, fmt.Errorf("%w: device_id is required", ErrInvalidArgument)
	}
	if req.ChannelID, ok = lookup.String(args, "channel_id"); !ok {
		return req, fmt.Errorf("%w: channel_id is required", ErrInvalidArgument)
	}
	var err error
	if req.MinTemp, err = optionalFloat(args, "min_temp"); err != nil {
		return req, err
	}
	if req.MaxTemp, err = optionalFloat(args, "max_temp"); err != nil {
		return req, err
	}
	if req.MinTemp != nil && req.MaxTemp != nil && *req.MinTemp > *req.MaxTemp {
		return req, fmt.Errorf("%w: min_temp must not exceed max_temp", ErrInvalidArgument)
	}
	return req, nil
}

func ParseUpdateAlert(args map[string]any) (UpdateAlertRequest, error) {
	req := UpdateAlertRequest{}
	var ok bool
	if req.AlertID, ok = lookup.String(args, "alert_id"); !ok {
		return req, fmt.Errorf("%w: alert_id is required", ErrInvalidArgument)
	}
	var err error
	if req.Update.Min, err = optionalFloat(args, "min_temp"); err != nil {
		return req, err
	}
	if req.Update.Max, err = optionalFloat(args, "max_temp"); err != nil {
		return req, err
	}
	if v, present := args["enabled"]; present && v != nil {
		b, ok := lookup.Bool(args, "enabled")
		if !ok {
			return req, fmt.Errorf("%w: enabled must be a boolean", ErrInvalidArgument)
		}
		req.Update.Enabled = &b
	}
	if req.Update.Empty() {
		return req, fmt.Errorf("%w: one of min_temp, max_temp or enabled is required", ErrInvalidArgument)
	}
	return req, nil
}

// ParseAlertID reads the alert_id argument of delete_alert.
func ParseAlertID(args map[string]any) (string, error) {
	id, ok := lookup.String(args, "alert_id")
	if !ok {
		return "", fmt.Errorf("%w: alert_id is required", ErrInvalidArgument)
	}
	return id, nil
}

// ParseDeviceID reads the optional device_id argument of refresh_data.
func ParseDeviceID(args map[string]any) string {
	id, _ := lookup.String(args, "device_id")
	return id
}

func optionalFloat(args map[string]any, key string) (*float64, error) {
	v, present := args[key]
	if !present || v == nil {
		return nil, nil
	}
	if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
		return nil, nil
	}
	f, ok := lookup.AsFloat(v)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a number", ErrInvalidArgument, key)
	}
	return &f, nil
}

// CreateAlert creates the alert and refreshes the snapshot.
func (s *Services) CreateAlert(ctx context.Context, req CreateAlertRequest) (Alert, error) {
	alert, err := s.client.CreateAlert(ctx, NewAlert{
		Device:  req.DeviceID,
		Channel: req.ChannelID,
		Min:     req.MinTemp,
		Max:     req.MaxTemp,
	})
	if err != nil {
		s.logger.Error("create alert failed", "device_id", req.DeviceID, "channel_id", req.ChannelID, "error", err)
		return Alert{}, err
	}
	s.refresh(ctx)
	return alert, nil
}

func (s *Services) UpdateAlert(ctx context.Context, req UpdateAlertRequest) (Alert, error) {
	alert, err := s.client.UpdateAlert(ctx, req.AlertID, req.Update)
	if err != nil {
		s.logger.Error("update alert failed", "alert_id", req.AlertID, "error", err)
		return Alert{}, err
	}
	s.refresh(ctx)
	return alert, nil
}

func (s *Services) DeleteAlert(ctx context.Context, alertID string) error {
	if err := s.client.DeleteAlert(ctx, alertID); err != nil {
		s.logger.Error("delete alert failed", "alert_id", alertID, "error", err)
		return err
	}
	s.refresh(ctx)
	return nil
}

// RefreshData polls now. A device id also drops that device's cached detail.
func (s *Services) RefreshData(ctx context.Context, deviceID string) Snapshot {
	if deviceID != "" {
		s.client.InvalidateDevice(deviceID)
	}
	snap := s.coordinator.Refresh(ctx)
	if deviceID != "" {
		s.logger.Info("refreshed fireboard data", "device_id", deviceID)
	} else {
		s.logger.Info("refreshed fireboard data")
	}
	return snap
}

func (s *Services) refresh(ctx context.Context) {
	if s.coordinator != nil {
		s.coordinator.Refresh(ctx)
	}
}
