package fireboard

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/joshp123/gohome-fireboard/internal/lookup"
)

// CreateAlert posts a new alert. Only the fields that are set are sent.
func (c *Client) CreateAlert(ctx context.Context, in NewAlert) (Alert, error) {
	in.Device = strings.TrimSpace(in.Device)
	in.Channel = strings.TrimSpace(in.Channel)
	if in.Device == "" || in.Channel == "" {
		return Alert{}, fmt.Errorf("%w: device and channel are required", ErrInvalidArgument)
	}

	body := map[string]any{"device": in.Device, "channel": in.Channel}
	if in.Min != nil {
		body["min"] = *in.Min
	}
	if in.Max != nil {
		body["max"] = *in.Max
	}

	payload, err := c.mutate(ctx, http.MethodPost, alertCreateFamily, nil, body, success)
	if err != nil {
		return Alert{}, fmt.Errorf("create alert: %w", err)
	}

	alert := Alert{Device: in.Device, Channel: in.Channel, Min: in.Min, Max: in.Max}
	if obj, ok := alertCreateFamily.unwrap(payload); ok {
		alert = mergeAlert(alert, parseAlert(obj.(map[string]any)))
	}
	c.logger.Info("created alert", "device_id", in.Device, "channel", in.Channel, "alert_id", alert.ID)
	return alert, nil
}

// UpdateAlert changes an existing alert with PUT.
func (c *Client) UpdateAlert(ctx context.Context, id string, update AlertUpdate) (Alert, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Alert{}, fmt.Errorf("%w: alert id is required", ErrInvalidArgument)
	}
	if update.Empty() {
		return Alert{}, fmt.Errorf("%w: nothing to update", ErrInvalidArgument)
	}

	body := map[string]any{}
	if update.Min != nil {
		body["min"] = *update.Min
	}
	if update.Max != nil {
		body["max"] = *update.Max
	}
	if update.Enabled != nil {
		body["enabled"] = *update.Enabled
	}

	payload, err := c.mutate(ctx, http.MethodPut, alertItemFamily, map[string]string{"id": id}, body, success)
	if err != nil {
		return Alert{}, fmt.Errorf("update alert %s: %w", id, err)
	}

	alert := Alert{ID: id, Min: update.Min, Max: update.Max, Enabled: update.Enabled}
	if obj, ok := alertItemFamily.unwrap(payload); ok {
		alert = mergeAlert(alert, parseAlert(obj.(map[string]any)))
	}
	return alert, nil
}

// DeleteAlert removes an alert. It succeeds on 200 or 204; when no candidate
// accepts the delete it returns ErrNoWorkingEndpoint.
func (c *Client) DeleteAlert(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: alert id is required", ErrInvalidArgument)
	}
	_, err := c.mutate(ctx, http.MethodDelete, alertItemFamily, map[string]string{"id": id}, nil, func(status int) bool {
		return status == http.StatusOK || status == http.StatusNoContent
	})
	if err != nil {
		return fmt.Errorf("delete alert %s: %w", id, err)
	}
	c.logger.Info("deleted alert", "alert_id", id)
	return nil
}

func parseAlert(obj map[string]any) Alert {
	a := Alert{Raw: obj}
	a.ID, _ = lookup.String(obj, "id", "pk")
	a.Device, _ = lookup.String(obj, "device", "device_id", "device.id")
	a.Channel, _ = lookup.String(obj, "channel", "channel_id", "channel.id")
	if v, ok := lookup.Float(obj, "min", "min_temp", "temp_min", "low"); ok {
		a.Min = &v
	}
	if v, ok := lookup.Float(obj, "max", "max_temp", "temp_max", "high"); ok {
		a.Max = &v
	}
	if v, ok := lookup.Bool(obj, "enabled", "active"); ok {
		a.Enabled = &v
	}
	return a
}

// mergeAlert prefers what the server echoed back over what was sent.
func mergeAlert(sent, got Alert) Alert {
	if got.ID != "" {
		sent.ID = got.ID
	}
	if got.Device != "" {
		sent.Device = got.Device
	}
	if got.Channel != "" {
		sent.Channel = got.Channel
	}
	if got.Min != nil {
		sent.Min = got.Min
	}
	if got.Max != nil {
		sent.Max = got.Max
	}
	if got.Enabled != nil {
		sent.Enabled = got.Enabled
	}
	sent.Raw = got.Raw
	return sent
}
