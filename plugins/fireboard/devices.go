package fireboard

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/joshp123/gohome-fireboard/internal/lookup"
)

const profileMissKey = "profile"

var (
	temperatureKeys = []string{"temp", "temperature", "current_temp", "value"}
	unitKeys        = []string{"unit", "units", "temp_unit"}
)

// GetProfile returns the account profile, fetched once per client. A missing
// profile endpoint is not an error.
func (c *Client) GetProfile(ctx context.Context) (map[string]any, error) {
	c.mu.Lock()
	profile := c.profile
	c.mu.Unlock()
	if profile != nil {
		return profile, nil
	}
	if _, missed := c.misses.Get(profileMissKey); missed {
		return nil, nil
	}

	value, err := c.resolve(ctx, profileFamily, nil, nil)
	if errors.Is(err, ErrNoWorkingEndpoint) {
		c.misses.SetDefault(profileMissKey, struct{}{})
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	profile, _ = value.(map[string]any)
	c.mu.Lock()
	c.profile = profile
	c.mu.Unlock()
	return profile, nil
}

// profileUserID returns the account id from an already fetched profile.
func (c *Client) profileUserID() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lookup.String(c.profile, "id", "pk", "user_id", "user.id")
}

// GetDevices lists the account's devices. It never returns nil; the error is
// set only when authentication fails or ctx is done.
func (c *Client) GetDevices(ctx context.Context) ([]Device, error) {
	vars := map[string]string{}
	if id, ok := c.profileUserID(); ok {
		vars["user"] = id
	}

	value, ok, hadCache, err := c.tryCached(ctx, devicesFamily, vars, nil)
	if err != nil {
		return []Device{}, err
	}
	if ok {
		return parseDevices(value), nil
	}

	profile, err := c.GetProfile(ctx)
	if err != nil {
		return []Device{}, err
	}
	if list, ok := lookup.List(profile, profileDeviceKeys...); ok && len(lookup.Objects(list)) > 0 {
		if eps := c.cached(profileFamily.name); len(eps) > 0 {
			c.remember(devicesFamily.name, "profile", eps[0])
		}
		return parseDevices(lookup.Objects(list)), nil
	}
	if id, ok := lookup.String(profile, "id", "pk", "user_id", "user.id"); ok {
		vars["user"] = id
	}

	if !hadCache {
		value, ok, err = c.discover(ctx, devicesFamily, vars, nil)
		if err != nil {
			return []Device{}, err
		}
		if ok {
			return parseDevices(value), nil
		}
	}

	value, ok, err = c.tryFallbacks(ctx, devicesFamily, vars, nil)
	if err != nil {
		return []Device{}, err
	}
	if ok {
		return parseDevices(value), nil
	}

	c.logger.Warn("no device endpoint answered")
	return []Device{}, nil
}

// GetDevice returns one device. Results are cached per id for the configured TTL.
func (c *Client) GetDevice(ctx context.Context, id string) (Device, bool, error) {
	if cached, ok := c.devices.Get(id); ok {
		return cached.(Device), true, nil
	}

	value, err := c.resolve(ctx, deviceFamily, map[string]string{"id": id}, nil)
	if errors.Is(err, ErrNoWorkingEndpoint) {
		return Device{}, false, nil
	}
	if err != nil {
		return Device{}, false, err
	}

	obj, _ := value.(map[string]any)
	device := parseDevice(obj)
	if device.ID == "" {
		device.ID = id
	}
	c.devices.SetDefault(id, device)
	return device, true, nil
}

// InvalidateDevice drops one device from the detail cache, or all when id is empty.
func (c *Client) InvalidateDevice(id string) {
	if id == "" {
		c.devices.Flush()
		return
	}
	c.devices.Delete(id)
}

// GetTemperatures returns the latest readings for a device, or an empty list.
func (c *Client) GetTemperatures(ctx context.Context, deviceID string) ([]Reading, error) {
	value, err := c.resolve(ctx, tempsFamily, map[string]string{"id": deviceID}, nil)
	if errors.Is(err, ErrNoWorkingEndpoint) {
		return []Reading{}, nil
	}
	if err != nil {
		return []Reading{}, err
	}
	return parseReadings(value), nil
}

// GetAlerts returns a device's alerts, always fetched fresh.
func (c *Client) GetAlerts(ctx context.Context, deviceID string) ([]Alert, error) {
	value, err := c.resolve(ctx, alertsFamily, map[string]string{"id": deviceID}, nil)
	if errors.Is(err, ErrNoWorkingEndpoint) {
		return []Alert{}, nil
	}
	if err != nil {
		return []Alert{}, err
	}
	objs, _ := value.([]map[string]any)
	out := make([]Alert, 0, len(objs))
	for _, obj := range objs {
		alert := parseAlert(obj)
		if alert.Device == "" {
			alert.Device = deviceID
		}
		out = append(out, alert)
	}
	return out, nil
}

func parseDevices(value any) []Device {
	objs, _ := value.([]map[string]any)
	out := make([]Device, 0, len(objs))
	for _, obj := range objs {
		d := parseDevice(obj)
		if d.ID == "" {
			continue
		}
		out = append(out, d)
	}
	return out
}

func parseDevice(obj map[string]any) Device {
	d := Device{Raw: obj}
	d.ID, _ = lookup.String(obj, "id", "device_id", "pk")
	d.UUID, _ = lookup.String(obj, "uuid")

	if title, ok := lookup.String(obj, "title", "name"); ok {
		d.Title = title
	} else if d.ID != "" {
		d.Title = "Fireboard " + d.ID
	}
	if model, ok := lookup.String(obj, "hw_ver", "model"); ok {
		d.Model = model
	} else {
		d.Model = defaultModel
	}

	list, _ := lookup.List(obj, "channels")
	for _, ch := range lookup.Objects(list) {
		d.Channels = append(d.Channels, parseChannel(ch))
	}
	if readings, ok := lookup.List(obj, "latest_temps"); ok {
		d.Temps = parseReadings(lookup.Objects(readings))
	}
	return d
}

func parseChannel(obj map[string]any) Channel {
	ch := Channel{Unit: unitOf(obj)}
	ch.ID, _ = lookup.String(obj, "id")
	ch.Number, _ = lookup.Int(obj, "channel", "channel_number", "number")
	if name, ok := lookup.String(obj, "channel_label", "name", "title", "label"); ok {
		ch.Name = name
	} else {
		ch.Name = "Channel " + strconv.Itoa(ch.Number)
	}
	if temp, ok := lookup.Float(obj, temperatureKeys...); ok {
		ch.Temperature = &temp
	}
	return ch
}

func parseReadings(value any) []Reading {
	objs, _ := value.([]map[string]any)
	out := make([]Reading, 0, len(objs))
	for _, obj := range objs {
		temp, ok := lookup.Float(obj, temperatureKeys...)
		if !ok {
			continue
		}
		r := Reading{Temperature: temp, Unit: unitOf(obj)}
		r.Channel, _ = lookup.Int(obj, "channel", "channel_number", "number")
		r.Created, _ = lookup.String(obj, "created", "created_at", "timestamp")
		out = append(out, r)
	}
	return out
}

// unitOf infers F or C from a unit string, then a numeric degreetype, and
// defaults to Fahrenheit when absent or ambiguous.
func unitOf(obj map[string]any) string {
	if raw, ok := lookup.String(obj, unitKeys...); ok {
		upper := strings.ToUpper(raw)
		hasF, hasC := strings.Contains(upper, "F"), strings.Contains(upper, "C")
		switch {
		case hasC && !hasF:
			return UnitCelsius
		default:
			return UnitFahrenheit
		}
	}
	if dt, ok := lookup.Int(obj, "degreetype"); ok && dt == 1 {
		return UnitCelsius
	}
	return UnitFahrenheit
}

// applyReadings copies the last reading per channel number onto the matching
// channel and adds channels seen only in readings.
func applyReadings(d *Device) {
	latest := make(map[int]Reading, len(d.Temps))
	order := make([]int, 0, len(d.Temps))
	for _, r := range d.Temps {
		if _, seen := latest[r.Channel]; !seen {
			order = append(order, r.Channel)
		}
		latest[r.Channel] = r
	}

	known := make(map[int]bool, len(d.Channels))
	for i := range d.Channels {
		ch := &d.Channels[i]
		known[ch.Number] = true
		r, ok := latest[ch.Number]
		if !ok {
			continue
		}
		temp := r.Temperature
		ch.Temperature = &temp
		ch.Unit = r.Unit
	}
	for _, n := range order {
		if known[n] || n == 0 {
			continue
		}
		r := latest[n]
		temp := r.Temperature
		d.Channels = append(d.Channels, Channel{
			Number:      n,
			Name:        "Channel " + strconv.Itoa(n),
			Temperature: &temp,
			Unit:        r.Unit,
		})
	}
}
