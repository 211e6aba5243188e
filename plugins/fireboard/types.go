package fireboard

import (
	"strconv"
	"time"
)

const (
	UnitFahrenheit = "F"
	UnitCelsius    = "C"

	defaultModel = "Fireboard 2"
)

// Device is a thermometer as reported by the cloud. Only ID is guaranteed.
type Device struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	UUID     string         `json:"uuid,omitempty"`
	Model    string         `json:"model"`
	Channels []Channel      `json:"channels"`
	Temps    []Reading      `json:"temps"`
	Alerts   []Alert        `json:"alerts"`
	Raw      map[string]any `json:"raw,omitempty"`
}

// Channel is one probe input on a device.
type Channel struct {
	ID          string   `json:"id"`
	Number      int      `json:"channel"`
	Name        string   `json:"name"`
	Temperature *float64 `json:"temperature"`
	Unit        string   `json:"unit"`
}

// Key identifies the channel within its device, preferring the API id.
func (c Channel) Key() string {
	if c.ID != "" {
		return c.ID
	}
	return strconv.Itoa(c.Number)
}

// Reading is one entry from the temps resource.
type Reading struct {
	Channel     int     `json:"channel"`
	Temperature float64 `json:"temperature"`
	Unit        string  `json:"unit"`
	Created     string  `json:"created,omitempty"`
}

type Alert struct {
	ID      string         `json:"id"`
	Device  string         `json:"device"`
	Channel string         `json:"channel"`
	Min     *float64       `json:"min,omitempty"`
	Max     *float64       `json:"max,omitempty"`
	Enabled *bool          `json:"enabled,omitempty"`
	Raw     map[string]any `json:"raw,omitempty"`
}

// NewAlert is the create payload; nil fields are omitted from the request.
type NewAlert struct {
	Device  string
	Channel string
	Min     *float64
	Max     *float64
}

// AlertUpdate is the update payload; nil fields are omitted from the request.
type AlertUpdate struct {
	Min     *float64
	Max     *float64
	Enabled *bool
}

func (u AlertUpdate) Empty() bool {
	return u.Min == nil && u.Max == nil && u.Enabled == nil
}

// CookSession is a recorded cook.
type CookSession struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Start       string         `json:"start_time,omitempty"`
	End         string         `json:"end_time,omitempty"`
	Raw         map[string]any `json:"raw,omitempty"`
}

type APIStatus string

const (
	StatusOK         APIStatus = "ok"
	StatusNoDevices  APIStatus = "no_devices"
	StatusAuthFailed APIStatus = "auth_failed"
	StatusError      APIStatus = "error"
)

// Snapshot is the result of one poll. It replaces the previous one wholesale.
type Snapshot struct {
	Profile          map[string]any    `json:"profile,omitempty"`
	Devices          []Device          `json:"devices"`
	WorkingEndpoints map[string]string `json:"working_endpoints"`
	Error            string            `json:"error,omitempty"`
	APIStatus        APIStatus         `json:"api_status"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Device returns the device with the given id.
func (s Snapshot) Device(id string) (Device, bool) {
	for _, d := range s.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}
