package fireboard

import (
	"strings"

	"github.com/joshp123/gohome-fireboard/internal/lookup"
)

// versions are swept in order; the unversioned form is always last.
var versions = []string{"v1", "v2", "v3", "v4", "drive", "cloud", "mobile", ""}

// Endpoint is a version prefix plus a path template. Templates may contain
// {id} and {user}.
type Endpoint struct {
	Version string
	Path    string
}

func (e Endpoint) String() string {
	if e.Version == "" {
		return e.Path
	}
	return e.Version + "/" + e.Path
}

// Resource expands the template. It reports false when a placeholder has no value.
func (e Endpoint) Resource(vars map[string]string) (string, bool) {
	out := e.String()
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	if strings.Contains(out, "{") {
		return "", false
	}
	return out, true
}

// family is one resource type with its own candidates and unwrapping.
type family struct {
	name      string
	shapes    []string
	fallbacks []Endpoint
	unwrap    func(any) (any, bool)
}

var (
	devicesFamily = &family{
		name:   "devices",
		shapes: []string{"devices", "device/list", "user/devices"},
		fallbacks: []Endpoint{
			{"v1", "devices/"},
			{"v1", "devices.json"},
			{"", "devices/"},
			{"v1", "users/{user}/devices/"},
		},
		unwrap: unwrapList("devices", "results", "user.devices", "profile.devices", "data.devices"),
	}

	deviceFamily = &family{
		name:   "device",
		shapes: []string{"devices/{id}", "device/{id}"},
		fallbacks: []Endpoint{
			{"v1", "devices/{id}/"},
			{"v1", "devices/{id}.json"},
			{"", "devices/{id}/"},
		},
		unwrap: unwrapObject("device"),
	}

	tempsFamily = &family{
		name:   "temps",
		shapes: []string{"devices/{id}/temps", "devices/{id}/temperatures"},
		fallbacks: []Endpoint{
			{"v1", "devices/{id}/temps/"},
			{"v1", "devices/{id}/temps.json"},
			{"", "devices/{id}/temps/"},
		},
		unwrap: unwrapList("temps", "latest_temps", "results", "channels"),
	}

	alertsFamily = &family{
		name:   "alerts",
		shapes: []string{"devices/{id}/alerts"},
		fallbacks: []Endpoint{
			{"v1", "devices/{id}/alerts/"},
			{"", "devices/{id}/alerts/"},
		},
		unwrap: unwrapList("alerts", "results"),
	}

	// Mutations never sweep; they try cached entries then these.
	alertCreateFamily = &family{
		name:      "alert_create",
		fallbacks: []Endpoint{{"v1", "alerts/"}, {"", "alerts/"}},
		unwrap:    unwrapObject("alert"),
	}

	alertItemFamily = &family{
		name:      "alert_item",
		fallbacks: []Endpoint{{"v1", "alerts/{id}/"}, {"", "alerts/{id}/"}},
		unwrap:    unwrapObject("alert"),
	}

	profileFamily = &family{
		name: "profile",
		fallbacks: []Endpoint{
			{"", "rest-auth/user/"},
			{"v1", "users/me/"},
			{"v1", "user/"},
			{"v1", "profile/"},
		},
		unwrap: unwrapObject("user"),
	}

	sessionsFamily = &family{
		name:   "sessions",
		shapes: []string{"sessions"},
		fallbacks: []Endpoint{
			{"v1", "sessions/"},
			{"", "sessions/"},
		},
		unwrap: unwrapList("sessions", "results"),
	}

	deviceSessionsFamily = &family{
		name:      "device_sessions",
		shapes:    []string{"devices/{id}/sessions"},
		fallbacks: []Endpoint{{"v1", "devices/{id}/sessions/"}},
		unwrap:    unwrapList("sessions", "results"),
	}

	sessionFamily = &family{
		name:      "session",
		shapes:    []string{"sessions/{id}"},
		fallbacks: []Endpoint{{"v1", "sessions/{id}/"}},
		unwrap:    unwrapObject("session"),
	}

	sessionTempsFamily = &family{
		name:      "session_temps",
		shapes:    []string{"sessions/{id}/temps"},
		fallbacks: []Endpoint{{"v1", "sessions/{id}/temps/"}},
		unwrap:    unwrapList("temps", "results", "data"),
	}
)

// profileDeviceKeys are where a profile may embed the account's devices.
var profileDeviceKeys = []string{"devices", "user.devices", "profile.devices", "data.devices"}

// unwrapList accepts a bare list or an object holding a list under one of keys.
func unwrapList(keys ...string) func(any) (any, bool) {
	return func(payload any) (any, bool) {
		switch v := payload.(type) {
		case []any:
			return lookup.Objects(v), true
		case map[string]any:
			if list, ok := lookup.List(v, keys...); ok {
				return lookup.Objects(list), true
			}
		}
		return nil, false
	}
}

// unwrapObject accepts an object, optionally nested under key, or a single-item list.
func unwrapObject(key string) func(any) (any, bool) {
	return func(payload any) (any, bool) {
		switch v := payload.(type) {
		case map[string]any:
			if inner, ok := lookup.Map(v, key); ok && len(inner) > 0 {
				return inner, true
			}
			if len(v) == 0 {
				return nil, false
			}
			return v, true
		case []any:
			if objs := lookup.Objects(v); len(objs) == 1 {
				return objs[0], true
			}
		}
		return nil, false
	}
}
