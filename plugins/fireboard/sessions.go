package fireboard

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/joshp123/gohome-fireboard/internal/lookup"
)

const DefaultSessionLimit = 10

// GetSessions lists recent cooks, for one device when deviceID is set.
func (c *Client) GetSessions(ctx context.Context, deviceID string, limit int) ([]CookSession, error) {
	if limit <= 0 {
		limit = DefaultSessionLimit
	}
	params := url.Values{"limit": []string{strconv.Itoa(limit)}}

	fam, vars := sessionsFamily, map[string]string(nil)
	if id := strings.TrimSpace(deviceID); id != "" {
		fam, vars = deviceSessionsFamily, map[string]string{"id": id}
	}

	value, err := c.resolve(ctx, fam, vars, params)
	if errors.Is(err, ErrNoWorkingEndpoint) {
		return []CookSession{}, nil
	}
	if err != nil {
		return []CookSession{}, err
	}

	objs, _ := value.([]map[string]any)
	out := make([]CookSession, 0, len(objs))
	for _, obj := range objs {
		out = append(out, parseSession(obj))
	}
	return out, nil
}

// GetSession returns one cook; ok is false when no endpoint knows it.
func (c *Client) GetSession(ctx context.Context, id string) (CookSession, bool, error) {
	value, err := c.resolve(ctx, sessionFamily, map[string]string{"id": id}, nil)
	if errors.Is(err, ErrNoWorkingEndpoint) {
		return CookSession{}, false, nil
	}
	if err != nil {
		return CookSession{}, false, err
	}
	obj, _ := value.(map[string]any)
	s := parseSession(obj)
	if s.ID == "" {
		s.ID = id
	}
	return s, true, nil
}

// GetSessionTemps returns the recorded series for a cook as delivered by the API.
func (c *Client) GetSessionTemps(ctx context.Context, id string) ([]map[string]any, error) {
	value, err := c.resolve(ctx, sessionTempsFamily, map[string]string{"id": id}, nil)
	if errors.Is(err, ErrNoWorkingEndpoint) {
		return []map[string]any{}, nil
	}
	if err != nil {
		return []map[string]any{}, err
	}
	objs, _ := value.([]map[string]any)
	if objs == nil {
		objs = []map[string]any{}
	}
	return objs, nil
}

func parseSession(obj map[string]any) CookSession {
	s := CookSession{Raw: obj}
	s.ID, _ = lookup.String(obj, "id", "pk")
	s.Title, _ = lookup.String(obj, "title", "name")
	s.Description, _ = lookup.String(obj, "description", "notes")
	s.Start, _ = lookup.String(obj, "start_time", "start", "created")
	s.End, _ = lookup.String(obj, "end_time", "end")
	return s
}
