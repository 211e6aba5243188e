package fireboard

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/joshp123/gohome-fireboard/internal/lookup"
)

// cacheEntry is one working endpoint. Entries keep insertion order and the
// first entry stored for a key wins.
type cacheEntry struct {
	key    string
	family string
	ep     Endpoint
}

func entryKey(family, shape string) string {
	return family + ":" + shape
}

// missKey scopes the failed-discovery memo to the family and its path
// variables, so one unknown device does not block sweeps for another.
func missKey(family string, vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(family)
	for _, k := range keys {
		b.WriteString("|" + k + "=" + vars[k])
	}
	return b.String()
}

func (c *Client) cached(family string) []Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Endpoint
	for _, e := range c.entries {
		if e.family == family {
			out = append(out, e.ep)
		}
	}
	return out
}

func (c *Client) remember(family, shape string, ep Endpoint) {
	key := entryKey(family, shape)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.key == key {
			return
		}
	}
	c.entries = append(c.entries, cacheEntry{key: key, family: family, ep: ep})
	c.logger.Info("learned endpoint", "key", key, "endpoint", ep.String())
}

// WorkingEndpoints reports the learned endpoint per cache key.
func (c *Client) WorkingEndpoints() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.entries))
	for _, e := range c.entries {
		out[e.key] = e.ep.String()
	}
	return out
}

// attempt calls one candidate. Only errors that should stop resolution are
// returned; anything else is logged and reported as status 0.
func (c *Client) attempt(ctx context.Context, method string, ep Endpoint, vars map[string]string, params url.Values, body any) (any, int, error) {
	resource, ok := ep.Resource(vars)
	if !ok {
		return nil, 0, nil
	}
	payload, status, err := c.Request(ctx, method, resource, params, body)
	if err != nil {
		if fatal(ctx, err) {
			return nil, 0, err
		}
		c.logger.Debug("candidate failed", "resource", resource, "error", err)
		return nil, 0, nil
	}
	if err := c.unauthorized(status); err != nil {
		return nil, status, err
	}
	return payload, status, nil
}

// resolve finds a working endpoint for a read: cached entries, then a
// discovery sweep when nothing is cached, then the fallback list.
func (c *Client) resolve(ctx context.Context, fam *family, vars map[string]string, params url.Values) (any, error) {
	value, ok, hadCache, err := c.tryCached(ctx, fam, vars, params)
	if err != nil || ok {
		return value, err
	}
	if !hadCache {
		value, ok, err = c.discover(ctx, fam, vars, params)
		if err != nil || ok {
			return value, err
		}
	}
	value, ok, err = c.tryFallbacks(ctx, fam, vars, params)
	if err != nil || ok {
		return value, err
	}
	return nil, ErrNoWorkingEndpoint
}

func (c *Client) tryCached(ctx context.Context, fam *family, vars map[string]string, params url.Values) (any, bool, bool, error) {
	eps := c.cached(fam.name)
	for _, ep := range eps {
		payload, status, err := c.attempt(ctx, http.MethodGet, ep, vars, params, nil)
		if err != nil {
			return nil, false, true, err
		}
		if status != http.StatusOK {
			continue
		}
		if value, ok := fam.unwrap(payload); ok {
			return value, true, true, nil
		}
	}
	return nil, false, len(eps) > 0, nil
}

// discover sweeps versions (outer) by shapes (inner). Every accepted
// candidate is cached under its shape key; the sweep does not stop early.
// The first payload that unwraps is returned so it need not be fetched again.
func (c *Client) discover(ctx context.Context, fam *family, vars map[string]string, params url.Values) (any, bool, error) {
	if len(fam.shapes) == 0 {
		return nil, false, nil
	}
	if _, missed := c.misses.Get(missKey(fam.name, vars)); missed {
		return nil, false, nil
	}

	var (
		result   any
		found    bool
		accepted int
	)
	for _, version := range versions {
		for _, shape := range fam.shapes {
			ep := Endpoint{Version: version, Path: shape}
			payload, status, err := c.attempt(ctx, http.MethodGet, ep, vars, params, nil)
			if err != nil {
				return nil, false, err
			}
			if status != http.StatusOK || !lookup.NonEmpty(payload) {
				discoveryProbes.WithLabelValues(fam.name, "miss").Inc()
				continue
			}
			discoveryProbes.WithLabelValues(fam.name, "hit").Inc()
			accepted++
			c.remember(fam.name, shape, ep)
			if !found {
				result, found = fam.unwrap(payload)
			}
		}
	}

	if accepted == 0 {
		c.misses.SetDefault(missKey(fam.name, vars), struct{}{})
		c.logger.Info("discovery found no endpoint", "family", fam.name)
	}
	return result, found, nil
}

func (c *Client) tryFallbacks(ctx context.Context, fam *family, vars map[string]string, params url.Values) (any, bool, error) {
	for _, ep := range fam.fallbacks {
		payload, status, err := c.attempt(ctx, http.MethodGet, ep, vars, params, nil)
		if err != nil {
			return nil, false, err
		}
		if status != http.StatusOK {
			continue
		}
		if value, ok := fam.unwrap(payload); ok {
			c.remember(fam.name, ep.Path, ep)
			return value, true, nil
		}
	}
	return nil, false, nil
}

// mutate sends a write to cached then fallback endpoints until accept(status)
// holds. Mutations never sweep.
func (c *Client) mutate(ctx context.Context, method string, fam *family, vars map[string]string, body any, accept func(int) bool) (any, error) {
	candidates := append(c.cached(fam.name), fam.fallbacks...)
	seen := make(map[string]bool, len(candidates))
	lastStatus := 0
	for _, ep := range candidates {
		if seen[ep.String()] {
			continue
		}
		seen[ep.String()] = true

		payload, status, err := c.attempt(ctx, method, ep, vars, nil, body)
		if err != nil {
			return nil, err
		}
		if status != 0 {
			lastStatus = status
		}
		if accept(status) {
			c.remember(fam.name, ep.Path, ep)
			return payload, nil
		}
	}
	if lastStatus == http.StatusNotFound {
		return nil, errors.Join(ErrNoWorkingEndpoint, ErrNotFound)
	}
	return nil, ErrNoWorkingEndpoint
}

func success(status int) bool {
	return status >= 200 && status <= 299
}
