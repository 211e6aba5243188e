package rate

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	xrate "golang.org/x/time/rate"
)

// RateLimitError is returned when calls are blocked.
type RateLimitError struct {
	Provider string
	Reason   string
	RetryAt  time.Time
}

func (e RateLimitError) Error() string {
	if e.RetryAt.IsZero() {
		return fmt.Sprintf("%s rate limited: %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("%s rate limited: %s (retry at %s)", e.Provider, e.Reason, e.RetryAt.UTC().Format(time.RFC3339))
}

type Decision struct {
	Allowed bool
	Reason  string
	RetryAt time.Time
}

type windowLimiter struct {
	window  Window
	limiter *xrate.Limiter
}

// Guard enforces rate limits for a provider.
type Guard struct {
	decl     Declaration
	limiters []windowLimiter

	mu       sync.Mutex
	cooldown time.Time
}

// NewGuard builds token buckets for every declared window. Each bucket starts full.
func NewGuard(decl Declaration) *Guard {
	g := &Guard{decl: decl}
	windows := make([]Window, 0, len(decl.Limits()))
	for w := range decl.Limits() {
		windows = append(windows, w)
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i] < windows[j] })

	for _, w := range windows {
		limit := decl.Limits()[w]
		if limit <= 0 {
			continue
		}
		every := xrate.Every(w.Duration() / time.Duration(limit))
		g.limiters = append(g.limiters, windowLimiter{window: w, limiter: xrate.NewLimiter(every, limit)})
	}
	return g
}

// WrapHTTP wraps an http.Client with rate-limit enforcement.
func WrapHTTP(decl Declaration, base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	client := *base
	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	client.Transport = &roundTripper{
		base:  transport,
		guard: NewGuard(decl),
	}
	return &client
}

type roundTripper struct {
	base  http.RoundTripper
	guard *Guard
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	decision := rt.guard.ShouldCall(time.Now())
	if !decision.Allowed {
		blockedCounter.WithLabelValues(rt.guard.decl.ProviderName(), decision.Reason).Inc()
		return nil, RateLimitError{
			Provider: rt.guard.decl.ProviderName(),
			Reason:   decision.Reason,
			RetryAt:  decision.RetryAt,
		}
	}

	resp, err := rt.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	rt.guard.RecordResponse(resp.StatusCode, resp.Header)
	return resp, nil
}

// ShouldCall consumes one token from every window, or none if any window is empty.
func (g *Guard) ShouldCall(now time.Time) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.cooldown.IsZero() && now.Before(g.cooldown) {
		return Decision{Allowed: false, Reason: "cooldown", RetryAt: g.cooldown}
	}

	reservations := make([]*xrate.Reservation, 0, len(g.limiters))
	for _, wl := range g.limiters {
		r := wl.limiter.ReserveN(now, 1)
		delay := r.DelayFrom(now)
		if !r.OK() || delay > 0 {
			r.CancelAt(now)
			for _, prev := range reservations {
				prev.CancelAt(now)
			}
			return Decision{Allowed: false, Reason: "budget", RetryAt: now.Add(delay)}
		}
		reservations = append(reservations, r)
	}

	for _, wl := range g.limiters {
		remainingGauge.WithLabelValues(g.decl.ProviderName(), wl.window.String()).Set(wl.limiter.TokensAt(now))
	}
	return Decision{Allowed: true}
}

// RecordResponse applies backoff signalled by the provider.
func (g *Guard) RecordResponse(status int, headers http.Header) {
	provider := g.decl.ProviderName()
	lastStatusGauge.WithLabelValues(provider).Set(float64(status))

	wait := headerSeconds(headers, g.decl.Headers().RetryAfter)
	if wait <= 0 {
		wait = headerSeconds(headers, g.decl.Headers().ResetAfter)
	}
	if wait <= 0 && status == http.StatusTooManyRequests {
		wait = g.decl.Cooldown()
	}
	if wait <= 0 {
		return
	}

	g.mu.Lock()
	g.cooldown = time.Now().Add(wait)
	g.mu.Unlock()
	retryAfterGauge.WithLabelValues(provider).Set(wait.Seconds())
}

func headerSeconds(h http.Header, key string) time.Duration {
	if key == "" {
		return 0
	}
	val := strings.TrimSpace(h.Get(key))
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(val); err == nil {
		return time.Until(at)
	}
	return 0
}
