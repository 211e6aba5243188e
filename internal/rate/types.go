package rate

import "time"

// Window represents a provider rate-limit bucket.
type Window int

const (
	Minute Window = iota
	Hour
	Day
)

func (w Window) String() string {
	switch w {
	case Minute:
		return "minute"
	case Hour:
		return "hour"
	case Day:
		return "day"
	default:
		return "unknown"
	}
}

func (w Window) Duration() time.Duration {
	switch w {
	case Hour:
		return time.Hour
	case Day:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

// Headers names the response headers a provider uses to signal backoff.
type Headers struct {
	RetryAfter string
	ResetAfter string
}

func StandardHeaders() Headers {
	return Headers{
		RetryAfter: "Retry-After",
		ResetAfter: "ratelimit-reset",
	}
}

// Declaration defines a provider's rate limits and header mapping.
type Declaration struct {
	provider string
	limits   map[Window]int
	headers  Headers
	cooldown time.Duration
}

// Provider creates a new declaration for a provider.
func Provider(name string) Declaration {
	return Declaration{provider: name, headers: StandardHeaders()}
}

func (d Declaration) ProviderName() string {
	return d.provider
}

func (d Declaration) MaxRequestsPer(window Window, limit int) Declaration {
	limits := make(map[Window]int, len(d.limits)+1)
	for w, l := range d.limits {
		limits[w] = l
	}
	limits[window] = limit
	d.limits = limits
	return d
}

func (d Declaration) ReadHeaders(headers Headers) Declaration {
	d.headers = headers
	return d
}

// CooldownOn429 sets the pause applied after a 429 without a Retry-After header.
func (d Declaration) CooldownOn429(wait time.Duration) Declaration {
	d.cooldown = wait
	return d
}

func (d Declaration) Limits() map[Window]int {
	return d.limits
}

func (d Declaration) Headers() Headers {
	return d.headers
}

func (d Declaration) Cooldown() time.Duration {
	return d.cooldown
}

func (d Declaration) HasLimits() bool {
	return len(d.limits) > 0
}

// RateLimited is implemented by plugins that declare limits.
type RateLimited interface {
	RateLimits() Declaration
}
