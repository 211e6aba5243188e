package fireboard

import (
	"context"
	"errors"

	"github.com/joshp123/gohome-fireboard/internal/session"
)

var (
	// ErrNoWorkingEndpoint means every candidate endpoint was tried without success.
	ErrNoWorkingEndpoint = errors.New("no working endpoint")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")

	// ErrUnauthorized is a 401 that survived the single re-authentication.
	ErrUnauthorized = errors.New("unauthorized")

	ErrInvalidAuth   = errors.New("invalid authentication")
	ErrCannotConnect = errors.New("cannot connect")
	ErrUnknown       = errors.New("unknown error")
)

// fatal reports errors that abort endpoint resolution instead of moving on
// to the next candidate. A per-call timeout is not fatal; a cancelled caller is.
func fatal(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	return IsAuthError(err) || ctx.Err() != nil
}

// IsAuthError reports whether err came from credentials being rejected.
func IsAuthError(err error) bool {
	return errors.Is(err, session.ErrAuthFailed) || errors.Is(err, ErrUnauthorized) || errors.Is(err, session.ErrNoCredentials)
}
