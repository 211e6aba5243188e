package fireboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ValidationInfo describes an account that passed validation.
type ValidationInfo struct {
	Title   string
	Devices int
}

// ValidateConnection logs in when credentials are used and lists devices.
// Errors wrap ErrInvalidAuth, ErrCannotConnect or ErrUnknown.
func ValidateConnection(ctx context.Context, cfg Config, opts ...Option) (info ValidationInfo, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrUnknown, r)
		}
	}()

	client, err := NewClient(cfg, append([]Option{WithLogger(slog.Default())}, opts...)...)
	if err != nil {
		return ValidationInfo{}, fmt.Errorf("%w: %w", ErrUnknown, err)
	}

	if client.auth.CanReauthenticate() {
		if err := client.auth.Authenticate(ctx); err != nil {
			return ValidationInfo{}, classifyLoginError(err)
		}
	}

	devices, err := client.GetDevices(ctx)
	if err != nil {
		if IsAuthError(err) {
			return ValidationInfo{}, fmt.Errorf("%w: %w", ErrInvalidAuth, err)
		}
		return ValidationInfo{}, fmt.Errorf("%w: %w", ErrCannotConnect, err)
	}
	if len(devices) == 0 {
		return ValidationInfo{}, fmt.Errorf("%w: %s", ErrCannotConnect, noDevicesMessage)
	}

	return ValidationInfo{
		Title:   fmt.Sprintf("Fireboard (%d devices)", len(devices)),
		Devices: len(devices),
	}, nil
}

// classifyLoginError separates a server refusing credentials from a server
// that could not be reached.
func classifyLoginError(err error) error {
	type rejecter interface{ Rejected() bool }
	var r rejecter
	if errors.As(err, &r) && !r.Rejected() {
		return fmt.Errorf("%w: %w", ErrCannotConnect, err)
	}
	return fmt.Errorf("%w: %w", ErrInvalidAuth, err)
}

// FormErrorCode maps a validation error to a short form error code.
func FormErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidAuth):
		return "invalid_auth"
	case errors.Is(err, ErrCannotConnect):
		return "cannot_connect"
	default:
		return "unknown"
	}
}
