package cacheclient

import (
	"errors"
	"fmt"
)

// ErrNilClient is returned when a network provider is built without a client handle.
var ErrNilClient = errors.New("cacheclient: nil client")

// ConfigError reports provider options that failed decoding or validation.
// It is returned at construction time and never wrapped into a Response.
type ConfigError struct {
	Provider string
	Errs     []error
}

func NewConfigError(provider string, errs ...error) *ConfigError {
	return &ConfigError{Provider: provider, Errs: errs}
}

func (e *ConfigError) Error() string {
	switch len(e.Errs) {
	case 0:
		return fmt.Sprintf("invalid configuration for cache provider %q", e.Provider)
	case 1:
		return fmt.Sprintf("invalid configuration for cache provider %q: %v", e.Provider, e.Errs[0])
	default:
		return fmt.Sprintf("invalid configuration for cache provider %q: %v", e.Provider, errors.Join(e.Errs...))
	}
}

func (e *ConfigError) Unwrap() []error {
	return e.Errs
}
