package models

import (
	"errors"
	"fmt"
)

// ErrPersistence wraps every settings, incident or lockdown write failure.
var ErrPersistence = errors.New("persistence failure")

// ConfigurationError rejects a settings value before anything is written.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
