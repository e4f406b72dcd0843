package errors

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownTool      = errors.New("unknown tool requested")
	ErrMaxToolTurns     = errors.New("max tool turns exceeded")
	ErrUnknownProvider  = errors.New("unknown provider")
	ErrInvalidArguments = errors.New("invalid tool arguments")
	ErrConfig           = errors.New("configuration error")
	ErrSessionNotFound  = errors.New("session not found")
	ErrEmptyMessage     = errors.New("empty message")
)

// ConfigError reports a missing or invalid configuration value.
// It matches ErrConfig under errors.Is.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// Missing returns a ConfigError for an absent required value.
func Missing(field, hint string) *ConfigError {
	reason := "is required"
	if hint != "" {
		reason += " (" + hint + ")"
	}
	return &ConfigError{Field: field, Reason: reason}
}
