package plugin

import (
	"errors"
	"fmt"
)

// Plugin system errors.
var (
	// ErrInvalidPlugin is returned when a value cannot be used as a plugin.
	ErrInvalidPlugin = errors.New("invalid plugin")

	// ErrInvalidHookResult is returned when a hook returns something other
	// than a configuration table or nothing.
	ErrInvalidHookResult = errors.New("invalid hook result")

	// ErrInvalidPhase is returned for an unknown enforce value.
	ErrInvalidPhase = errors.New("invalid plugin phase")
)

// ExecutionError reports a failure raised by a plugin hook or predicate.
type ExecutionError struct {
	Plugin string
	Hook   string
	Err    error
}

func (e *ExecutionError) Error() string {
	name := e.Plugin
	if name == "" {
		name = AnonymousName
	}
	return fmt.Sprintf("plugin %q: %s hook: %v", name, e.Hook, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
