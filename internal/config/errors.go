package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCommand is returned when the environment names an unknown command.
var ErrInvalidCommand = errors.New("invalid command")

// ValidationError describes a resolved setting that failed validation.
type ValidationError struct {
	// Field is the dot path of the setting, e.g. "server.port".
	Field string
	// Message describes the failure.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Message)
}

// ValidationErrors collects every failed setting of one resolution.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the individual failures to errors.As.
func (e ValidationErrors) Unwrap() []error {
	errs := make([]error, len(e))
	for i, err := range e {
		errs[i] = err
	}
	return errs
}

// RecursionError is returned when deriving a sub-configuration would repeat
// an identifier already present in the bundle chain.
type RecursionError struct {
	Chain []string
	ID    string
}

func (e *RecursionError) Error() string {
	return fmt.Sprintf("recursive sub-configuration %q: already in bundle chain [%s]", e.ID, strings.Join(e.Chain, " > "))
}
