package bundle

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by a Resolver when a specifier has no target.
var ErrNotFound = errors.New("module not found")

// ResolutionError reports an import that could not be resolved from a
// config file or one of its inlined modules.
type ResolutionError struct {
	Specifier string
	Importer  string
	Regime    Regime

	// ResolvableUnderOther is set when the specifier resolves under the
	// opposite regime.
	ResolvableUnderOther bool

	Err error
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("cannot resolve %q from %s under the %s regime", e.Specifier, e.Importer, e.Regime)
	if e.ResolvableUnderOther {
		msg += fmt.Sprintf(" (it only resolves under the %s regime)", e.Regime.Other())
	}
	if e.Err != nil && !errors.Is(e.Err, ErrNotFound) {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// RegimeMismatchError reports a legacy config file importing a package that
// can only be loaded under the modern regime.
type RegimeMismatchError struct {
	Specifier string
	Importer  string
	Regime    Regime
	Required  Regime
}

func (e *RegimeMismatchError) Error() string {
	return fmt.Sprintf("%s imports %q, which only loads under the %s regime, but the config is loaded under the %s regime; rename it to %s",
		e.Importer, e.Specifier, e.Required, e.Regime, e.Required.Ext())
}

// SyntaxError reports a file that failed to parse while bundling.
type SyntaxError struct {
	Path string
	Err  error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error in %s: %v", e.Path, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}
