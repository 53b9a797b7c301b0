package lua

import "errors"

// Errors for Lua runtime operations.
var (
	// ErrStateClosed is returned when operating on a closed runtime.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrCircularRequire is returned when a module requires itself while
	// it is still loading.
	ErrCircularRequire = errors.New("circular require")

	// ErrNoHandler is returned when no source handler exists for an extension.
	ErrNoHandler = errors.New("no source handler for extension")

	// ErrModuleNotFound is returned when a require cannot be resolved.
	ErrModuleNotFound = errors.New("module not found")
)
