package loader

import (
	"path/filepath"

	"github.com/dshills/kiln/internal/bundle"
	"github.com/dshills/kiln/internal/plugin/lua"
)

func (l *Loader) legacyRuntime(root string) (*lua.Runtime, error) {
	if l.legacy != nil {
		return l.legacy, nil
	}
	rt, err := lua.New(
		lua.WithRoot(root),
		lua.WithResolver(l.runtimeResolver(bundle.RegimeLegacy)),
	)
	if err != nil {
		return nil, err
	}
	l.legacy = rt
	return rt, nil
}

// loadLegacy requires path through the shared runtime with its source
// replaced by code for this one load.
func (l *Loader) loadLegacy(path, code string) (any, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rt, err := l.legacyRuntime(filepath.Dir(path))
	if err != nil {
		return nil, err
	}

	rt.Evict(path)
	override := rt.Override(filepath.Ext(path), path, code)
	defer override.Restore()

	export, err := rt.Require(path)
	if err != nil {
		return nil, err
	}
	return unwrapInterop(export), nil
}

// unwrapInterop returns the default export of a legacy bundle.
func unwrapInterop(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	if marker, _ := m[bundle.InteropKey].(bool); !marker {
		return v
	}
	return m["default"]
}
