package loader

import (
	"context"
	"fmt"

	"github.com/dshills/kiln/internal/bundle"
	"github.com/dshills/kiln/internal/config/merge"
	"github.com/dshills/kiln/internal/plugin"
	"github.com/dshills/kiln/internal/plugin/lua"
)

// Format is the syntax of a config file.
type Format string

const (
	FormatLua  Format = "lua"
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Module is a loaded config file.
type Module struct {
	// Path is the absolute config file path.
	Path string

	Format Format

	// Regime is meaningful for Lua config files only.
	Regime bundle.Regime

	// Dependencies are the files read to produce the config, the config
	// file first.
	Dependencies []string

	// Export is a map[string]any or a plugin.Callable factory taking the
	// environment.
	Export any

	runtime *lua.Runtime
}

func (m *Module) validate() error {
	switch m.Export.(type) {
	case map[string]any, plugin.Callable:
		return nil
	default:
		return &ValidationError{Path: m.Path, Got: describe(m.Export)}
	}
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "nil"
	case bool:
		return "boolean"
	case string:
		return "string"
	case int64, float64:
		return "number"
	case []any:
		return "list"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// IsFactory reports whether the export is a function of the environment.
func (m *Module) IsFactory() bool {
	_, ok := m.Export.(plugin.Callable)
	return ok
}

// Config evaluates the export for env. A factory is called with the
// environment table and must return a table.
func (m *Module) Config(ctx context.Context, env plugin.Env) (map[string]any, error) {
	switch export := m.Export.(type) {
	case map[string]any:
		return merge.Clone(export), nil
	case plugin.Callable:
		results, err := export.Call(ctx, env.Map())
		if err != nil {
			return nil, &ExecutionError{Path: m.Path, Err: err}
		}
		var v any
		if len(results) > 0 {
			v = results[0]
		}
		cfg, ok := v.(map[string]any)
		if !ok {
			return nil, &ValidationError{Path: m.Path, Got: "a function returning " + describe(v)}
		}
		return cfg, nil
	default:
		return nil, &ValidationError{Path: m.Path, Got: describe(m.Export)}
	}
}

// Close releases the runtime owned by a modern module. Functions in the
// export fail once the module is closed.
func (m *Module) Close() error {
	if m.runtime == nil {
		return nil
	}
	err := m.runtime.Close()
	m.runtime = nil
	return err
}
