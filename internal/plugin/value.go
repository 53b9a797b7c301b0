package plugin

import (
	"context"
	"fmt"
)

// FromValue adapts a dynamic value to a Plugin. Plugin values are returned
// unchanged. A map is read as a script plugin table:
//
//	{
//	  name = "my-plugin",              -- optional
//	  enforce = "pre",                 -- optional
//	  apply = "build",                 -- optional: bool, command or function(config, env)
//	  config = function(config, env) end,
//	  configResolved = { order = "post", handler = function(config) end },
//	}
func FromValue(v any) (Plugin, error) {
	switch val := v.(type) {
	case Plugin:
		return val, nil
	case map[string]any:
		return newTablePlugin(val)
	default:
		return nil, fmt.Errorf("%w: unsupported plugin value of type %T", ErrInvalidPlugin, v)
	}
}

type tableHook struct {
	order   Order
	handler Callable
}

// tablePlugin is a plugin declared as a script table.
type tablePlugin struct {
	name  string
	phase Phase
	apply Predicate
	hooks map[Hook]tableHook
}

func newTablePlugin(t map[string]any) (*tablePlugin, error) {
	name, _ := t["name"].(string)
	if name == "" {
		name = AnonymousName
	}

	p := &tablePlugin{name: name, hooks: make(map[Hook]tableHook)}

	if raw, ok := t["enforce"]; ok {
		s, isString := raw.(string)
		if !isString {
			return nil, fmt.Errorf("%w: plugin %q: enforce must be a string", ErrInvalidPlugin, name)
		}
		phase, err := ParsePhase(s)
		if err != nil {
			return nil, fmt.Errorf("plugin %q: %w", name, err)
		}
		p.phase = phase
	}

	apply, err := tableApply(name, t["apply"])
	if err != nil {
		return nil, err
	}
	p.apply = apply

	for _, h := range []Hook{HookConfig, HookConfigResolved} {
		raw, ok := t[string(h)]
		if !ok || raw == nil {
			continue
		}
		hook, err := tableHookOf(name, h, raw)
		if err != nil {
			return nil, err
		}
		p.hooks[h] = hook
	}

	return p, nil
}

func tableApply(name string, raw any) (Predicate, error) {
	switch v := raw.(type) {
	case nil:
		return Always(), nil
	case bool:
		return Static(v), nil
	case string:
		cmd := Command(v)
		if !cmd.Valid() {
			return Predicate{}, fmt.Errorf("%w: plugin %q: unknown apply command %q", ErrInvalidPlugin, name, v)
		}
		return OnCommand(cmd), nil
	case Callable:
		return When(func(ctx context.Context, cfg map[string]any, env Env) (bool, error) {
			results, err := v.Call(ctx, cfg, env.Map())
			if err != nil {
				return false, err
			}
			return len(results) > 0 && truthy(results[0]), nil
		}), nil
	default:
		return Predicate{}, fmt.Errorf("%w: plugin %q: apply must be a boolean, command or function", ErrInvalidPlugin, name)
	}
}

func tableHookOf(name string, h Hook, raw any) (tableHook, error) {
	switch v := raw.(type) {
	case Callable:
		return tableHook{handler: v}, nil
	case map[string]any:
		handler, ok := v["handler"].(Callable)
		if !ok {
			return tableHook{}, fmt.Errorf("%w: plugin %q: %s hook has no handler", ErrInvalidPlugin, name, h)
		}
		orderName, _ := v["order"].(string)
		order, err := ParseOrder(orderName)
		if err != nil {
			return tableHook{}, fmt.Errorf("%w: plugin %q: %v", ErrInvalidPlugin, name, err)
		}
		return tableHook{order: order, handler: handler}, nil
	default:
		return tableHook{}, fmt.Errorf("%w: plugin %q: %s hook must be a function", ErrInvalidPlugin, name, h)
	}
}

func truthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

func (p *tablePlugin) Name() string     { return p.name }
func (p *tablePlugin) Enforce() Phase   { return p.phase }
func (p *tablePlugin) Apply() Predicate { return p.apply }

func (p *tablePlugin) HasHook(h Hook) bool {
	_, ok := p.hooks[h]
	return ok
}

func (p *tablePlugin) HookOrder(h Hook) Order {
	return p.hooks[h].order
}

func (p *tablePlugin) Config(ctx context.Context, cfg map[string]any, env Env) (map[string]any, error) {
	hook, ok := p.hooks[HookConfig]
	if !ok {
		return nil, nil
	}
	results, err := hook.handler.Call(ctx, cfg, env.Map())
	if err != nil {
		return nil, err
	}
	if len(results) == 0 || results[0] == nil {
		return nil, nil
	}
	out, ok := results[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: config hook returned %T, want a table", ErrInvalidHookResult, results[0])
	}
	return out, nil
}

func (p *tablePlugin) ConfigResolved(ctx context.Context, cfg ResolvedConfig) error {
	hook, ok := p.hooks[HookConfigResolved]
	if !ok {
		return nil
	}
	_, err := hook.handler.Call(ctx, cfg.Value())
	return err
}
