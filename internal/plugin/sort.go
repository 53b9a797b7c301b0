package plugin

import (
	"context"
	"fmt"

	"github.com/dshills/kiln/internal/config/merge"
)

// Flatten turns an arbitrarily nested plugin list into a flat slice.
// nil and false entries are dropped. Script tables are adapted with FromValue.
func Flatten(v any) ([]Plugin, error) {
	var out []Plugin
	if err := flattenInto(&out, v); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(out *[]Plugin, v any) error {
	switch val := v.(type) {
	case nil:
		return nil
	case bool:
		if !val {
			return nil
		}
		return fmt.Errorf("%w: unexpected value true in plugin list", ErrInvalidPlugin)
	case []any:
		for _, item := range val {
			if err := flattenInto(out, item); err != nil {
				return err
			}
		}
		return nil
	case []Plugin:
		for _, item := range val {
			if item != nil {
				*out = append(*out, item)
			}
		}
		return nil
	case map[string]any:
		// An empty script table is an empty list.
		if len(val) == 0 {
			return nil
		}
	}

	p, err := FromValue(v)
	if err != nil {
		return err
	}
	*out = append(*out, p)
	return nil
}

// Filter keeps the plugins whose applicability predicate holds for cfg and env.
// cfg is not modified.
func Filter(ctx context.Context, plugins []Plugin, cfg map[string]any, env Env) ([]Plugin, error) {
	out := make([]Plugin, 0, len(plugins))
	var view map[string]any
	for _, p := range plugins {
		c, ok := p.(Conditional)
		if !ok {
			out = append(out, p)
			continue
		}
		// Predicates share one copy; writes never reach cfg.
		if view == nil {
			view = merge.Clone(cfg)
		}
		apply, err := c.Apply().Evaluate(ctx, view, env)
		if err != nil {
			return nil, &ExecutionError{Plugin: p.Name(), Hook: "apply", Err: err}
		}
		if apply {
			out = append(out, p)
		}
	}
	return out, nil
}

// PhaseOf returns the phase p is enforced into.
func PhaseOf(p Plugin) Phase {
	if e, ok := p.(Enforced); ok {
		return e.Enforce()
	}
	return PhaseNormal
}

// Partition splits plugins by phase, keeping input order within each bucket.
func Partition(plugins []Plugin) (pre, normal, post []Plugin) {
	for _, p := range plugins {
		switch PhaseOf(p) {
		case PhasePre:
			pre = append(pre, p)
		case PhasePost:
			post = append(post, p)
		default:
			normal = append(normal, p)
		}
	}
	return pre, normal, post
}

// Sort returns pre ++ normal ++ post.
func Sort(plugins []Plugin) []Plugin {
	pre, normal, post := Partition(plugins)
	out := make([]Plugin, 0, len(plugins))
	out = append(out, pre...)
	out = append(out, normal...)
	return append(out, post...)
}

// SortFiltered flattens v, drops inapplicable plugins and sorts the rest.
// Filtering happens before partitioning.
func SortFiltered(ctx context.Context, v any, cfg map[string]any, env Env) ([]Plugin, error) {
	flat, err := Flatten(v)
	if err != nil {
		return nil, err
	}
	applicable, err := Filter(ctx, flat, cfg, env)
	if err != nil {
		return nil, err
	}
	return Sort(applicable), nil
}
