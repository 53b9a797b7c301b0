package config

import (
	"context"
	"maps"
	"slices"

	"github.com/dshills/kiln/internal/config/merge"
	"github.com/dshills/kiln/internal/plugin"
)

// SubConfig derives the configuration of a nested bundle pass named id,
// such as a worker bundle. The derived configuration inherits the typed
// settings of r and gets a fresh plugin set from the worker plugin factory.
// overrides are merged over the non-plugin settings of r before the config
// hooks of the new plugins run.
//
// Deriving an id already present in the bundle chain fails with a
// *RecursionError before any plugin work.
func (r *Resolved) SubConfig(ctx context.Context, id string, overrides map[string]any) (*Resolved, error) {
	if slices.Contains(r.chain, id) {
		return nil, &RecursionError{Chain: r.BundleChain(), ID: id}
	}

	working := merge.Merge(merge.Without(r.raw, "plugins"), overrides)

	declared, err := r.workerPluginSet(ctx)
	if err != nil {
		return nil, err
	}
	sorted, err := plugin.SortFiltered(ctx, declared, working, r.env)
	if err != nil {
		return nil, err
	}

	folded, err := plugin.RunConfigHooks(ctx, working, sorted, r.env, nil)
	if err != nil {
		return nil, err
	}
	folded = merge.Without(folded, "plugins")

	input := merge.Clone(folded)
	merge.DeleteByPath(input, "worker.plugins")
	decoded, value, err := decodeSettings(input)
	if err != nil {
		return nil, err
	}

	child := &Resolved{
		Settings:               r.Settings.clone(),
		Command:                r.Command,
		IsProduction:           r.IsProduction,
		ConfigFile:             r.ConfigFile,
		ConfigFileDependencies: slices.Clone(r.ConfigFileDependencies),
		env:                    r.env,
		raw:                    folded,
		workerPlugins:          r.workerPlugins,
		parent:                 r,
		chain:                  append(r.BundleChain(), id),
		worker:                 true,
		resolver:               r.resolver,
		module:                 r.module,
	}
	child.Extra = decoded.Extra
	child.value = snapshot(value, child)

	finalize := UserPlugins
	if r.resolver != nil {
		finalize = r.resolver.finalize
	}
	if child.plugins, err = finalize(ctx, child, sorted); err != nil {
		return nil, err
	}
	if err := plugin.RunConfigResolved(ctx, child.plugins, child); err != nil {
		return nil, err
	}

	if r.resolver != nil {
		r.resolver.logger.Debug("derived %s config for %v", id, child.chain)
	}
	return child, nil
}

// workerPluginSet calls the worker plugin factory. The factory runs on every
// derivation because plugin instances are not shared between passes.
func (r *Resolved) workerPluginSet(ctx context.Context) (any, error) {
	switch f := r.workerPlugins.(type) {
	case nil:
		return nil, nil
	case plugin.Factory:
		return f(ctx)
	case func(context.Context) ([]plugin.Plugin, error):
		return f(ctx)
	case plugin.Callable:
		results, err := f.Call(ctx)
		if err != nil {
			return nil, &plugin.ExecutionError{Plugin: CoreWorker, Hook: "worker.plugins", Err: err}
		}
		if len(results) == 0 {
			return nil, nil
		}
		return results[0], nil
	default:
		return nil, &ValidationError{Field: "worker.plugins", Message: "must be a function returning a plugin list"}
	}
}

func (s Settings) clone() Settings {
	out := s
	out.EnvPrefix = slices.Clone(s.EnvPrefix)
	out.Define = merge.Clone(s.Define)
	out.Extra = merge.Clone(s.Extra)
	out.Resolve.Alias = maps.Clone(s.Resolve.Alias)
	out.Resolve.Extensions = slices.Clone(s.Resolve.Extensions)
	out.Resolve.Conditions = slices.Clone(s.Resolve.Conditions)
	out.Resolve.MainFields = slices.Clone(s.Resolve.MainFields)
	out.Resolve.Dedupe = slices.Clone(s.Resolve.Dedupe)
	out.Build.Target = slices.Clone(s.Build.Target)
	out.Build.ModulePreload = merge.Clone(s.Build.ModulePreload)
	out.CSS.Modules = merge.Clone(s.CSS.Modules)
	out.Server.Proxy = merge.Clone(s.Server.Proxy)
	return out
}
