// Package plugin defines the kiln plugin model and the ordering protocol
// applied to plugin lists during configuration resolution.
//
// A plugin is any value with a Name. Optional behaviour is expressed through
// capability interfaces:
//   - Enforced: request the "pre" or "post" phase
//   - Conditional: carry an applicability predicate
//   - ConfigHook: contribute a partial configuration
//   - ConfigResolvedHook: observe the final configuration
//   - HookOrderer and HookProvider: refine per-hook order and presence
//
// Go plugins are usually built with New and functional options:
//
//	p := plugin.New("my-plugin",
//	    plugin.WithPhase(plugin.PhasePre),
//	    plugin.WithConfig(func(ctx context.Context, cfg map[string]any, env plugin.Env) (map[string]any, error) {
//	        return map[string]any{"base": "/app/"}, nil
//	    }),
//	)
//
// Script plugins are tables returned from a config file; FromValue adapts
// them.
//
// # Ordering
//
// SortFiltered flattens a nested list, drops plugins whose predicate does not
// hold, then partitions the rest into pre, normal and post buckets. Input
// order is kept inside each bucket.
//
// RunConfigHooks then calls each config hook in turn and folds the results
// into the working configuration. Hooks never run concurrently.
package plugin
