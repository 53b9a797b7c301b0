package plugin

import (
	"context"

	"github.com/dshills/kiln/internal/config/merge"
)

// MergeFunc folds a hook result into the working configuration.
type MergeFunc func(left, right map[string]any) map[string]any

// RunConfigHooks calls the config hook of every plugin in hook order, one
// at a time, folding each non-nil result into the working configuration with
// mergeFn. A nil mergeFn selects merge.Merge. The input map is not modified.
func RunConfigHooks(ctx context.Context, cfg map[string]any, plugins []Plugin, env Env, mergeFn MergeFunc) (map[string]any, error) {
	if mergeFn == nil {
		mergeFn = merge.Merge
	}

	current := merge.Clone(cfg)
	if current == nil {
		current = make(map[string]any)
	}

	for _, p := range SortedByHook(plugins, HookConfig) {
		hook := p.(ConfigHook)
		result, err := hook.Config(ctx, merge.Clone(current), env)
		if err != nil {
			return nil, &ExecutionError{Plugin: p.Name(), Hook: string(HookConfig), Err: err}
		}
		if result != nil {
			current = mergeFn(current, result)
		}
	}

	return current, nil
}

// RunConfigResolved calls every configResolved hook in hook order.
func RunConfigResolved(ctx context.Context, plugins []Plugin, cfg ResolvedConfig) error {
	for _, p := range SortedByHook(plugins, HookConfigResolved) {
		if err := p.(ConfigResolvedHook).ConfigResolved(ctx, cfg); err != nil {
			return &ExecutionError{Plugin: p.Name(), Hook: string(HookConfigResolved), Err: err}
		}
	}
	return nil
}
