package config

import (
	"context"
	"slices"

	"github.com/dshills/kiln/internal/plugin"
)

// Finalizer builds the final plugin list of cfg from the sorted, applicable
// user plugins. It runs after every typed setting has been resolved.
type Finalizer func(ctx context.Context, cfg *Resolved, user []plugin.Plugin) ([]plugin.Plugin, error)

// Core plugin names. Apart from the worker plugin, core plugins carry no
// hooks: they mark where the asset pipeline runs relative to user plugins.
const (
	CoreAlias          = "kiln:alias"
	CoreResolve        = "kiln:resolve"
	CoreCSS            = "kiln:css"
	CoreDefine         = "kiln:define"
	CoreWorker         = "kiln:worker"
	CoreManifest       = "kiln:manifest"
	CoreMinify         = "kiln:minify"
	CoreImportAnalysis = "kiln:import-analysis"
)

// DefaultFinalizer places the core plugins around the user phases:
//
//	alias, pre, resolve, css, define, normal, worker, build plugins, post,
//	import analysis
//
// Plugins that do not apply to the configuration are left out.
func DefaultFinalizer(_ context.Context, cfg *Resolved, user []plugin.Plugin) ([]plugin.Plugin, error) {
	pre, normal, post := plugin.Partition(user)
	out := make([]plugin.Plugin, 0, len(user)+8)

	if len(cfg.Resolve.Alias) > 0 {
		out = append(out, plugin.New(CoreAlias))
	}
	out = append(out, pre...)
	out = append(out, plugin.New(CoreResolve), plugin.New(CoreCSS))
	if len(cfg.Define) > 0 {
		out = append(out, plugin.New(CoreDefine))
	}
	out = append(out, normal...)
	out = append(out, &WorkerPlugin{cfg: cfg})

	if cfg.Command == plugin.CommandBuild {
		if cfg.Build.Manifest.Enabled {
			out = append(out, plugin.New(CoreManifest))
		}
		if cfg.Build.Minify.Enabled {
			out = append(out, plugin.New(CoreMinify))
		}
	}
	out = append(out, post...)

	if cfg.Command == plugin.CommandServe {
		out = append(out, plugin.New(CoreImportAnalysis))
	}
	return out, nil
}

// UserPlugins is a Finalizer that adds no core plugins.
func UserPlugins(_ context.Context, _ *Resolved, user []plugin.Plugin) ([]plugin.Plugin, error) {
	return slices.Clone(user), nil
}

// WorkerPlugin is the core plugin that bundles worker entries. Each worker
// bundle is built with its own configuration derived from the one the
// plugin was finalized into.
type WorkerPlugin struct {
	cfg *Resolved
}

// Name implements plugin.Plugin.
func (w *WorkerPlugin) Name() string { return CoreWorker }

// BundleWorker derives the configuration of the worker bundle id.
func (w *WorkerPlugin) BundleWorker(ctx context.Context, id string) (*Resolved, error) {
	return w.cfg.SubConfig(ctx, id, nil)
}

// WorkerPluginOf returns the worker plugin of cfg, if it has one.
func WorkerPluginOf(cfg *Resolved) (*WorkerPlugin, bool) {
	for _, p := range cfg.plugins {
		if w, ok := p.(*WorkerPlugin); ok {
			return w, true
		}
	}
	return nil, false
}
