package config

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/kiln/internal/plugin"
)

// countingFactory returns a worker plugin factory that records its calls.
func countingFactory(calls *int, result map[string]any) plugin.Factory {
	return func(context.Context) ([]plugin.Plugin, error) {
		*calls++
		return []plugin.Plugin{returning("worker-plugin", result)}, nil
	}
}

func TestSubConfig_FreshPluginSets(t *testing.T) {
	var calls int
	root := resolve(t, newResolver(t), map[string]any{
		"configFile": false,
		"base":       "/app/",
		"plugins":    []any{plugin.New("root-plugin")},
		"worker":     map[string]any{"plugins": countingFactory(&calls, map[string]any{"workerOnly": true})},
	}, build)

	a, err := root.SubConfig(context.Background(), "worker-a", nil)
	if err != nil {
		t.Fatalf("SubConfig(worker-a) error = %v", err)
	}
	b, err := root.SubConfig(context.Background(), "worker-b", nil)
	if err != nil {
		t.Fatalf("SubConfig(worker-b) error = %v", err)
	}

	if calls != 2 {
		t.Errorf("factory called %d times, want 2", calls)
	}
	if a.Plugins()[0] == b.Plugins()[0] {
		t.Error("derived configurations share a plugin instance")
	}
	if diff := cmp.Diff([]string{"root-plugin"}, plugin.Names(root.Plugins())); diff != "" {
		t.Errorf("root plugins changed (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"worker-plugin"}, plugin.Names(a.Plugins())); diff != "" {
		t.Errorf("worker plugins (-want +got):\n%s", diff)
	}

	if a.Base != "/app/" || a.Mode != "production" {
		t.Errorf("inherited settings: Base = %q, Mode = %q", a.Base, a.Mode)
	}
	if a.Extra["workerOnly"] != true {
		t.Errorf("Extra = %v, want the worker hook result", a.Extra)
	}
	if _, ok := root.Extra["workerOnly"]; ok {
		t.Error("worker hook result leaked into the parent")
	}
}

func TestSubConfig_Chain(t *testing.T) {
	root := resolve(t, newResolver(t), map[string]any{"configFile": false}, serve)

	child, err := root.SubConfig(context.Background(), "a", nil)
	if err != nil {
		t.Fatalf("SubConfig(a) error = %v", err)
	}
	grandchild, err := child.SubConfig(context.Background(), "b", nil)
	if err != nil {
		t.Fatalf("SubConfig(b) error = %v", err)
	}

	if len(root.BundleChain()) != 0 || root.IsWorker() || root.Parent() != nil {
		t.Errorf("root: chain %v, worker %v, parent %v", root.BundleChain(), root.IsWorker(), root.Parent())
	}
	if diff := cmp.Diff([]string{"a"}, child.BundleChain()); diff != "" {
		t.Errorf("child chain (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b"}, grandchild.BundleChain()); diff != "" {
		t.Errorf("grandchild chain (-want +got):\n%s", diff)
	}
	if grandchild.Parent() != child || child.Parent() != root {
		t.Error("parent links are wrong")
	}
	if !child.IsWorker() || !grandchild.IsWorker() {
		t.Error("derived configurations are not marked as workers")
	}
	if v, _ := child.Get("isWorker"); v != true {
		t.Errorf("Get(isWorker) = %v", v)
	}

	chain := child.BundleChain()
	chain[0] = "mutated"
	if child.BundleChain()[0] != "a" {
		t.Error("BundleChain() exposes internal state")
	}
}

func TestSubConfig_RecursionCheckedFirst(t *testing.T) {
	var calls int
	root := resolve(t, newResolver(t), map[string]any{
		"configFile": false,
		"worker":     map[string]any{"plugins": countingFactory(&calls, nil)},
	}, build)

	child, err := root.SubConfig(context.Background(), "w", nil)
	if err != nil {
		t.Fatalf("SubConfig(w) error = %v", err)
	}
	calls = 0

	_, err = child.SubConfig(context.Background(), "w", nil)
	var recErr *RecursionError
	if !errors.As(err, &recErr) {
		t.Fatalf("SubConfig(w) again error = %v, want *RecursionError", err)
	}
	if recErr.ID != "w" {
		t.Errorf("ID = %q, want w", recErr.ID)
	}
	if diff := cmp.Diff([]string{"w"}, recErr.Chain); diff != "" {
		t.Errorf("Chain (-want +got):\n%s", diff)
	}
	if calls != 0 {
		t.Errorf("factory called %d times before the recursion check", calls)
	}
}

func TestSubConfig_Overrides(t *testing.T) {
	root := resolve(t, newResolver(t), map[string]any{
		"configFile": false,
		"define":     map[string]any{"A": int64(1)},
	}, serve)

	child, err := root.SubConfig(context.Background(), "w", map[string]any{"custom": "yes"})
	if err != nil {
		t.Fatalf("SubConfig() error = %v", err)
	}
	if child.Extra["custom"] != "yes" {
		t.Errorf("Extra = %v", child.Extra)
	}
	if v, _ := child.Get("custom"); v != "yes" {
		t.Errorf("Get(custom) = %v", v)
	}

	child.Define["A"] = int64(2)
	if root.Define["A"] != int64(1) {
		t.Error("derived settings share maps with the parent")
	}
}

func TestSubConfig_LuaWorkerFactory(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"kiln.config.mlua": `
return {
  worker = {
    format = "legacy",
    plugins = function()
      return {
        { name = "lua-worker", config = function() return { fromWorker = true } end },
      }
    end,
  },
}`,
	})
	root := resolve(t, newResolver(t, WithRoot(dir)), nil, build)

	if root.Worker.Format != "legacy" {
		t.Errorf("Worker.Format = %q", root.Worker.Format)
	}

	a, err := root.SubConfig(context.Background(), "a", nil)
	if err != nil {
		t.Fatalf("SubConfig(a) error = %v", err)
	}
	b, err := root.SubConfig(context.Background(), "b", nil)
	if err != nil {
		t.Fatalf("SubConfig(b) error = %v", err)
	}

	if diff := cmp.Diff([]string{"lua-worker"}, plugin.Names(a.Plugins())); diff != "" {
		t.Errorf("worker plugins (-want +got):\n%s", diff)
	}
	if a.Plugins()[0] == b.Plugins()[0] {
		t.Error("Lua factory result shared between passes")
	}
	if a.Extra["fromWorker"] != true {
		t.Errorf("Extra = %v", a.Extra)
	}
}

func TestSubConfig_InvalidWorkerPlugins(t *testing.T) {
	root := resolve(t, newResolver(t), map[string]any{
		"configFile": false,
		"worker":     map[string]any{"plugins": "not a function"},
	}, build)

	_, err := root.SubConfig(context.Background(), "w", nil)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "worker.plugins" {
		t.Errorf("SubConfig() error = %v, want *ValidationError for worker.plugins", err)
	}
}

func TestWorkerPlugin_BundleWorker(t *testing.T) {
	root := resolve(t, newResolver(t, WithFinalizer(DefaultFinalizer)), map[string]any{"configFile": false}, build)

	w, ok := WorkerPluginOf(root)
	if !ok {
		t.Fatal("root has no worker plugin")
	}
	child, err := w.BundleWorker(context.Background(), "entry.lua")
	if err != nil {
		t.Fatalf("BundleWorker() error = %v", err)
	}
	if diff := cmp.Diff([]string{"entry.lua"}, child.BundleChain()); diff != "" {
		t.Errorf("chain (-want +got):\n%s", diff)
	}

	nested, ok := WorkerPluginOf(child)
	if !ok {
		t.Fatal("derived configuration has no worker plugin")
	}
	if nested == w {
		t.Error("worker plugin shared with the parent")
	}
	var recErr *RecursionError
	if _, err := nested.BundleWorker(context.Background(), "entry.lua"); !errors.As(err, &recErr) {
		t.Errorf("nested BundleWorker() error = %v, want *RecursionError", err)
	}
}
