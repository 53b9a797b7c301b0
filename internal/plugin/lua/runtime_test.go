package lua

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	rt, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { rt.Close() })
	return rt
}

func TestRuntime_DoString(t *testing.T) {
	rt := newRuntime(t)

	got, err := rt.DoString(`return 1 + 1, "x", {1, 2}, {a = true}, {}`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	want := []any{int64(2), "x", []any{int64(1), int64(2)}, map[string]any{"a": true}, map[string]any{}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DoString() (-want +got):\n%s", diff)
	}
}

func TestRuntime_Sandbox(t *testing.T) {
	rt := newRuntime(t)

	got, err := rt.DoString(`return dofile == nil, loadfile == nil, os.exit == nil, os.execute == nil, type(os.time)`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	want := []any{true, true, true, true, "function"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sandbox (-want +got):\n%s", diff)
	}
}

func TestRuntime_RequireCachesUntilEvicted(t *testing.T) {
	dir := t.TempDir()
	mod := writeFile(t, filepath.Join(dir, "counter.lua"), `
loads = (loads or 0) + 1
return { loads = loads }
`)
	rt := newRuntime(t)

	first, err := rt.Require(mod)
	if err != nil {
		t.Fatalf("Require() error = %v", err)
	}
	second, err := rt.Require(mod)
	if err != nil {
		t.Fatalf("Require() error = %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("cached export differs (-first +second):\n%s", diff)
	}
	if !rt.Cached(mod) {
		t.Error("Cached() = false after Require")
	}

	if !rt.Evict(mod) {
		t.Error("Evict() = false, want true")
	}
	third, err := rt.Require(mod)
	if err != nil {
		t.Fatalf("Require() error = %v", err)
	}
	if got := third.(map[string]any)["loads"]; got != int64(2) {
		t.Errorf("loads after evict = %v, want 2", got)
	}
}

func TestRuntime_ImportBypassesCache(t *testing.T) {
	dir := t.TempDir()
	mod := writeFile(t, filepath.Join(dir, "m.mlua"), `return { value = 1 }`)
	rt := newRuntime(t)

	if _, err := rt.Import(mod); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if rt.Cached(mod) {
		t.Error("Import() filled the cache")
	}
}

func TestRuntime_RelativeRequireAndBindings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "lib", "util.lua"), `
return { dir = __dirname, file = __filename }
`)
	entry := writeFile(t, filepath.Join(dir, "main.lua"), `
local util = require("./lib/util")
return { util = util, here = __filename }
`)
	rt := newRuntime(t)

	got, err := rt.Require(entry)
	if err != nil {
		t.Fatalf("Require() error = %v", err)
	}
	want := map[string]any{
		"util": map[string]any{
			"dir":  filepath.Join(dir, "lib"),
			"file": filepath.Join(dir, "lib", "util.lua"),
		},
		"here": entry,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Require() (-want +got):\n%s", diff)
	}
}

func TestRuntime_BareRequireUsesResolver(t *testing.T) {
	dir := t.TempDir()
	pkg := writeFile(t, filepath.Join(dir, "vendor", "pkg.lua"), `return "from package"`)
	entry := writeFile(t, filepath.Join(dir, "main.lua"), `return require("pkg")`)

	var gotImporter string
	rt := newRuntime(t, WithResolver(func(spec, importer string) (string, error) {
		gotImporter = importer
		if spec == "pkg" {
			return pkg, nil
		}
		return "", ErrModuleNotFound
	}))

	got, err := rt.Require(entry)
	if err != nil {
		t.Fatalf("Require() error = %v", err)
	}
	if got != "from package" {
		t.Errorf("Require() = %v", got)
	}
	if gotImporter != entry {
		t.Errorf("importer = %q, want %q", gotImporter, entry)
	}
}

func TestRuntime_CircularRequire(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.lua"), `return require("./b")`)
	writeFile(t, filepath.Join(dir, "b.lua"), `return require("./a")`)
	rt := newRuntime(t)

	if _, err := rt.Require(filepath.Join(dir, "a.lua")); err == nil {
		t.Fatal("Require() error = nil, want circular require failure")
	}
}

func TestRuntime_HostModule(t *testing.T) {
	rt := newRuntime(t)

	got, err := rt.DoString(`
local kiln = require("kiln")
local cfg = kiln.define_config({ base = "/a/", list = {1} })
return kiln.merge_config(cfg, { base = "/b/", list = {2} })
`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	want := map[string]any{"base": "/b/", "list": []any{int64(1), int64(2)}}
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("merge_config (-want +got):\n%s", diff)
	}
}

func TestRuntime_OverrideIsOneShot(t *testing.T) {
	dir := t.TempDir()
	mod := writeFile(t, filepath.Join(dir, "conf.clua"), `return "disk"`)
	rt := newRuntime(t)

	o := rt.Override(".clua", mod, `return "override"`)
	got, err := rt.Require(mod)
	o.Restore()
	if err != nil {
		t.Fatalf("Require() error = %v", err)
	}
	if got != "override" {
		t.Errorf("Require() = %v, want override", got)
	}
	if !o.Used() {
		t.Error("Used() = false after load")
	}

	rt.Evict(mod)
	got, err = rt.Require(mod)
	if err != nil {
		t.Fatalf("Require() error = %v", err)
	}
	if got != "disk" {
		t.Errorf("Require() after restore = %v, want disk", got)
	}
}

func TestRuntime_OverrideRestoreUnused(t *testing.T) {
	dir := t.TempDir()
	mod := writeFile(t, filepath.Join(dir, "conf.clua"), `return "disk"`)
	other := writeFile(t, filepath.Join(dir, "other.clua"), `return "other"`)
	rt := newRuntime(t)

	o := rt.Override(".clua", mod, `return "override"`)
	got, err := rt.Require(other)
	if err != nil {
		t.Fatalf("Require(other) error = %v", err)
	}
	if got != "other" {
		t.Errorf("Require(other) = %v, want other", got)
	}
	o.Restore()
	o.Restore()

	got, err = rt.Require(mod)
	if err != nil {
		t.Fatalf("Require() error = %v", err)
	}
	if got != "disk" {
		t.Errorf("Require() = %v, want disk", got)
	}
}

func TestRuntime_UnknownExtension(t *testing.T) {
	dir := t.TempDir()
	mod := writeFile(t, filepath.Join(dir, "conf.txt"), `return 1`)
	rt := newRuntime(t)

	_, err := rt.Require(mod)
	if !errors.Is(err, ErrNoHandler) {
		t.Errorf("Require() error = %v, want ErrNoHandler", err)
	}
}

func TestFunction_Call(t *testing.T) {
	rt := newRuntime(t)

	got, err := rt.DoString(`return function(a, b) return a + b, a .. "" end`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	fn, ok := got[0].(*Function)
	if !ok {
		t.Fatalf("result = %T, want *Function", got[0])
	}

	results, err := fn.Call(context.Background(), 2, 3)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if diff := cmp.Diff([]any{int64(5), "2"}, results); diff != "" {
		t.Errorf("Call() (-want +got):\n%s", diff)
	}

	_, err = rt.DoString(`error("x")`)
	if err == nil {
		t.Error("DoString(error) = nil error")
	}

	rt.Close()
	if _, err := fn.Call(context.Background()); !errors.Is(err, ErrStateClosed) {
		t.Errorf("Call() after Close error = %v, want ErrStateClosed", err)
	}
}

func TestIsBuiltin(t *testing.T) {
	tests := map[string]bool{
		"string":    true,
		"os":        true,
		"kiln":      true,
		"kiln.path": true,
		"kilnx":     false,
		"./kiln":    false,
		"lodash":    false,
	}
	for name, want := range tests {
		if got := IsBuiltin(name); got != want {
			t.Errorf("IsBuiltin(%q) = %v, want %v", name, got, want)
		}
	}
}
