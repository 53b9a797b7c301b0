package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/kiln/internal/config"
	"github.com/dshills/kiln/internal/config/notify"
	"github.com/dshills/kiln/internal/logging"
	"github.com/dshills/kiln/internal/plugin"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(BuildInfo{Version: "test", Commit: "abc", Date: "today"}, &stdout, &stderr)
	cmd.SetArgs(append(args, "--log-level", "silent"))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestConfigCommand_JSON(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "kiln.config.clua"), `
return {
  base = "/app",
  plugins = {
    { name = "hello", config = function(cfg) return { define = { HELLO = "world" } } end },
  },
}
`)

	out, err := execute(t, "config", "build", "--root", root, "--format", "json")
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if got["base"] != "/app/" {
		t.Errorf("base = %v, want /app/", got["base"])
	}
	if got["mode"] != "production" {
		t.Errorf("mode = %v, want production", got["mode"])
	}
	if diff := cmp.Diff(map[string]any{"HELLO": "world"}, got["define"]); diff != "" {
		t.Errorf("define mismatch (-want +got):\n%s", diff)
	}
	plugins, _ := got["plugins"].([]any)
	found := false
	for _, p := range plugins {
		if p == "hello" {
			found = true
		}
	}
	if !found {
		t.Errorf("plugins = %v, want hello among them", plugins)
	}
}

func TestConfigCommand_YAML(t *testing.T) {
	root := t.TempDir()
	out, err := execute(t, "config", "--root", root, "--no-config", "--mode", "staging")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if !strings.Contains(out, "mode: staging") {
		t.Errorf("output missing mode:\n%s", out)
	}
	if !strings.Contains(out, "command: serve") {
		t.Errorf("output missing command:\n%s", out)
	}
}

func TestConfigCommand_Errors(t *testing.T) {
	root := t.TempDir()

	_, err := execute(t, "config", "deploy", "--root", root)
	if !errors.Is(err, config.ErrInvalidCommand) {
		t.Errorf("error = %v, want ErrInvalidCommand", err)
	}

	_, err = execute(t, "config", "--root", root, "--no-config", "--format", "toml")
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("error = %v, want unknown format", err)
	}
}

func TestDepsCommand(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "kiln.config.clua"), `return require("./config/shared")`)
	writeFile(t, filepath.Join(root, "config", "shared.clua"), `return { base = "/" }`)

	out, err := execute(t, "deps", "--root", root)
	if err != nil {
		t.Fatalf("deps: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	want := []string{
		filepath.Join(root, "kiln.config.clua"),
		filepath.Join(root, "config", "shared.clua"),
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("deps mismatch (-want +got):\n%s", diff)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "kiln test") || !strings.Contains(out, "Commit: abc") {
		t.Errorf("version output = %q", out)
	}
}

func TestSession_Reload(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "kiln.config.json")
	writeFile(t, path, `{"server": {"port": 3000}}`)

	r := config.NewResolver(config.WithRoot(root), config.WithFinalizer(config.UserPlugins))
	defer r.Close()

	s := &session{
		resolver: r,
		inline:   map[string]any{},
		env:      plugin.Env{Command: plugin.CommandServe},
		logger:   logging.Nop(),
		notifier: notify.New(),
	}
	var changes []string
	s.notifier.Subscribe(func(c notify.Change) {
		changes = append(changes, c.Type.String()+":"+c.Path)
	})

	res, err := r.Resolve(context.Background(), s.inline, s.env)
	if err != nil {
		t.Fatal(err)
	}
	s.current = res

	writeFile(t, path, `{"server": {"port": 4000}}`)

	files := s.reload(context.Background())
	if diff := cmp.Diff([]string{path}, files); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"set:server.port", "reload:"}, changes); diff != "" {
		t.Errorf("changes mismatch (-want +got):\n%s", diff)
	}
	if s.current.Server.Port != 4000 {
		t.Errorf("port = %d, want 4000", s.current.Server.Port)
	}

	writeFile(t, path, `{"server": `)
	if files := s.reload(context.Background()); files != nil {
		t.Errorf("failed reload returned files %v", files)
	}
	if s.current.Server.Port != 4000 {
		t.Errorf("failed reload replaced the configuration")
	}
}

func TestSetCommand(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "kiln.config.json")
	writeFile(t, path, "{\n  \"base\": \"/\",\n  \"server\": {\"port\": 3000}\n}\n")

	if _, err := execute(t, "set", "server.port", "8080", "--root", root); err != nil {
		t.Fatalf("set port: %v", err)
	}
	if _, err := execute(t, "set", "base", "/app/", "--root", root); err != nil {
		t.Fatalf("set base: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("file is no longer JSON: %v\n%s", err, data)
	}
	want := map[string]any{
		"base":   "/app/",
		"server": map[string]any{"port": float64(8080)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestSetCommand_ScriptConfig(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "kiln.config.lua"), `return {}`)

	_, err := execute(t, "set", "base", "/", "--root", root)
	if err == nil || !strings.Contains(err.Error(), "only edits JSON") {
		t.Errorf("error = %v, want JSON-only error", err)
	}
}
