package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LogLevelDebug,
		"INFO":    LogLevelInfo,
		"warning": LogLevelWarn,
		"error":   LogLevelError,
		"silent":  LogLevelSilent,
		"bogus":   LogLevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LogLevelWarn, Output: &buf, JSON: true})

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn %d", 1)
	logger.Error("error")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %s", len(lines), buf.String())
	}
	if lines[0]["message"] != "warn 1" || lines[0]["level"] != "warn" {
		t.Errorf("first line = %v", lines[0])
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LogLevelDebug, Output: &buf, JSON: true}).
		WithComponent("loader").
		WithField("file", "kiln.config.lua")

	logger.Info("loaded")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if lines[0]["component"] != "loader" || lines[0]["file"] != "kiln.config.lua" {
		t.Errorf("fields missing: %v", lines[0])
	}
}

func TestLogger_WarnOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LogLevelInfo, Output: &buf, JSON: true})
	child := logger.WithComponent("config")

	logger.WarnOnce("%s is deprecated", "server.force")
	child.WarnOnce("%s is deprecated", "server.force")
	child.WarnOnce("other")

	if lines := decodeLines(t, &buf); len(lines) != 2 {
		t.Errorf("got %d warnings, want 2: %s", len(lines), buf.String())
	}
}

func TestNop(t *testing.T) {
	logger := Nop()
	logger.Error("ignored")
	logger.WithField("a", 1).WarnOnce("ignored")
}
