package loader

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEnvLoader_Load(t *testing.T) {
	l := NewEnvLoaderWithEnviron(EnvPrefix, []string{
		"KILN_BASE=/app/",
		"KILN_PORT=8080",
		"KILN_HOST=0.0.0.0",
		"KILN_UNKNOWN=ignored",
		"PATH=/usr/bin",
		"KILN_MODE=",
	})
	l.AddMapping("KILN_SOURCEMAP", "build.sourcemap")

	got, err := l.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := map[string]any{
		"base": "/app/",
		"mode": "",
		"server": map[string]any{
			"port": int64(8080),
			"host": "0.0.0.0",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() (-want +got):\n%s", diff)
	}
}

func TestParseEnvValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"", ""},
		{"true", true},
		{"off", false},
		{"42", int64(42)},
		{"1.5", 1.5},
		{"./dist", "./dist"},
		{`["a"]`, []any{"a"}},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, parseEnvValue(tt.in)); diff != "" {
			t.Errorf("parseEnvValue(%q) (-want +got):\n%s", tt.in, diff)
		}
	}
}
