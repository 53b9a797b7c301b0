package bundle

import (
	"path/filepath"
	"testing"
)

func TestDetectRegime(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"esm/package.json":           `{"type": "module"}`,
		"esm/nested/kiln.config.lua": `return {}`,
		"cjs/package.json":           `{"type": "commonjs"}`,
		"cjs/kiln.config.lua":        `return {}`,
		"plain/kiln.config.lua":      `return {}`,
	})

	tests := []struct {
		path string
		want Regime
	}{
		{filepath.Join(dir, "x.mlua"), RegimeModern},
		{filepath.Join(dir, "esm", "x.clua"), RegimeLegacy},
		{filepath.Join(dir, "esm", "nested", "kiln.config.lua"), RegimeModern},
		{filepath.Join(dir, "cjs", "kiln.config.lua"), RegimeLegacy},
		{filepath.Join(dir, "plain", "kiln.config.lua"), RegimeLegacy},
	}

	for _, tt := range tests {
		got, err := DetectRegime(tt.path)
		if err != nil {
			t.Fatalf("DetectRegime(%s) error = %v", tt.path, err)
		}
		if got != tt.want {
			t.Errorf("DetectRegime(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestDetectRegime_InvalidManifest(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"package.json": `{"type": `})

	if _, err := DetectRegime(filepath.Join(dir, "kiln.config.lua")); err == nil {
		t.Error("DetectRegime() error = nil, want invalid manifest error")
	}
}

func TestRegime(t *testing.T) {
	if RegimeLegacy.Other() != RegimeModern || RegimeModern.Other() != RegimeLegacy {
		t.Error("Other() is not an involution")
	}
	if RegimeLegacy.Condition() != "require" || RegimeModern.Condition() != "import" {
		t.Error("unexpected export conditions")
	}
	if RegimeModern.String() != "modern" || RegimeLegacy.String() != "legacy" {
		t.Error("unexpected names")
	}
}
