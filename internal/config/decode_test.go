package config

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeSettings_FieldErrors(t *testing.T) {
	_, _, err := decodeSettings(map[string]any{
		"server": map[string]any{"port": "abc"},
		"build": map[string]any{
			"emptyOutDir": "maybe",
			"sourcemap":   map[string]any{"inline": true},
		},
	})

	var errs ValidationErrors
	if !errors.As(err, &errs) {
		t.Fatalf("decodeSettings() error = %v, want ValidationErrors", err)
	}
	fields := make(map[string]bool)
	for _, e := range errs {
		fields[e.Field] = true
		if e.Message == "" {
			t.Errorf("%s: empty message", e.Field)
		}
	}
	want := map[string]bool{"server.port": true, "build.emptyOutDir": true, "build.sourcemap": true}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Errorf("fields (-want +got):\n%s", diff)
	}
}

func TestDecodeError_Unstructured(t *testing.T) {
	err := decodeError(errors.New("something else"))
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "config" {
		t.Errorf("decodeError() = %v, want a config ValidationError", err)
	}
}
