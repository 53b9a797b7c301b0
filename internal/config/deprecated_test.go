package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/kiln/internal/logging"
)

func TestMigrateDeprecated(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
		want map[string]any
	}{
		{
			name: "moved",
			in:   map[string]any{"build": map[string]any{"polyfillModulePreload": false}},
			want: map[string]any{"build": map[string]any{"modulePreload": map[string]any{"polyfill": false}}},
		},
		{
			name: "replacement wins",
			in:   map[string]any{"css": map[string]any{"postcssConfig": "old", "postcss": "new"}},
			want: map[string]any{"css": map[string]any{"postcss": "new"}},
		},
		{
			name: "nothing deprecated",
			in:   map[string]any{"base": "/"},
			want: map[string]any{"base": "/"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := migrateDeprecated(tt.in, Deprecations, logging.Nop())
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("migrateDeprecated() (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMigrateDeprecated_DoesNotModifyInput(t *testing.T) {
	in := map[string]any{"server": map[string]any{"hmrPort": int64(1)}}
	migrateDeprecated(in, Deprecations, logging.Nop())

	if diff := cmp.Diff(map[string]any{"server": map[string]any{"hmrPort": int64(1)}}, in); diff != "" {
		t.Errorf("input modified (-want +got):\n%s", diff)
	}
}
