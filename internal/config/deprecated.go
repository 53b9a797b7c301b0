package config

import (
	"github.com/dshills/kiln/internal/config/merge"
	"github.com/dshills/kiln/internal/logging"
)

// Deprecation moves a setting that has been renamed.
type Deprecation struct {
	// From is the deprecated dot path.
	From string
	// To is the replacement dot path.
	To string
	// Note is appended to the warning.
	Note string
}

// Deprecations are applied to the working configuration after the config
// hooks have run.
var Deprecations = []Deprecation{
	{From: "build.polyfillModulePreload", To: "build.modulePreload.polyfill"},
	{From: "server.hmrPort", To: "server.hmr.port"},
	{From: "css.postcssConfig", To: "css.postcss"},
	{From: "worker.outputFormat", To: "worker.format", Note: "values are \"modern\" or \"legacy\""},
}

// migrateDeprecated returns a copy of cfg with every deprecated setting moved
// to its replacement. The replacement wins when both are set. Each
// deprecation is reported once per logger.
func migrateDeprecated(cfg map[string]any, deprecations []Deprecation, logger *logging.Logger) map[string]any {
	var out map[string]any
	for _, d := range deprecations {
		value, found := merge.GetByPath(cfg, d.From)
		if !found {
			continue
		}
		if out == nil {
			out = merge.Clone(cfg)
		}

		msg := "`" + d.From + "` is deprecated, use `" + d.To + "` instead"
		if d.Note != "" {
			msg += " (" + d.Note + ")"
		}
		logger.WarnOnce("%s", msg)

		if _, set := merge.GetByPath(out, d.To); !set {
			merge.SetByPath(out, d.To, value)
		}
		merge.DeleteByPath(out, d.From)
	}
	if out == nil {
		return cfg
	}
	return out
}
