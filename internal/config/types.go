package config

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/dshills/kiln/internal/config/loader"
	"github.com/dshills/kiln/internal/config/merge"
	"github.com/dshills/kiln/internal/plugin"
)

// Switch is a setting that is either a boolean or a named variant, such as
// sourcemap = "inline".
type Switch struct {
	Enabled bool
	// Value is the variant name when the setting was given as a string.
	Value string
}

// String returns the variant, or "true"/"false".
func (s Switch) String() string {
	if s.Value != "" {
		return s.Value
	}
	if s.Enabled {
		return "true"
	}
	return "false"
}

// ServerOptions configures the dev server.
type ServerOptions struct {
	Host       string         `mapstructure:"host" yaml:"host" json:"host"`
	Port       int            `mapstructure:"port" yaml:"port" json:"port" validate:"gte=0,lte=65535"`
	StrictPort bool           `mapstructure:"strictPort" yaml:"strictPort" json:"strictPort"`
	Open       Switch         `mapstructure:"open" yaml:"open" json:"open"`
	HMR        any            `mapstructure:"hmr" yaml:"hmr,omitempty" json:"hmr,omitempty"`
	Proxy      map[string]any `mapstructure:"proxy" yaml:"proxy,omitempty" json:"proxy,omitempty"`
}

// PreviewOptions configures the preview server.
type PreviewOptions struct {
	Host       string `mapstructure:"host" yaml:"host" json:"host"`
	Port       int    `mapstructure:"port" yaml:"port" json:"port" validate:"gte=0,lte=65535"`
	StrictPort bool   `mapstructure:"strictPort" yaml:"strictPort" json:"strictPort"`
	Open       Switch `mapstructure:"open" yaml:"open" json:"open"`
}

// BuildOptions configures production builds.
type BuildOptions struct {
	OutDir        string         `mapstructure:"outDir" yaml:"outDir" json:"outDir" validate:"required"`
	AssetsDir     string         `mapstructure:"assetsDir" yaml:"assetsDir" json:"assetsDir"`
	Target        []string       `mapstructure:"target" yaml:"target" json:"target"`
	Sourcemap     Switch         `mapstructure:"sourcemap" yaml:"sourcemap" json:"sourcemap"`
	Minify        Switch         `mapstructure:"minify" yaml:"minify" json:"minify"`
	SSR           Switch         `mapstructure:"ssr" yaml:"ssr" json:"ssr"`
	EmptyOutDir   bool           `mapstructure:"emptyOutDir" yaml:"emptyOutDir" json:"emptyOutDir"`
	Manifest      Switch         `mapstructure:"manifest" yaml:"manifest" json:"manifest"`
	Watch         bool           `mapstructure:"watch" yaml:"watch" json:"watch"`
	ModulePreload map[string]any `mapstructure:"modulePreload" yaml:"modulePreload,omitempty" json:"modulePreload,omitempty"`
}

// ResolveOptions configures module resolution of the application.
type ResolveOptions struct {
	Alias      map[string]string `mapstructure:"alias" yaml:"alias,omitempty" json:"alias,omitempty"`
	Extensions []string          `mapstructure:"extensions" yaml:"extensions" json:"extensions"`
	Conditions []string          `mapstructure:"conditions" yaml:"conditions,omitempty" json:"conditions,omitempty"`
	MainFields []string          `mapstructure:"mainFields" yaml:"mainFields" json:"mainFields"`
	Dedupe     []string          `mapstructure:"dedupe" yaml:"dedupe,omitempty" json:"dedupe,omitempty"`
}

// CSSOptions configures stylesheet processing.
type CSSOptions struct {
	DevSourcemap bool           `mapstructure:"devSourcemap" yaml:"devSourcemap" json:"devSourcemap"`
	Modules      map[string]any `mapstructure:"modules" yaml:"modules,omitempty" json:"modules,omitempty"`
	PostCSS      any            `mapstructure:"postcss" yaml:"postcss,omitempty" json:"postcss,omitempty"`
}

// WorkerOptions configures worker bundles. The worker plugin factory is kept
// on the Resolved value rather than here.
type WorkerOptions struct {
	Format string `mapstructure:"format" yaml:"format" json:"format" validate:"oneof=modern legacy"`
}

// Settings are the typed sections decoded from the working configuration.
type Settings struct {
	Root        string         `mapstructure:"root" yaml:"root" json:"root"`
	Base        string         `mapstructure:"base" yaml:"base" json:"base"`
	Mode        string         `mapstructure:"mode" yaml:"mode" json:"mode" validate:"required"`
	PublicDir   string         `mapstructure:"publicDir" yaml:"publicDir" json:"publicDir"`
	CacheDir    string         `mapstructure:"cacheDir" yaml:"cacheDir" json:"cacheDir"`
	LogLevel    string         `mapstructure:"logLevel" yaml:"logLevel" json:"logLevel" validate:"oneof=debug info warn error silent"`
	ClearScreen bool           `mapstructure:"clearScreen" yaml:"clearScreen" json:"clearScreen"`
	AppType     string         `mapstructure:"appType" yaml:"appType" json:"appType" validate:"oneof=spa mpa custom"`
	EnvPrefix   []string       `mapstructure:"envPrefix" yaml:"envPrefix" json:"envPrefix" validate:"min=1,dive,required"`
	Define      map[string]any `mapstructure:"define" yaml:"define,omitempty" json:"define,omitempty"`

	Resolve ResolveOptions `mapstructure:"resolve" yaml:"resolve" json:"resolve"`
	CSS     CSSOptions     `mapstructure:"css" yaml:"css" json:"css"`
	Server  ServerOptions  `mapstructure:"server" yaml:"server" json:"server"`
	Build   BuildOptions   `mapstructure:"build" yaml:"build" json:"build"`
	Preview PreviewOptions `mapstructure:"preview" yaml:"preview" json:"preview"`
	Worker  WorkerOptions  `mapstructure:"worker" yaml:"worker" json:"worker"`

	// Extra holds unknown top-level keys. It is the slot plugins use to
	// carry their own settings through the configuration.
	Extra map[string]any `mapstructure:",remain" yaml:"extra,omitempty" json:"extra,omitempty"`
}

// Resolved is the final, read-only configuration of a run. Values must not
// be modified after Resolve returns.
type Resolved struct {
	Settings `yaml:",inline"`

	Command      plugin.Command `yaml:"command" json:"command"`
	IsProduction bool           `yaml:"isProduction" json:"isProduction"`

	// ConfigFile is the loaded config file, empty when none was used.
	ConfigFile string `yaml:"configFile,omitempty" json:"configFile,omitempty"`
	// ConfigFileDependencies are the files the config file was built from.
	ConfigFileDependencies []string `yaml:"configFileDependencies,omitempty" json:"configFileDependencies,omitempty"`

	env           plugin.Env
	value         map[string]any
	raw           map[string]any
	plugins       []plugin.Plugin
	workerPlugins any
	parent        *Resolved
	chain         []string
	worker        bool
	resolver      *Resolver
	module        *loader.Module
}

var _ plugin.ResolvedConfig = (*Resolved)(nil)

// Plugins returns the final plugin list in pre, normal, post order.
func (r *Resolved) Plugins() []plugin.Plugin {
	return slices.Clone(r.plugins)
}

// SortedPlugins returns the plugins implementing hook in the order the hook
// is called.
func (r *Resolved) SortedPlugins(hook plugin.Hook) []plugin.Plugin {
	return plugin.SortedByHook(r.plugins, hook)
}

// Value returns a plain snapshot of the configuration with defaults applied
// and normalised settings in place. The snapshot is a copy.
func (r *Resolved) Value() map[string]any {
	return merge.Clone(r.value)
}

// Get returns the value at a dot path of the configuration.
func (r *Resolved) Get(path string) (any, bool) {
	return merge.GetByPath(r.value, path)
}

// Parent returns the configuration this one was derived from, or nil at the
// root.
func (r *Resolved) Parent() *Resolved {
	return r.parent
}

// BundleChain returns the identifiers of the nested passes leading to this
// configuration. It is empty at the root.
func (r *Resolved) BundleChain() []string {
	return slices.Clone(r.chain)
}

// IsWorker reports whether this configuration was derived for a worker
// bundle.
func (r *Resolved) IsWorker() bool {
	return r.worker
}

// Env returns the environment the configuration was resolved for, with the
// final mode.
func (r *Resolved) Env() plugin.Env {
	return r.env
}

// Close releases the runtime backing functions of the config file. Only the
// root configuration owns it; closing a derived configuration is a no-op.
func (r *Resolved) Close() error {
	if r.parent != nil || r.module == nil {
		return nil
	}
	err := r.module.Close()
	r.module = nil
	return err
}

// BundleWorker derives the configuration of the worker bundle id.
func (r *Resolved) BundleWorker(ctx context.Context, id string) (*Resolved, error) {
	return r.SubConfig(ctx, id, nil)
}

// MarshalYAML renders the switch as the boolean or variant it was given as.
func (s Switch) MarshalYAML() (any, error) {
	if s.Value != "" {
		return s.Value, nil
	}
	return s.Enabled, nil
}

// MarshalJSON renders the switch as the boolean or variant it was given as.
func (s Switch) MarshalJSON() ([]byte, error) {
	if s.Value != "" {
		return json.Marshal(s.Value)
	}
	return json.Marshal(s.Enabled)
}
