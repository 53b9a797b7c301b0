package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dshills/kiln/internal/config/loader"
	"github.com/dshills/kiln/internal/config/merge"
	"github.com/dshills/kiln/internal/logging"
	"github.com/dshills/kiln/internal/plugin"
)

// Resolver turns inline configuration, the project config file and the
// plugins they declare into a Resolved configuration.
type Resolver struct {
	loader       *loader.Loader
	ownsLoader   bool
	env          *loader.EnvLoader
	logger       *logging.Logger
	finalize     Finalizer
	root         string
	deprecations []Deprecation
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLoader sets the config file loader. The caller keeps ownership.
func WithLoader(l *loader.Loader) Option {
	return func(r *Resolver) { r.loader = l }
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithFinalizer replaces DefaultFinalizer.
func WithFinalizer(f Finalizer) Option {
	return func(r *Resolver) { r.finalize = f }
}

// WithRoot sets the project root used when the inline config has none.
func WithRoot(dir string) Option {
	return func(r *Resolver) { r.root = dir }
}

// WithEnvLoader layers KILN_* environment overrides between the config
// file and the inline configuration.
func WithEnvLoader(env *loader.EnvLoader) Option {
	return func(r *Resolver) { r.env = env }
}

// WithDeprecations replaces the list of renamed settings.
func WithDeprecations(d []Deprecation) Option {
	return func(r *Resolver) { r.deprecations = d }
}

// NewResolver creates a Resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		logger:       logging.Nop(),
		finalize:     DefaultFinalizer,
		deprecations: Deprecations,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("config")
	if r.loader == nil {
		r.loader = loader.New(loader.WithLogger(r.logger))
		r.ownsLoader = true
	}
	if r.finalize == nil {
		r.finalize = UserPlugins
	}
	return r
}

// Close releases the loader when the Resolver created it.
func (r *Resolver) Close() error {
	if !r.ownsLoader {
		return nil
	}
	return r.loader.Close()
}

// Resolve produces the configuration for env. inline takes precedence over
// the config file; it is not modified. Any failure aborts resolution.
func (r *Resolver) Resolve(ctx context.Context, inline map[string]any, env plugin.Env) (_ *Resolved, err error) {
	if !env.Command.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCommand, env.Command)
	}
	start := time.Now()

	inline = merge.Clone(inline)
	if inline == nil {
		inline = make(map[string]any)
	}

	root, err := r.lookupRoot(inline)
	if err != nil {
		return nil, err
	}

	if mode, _ := inline["mode"].(string); mode != "" {
		env.Mode = mode
	}
	explicitMode := env.Mode != ""
	env.Mode = env.DefaultMode()

	cfg := merge.Without(inline, "configFile")
	var module *loader.Module
	defer func() {
		if err != nil && module != nil {
			module.Close()
		}
	}()

	if path, ok := r.configPath(inline, root); ok {
		module, err = r.loader.Load(ctx, path, root)
		if err != nil {
			return nil, err
		}
		fileCfg, err := module.Config(ctx, env)
		if err != nil {
			return nil, err
		}
		if r.env != nil {
			overrides, err := r.env.Load()
			if err != nil {
				return nil, err
			}
			fileCfg = merge.Merge(fileCfg, overrides)
		}
		cfg = merge.Merge(fileCfg, cfg)
	} else if r.env != nil {
		overrides, err := r.env.Load()
		if err != nil {
			return nil, err
		}
		cfg = merge.Merge(overrides, cfg)
	}

	if !explicitMode {
		if mode, ok := cfg["mode"].(string); ok && mode != "" {
			env.Mode = mode
		}
	}

	userPlugins, err := plugin.SortFiltered(ctx, cfg["plugins"], cfg, env)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("%d user plugins: %s", len(userPlugins), strings.Join(plugin.Names(userPlugins), ", "))

	working, err := plugin.RunConfigHooks(ctx, merge.Without(cfg, "plugins"), userPlugins, env, nil)
	if err != nil {
		return nil, err
	}
	working = merge.Without(working, "plugins")
	working = migrateDeprecated(working, r.deprecations, r.logger)
	working["mode"] = env.Mode

	res, err := r.build(working, env, root)
	if err != nil {
		return nil, err
	}
	if module != nil {
		res.ConfigFile = module.Path
		res.ConfigFileDependencies = slices.Clone(module.Dependencies)
		res.module = module
	}

	if res.plugins, err = r.finalize(ctx, res, userPlugins); err != nil {
		return nil, err
	}
	if err := plugin.RunConfigResolved(ctx, res.plugins, res); err != nil {
		return nil, err
	}

	r.logger.Debug("resolved %s config (mode %s) in %s", env.Command, env.Mode, time.Since(start))
	return res, nil
}

// build decodes, normalises and validates the working configuration.
func (r *Resolver) build(working map[string]any, env plugin.Env, root string) (*Resolved, error) {
	workerPlugins, _ := merge.GetByPath(working, "worker.plugins")

	input := merge.Clone(working)
	merge.DeleteByPath(input, "worker.plugins")

	settings, value, err := decodeSettings(input)
	if err != nil {
		return nil, err
	}
	settings.Mode = env.Mode
	if err := normalize(&settings, env.Command, root); err != nil {
		return nil, err
	}
	if err := validateSettings(&settings); err != nil {
		return nil, err
	}

	res := &Resolved{
		Settings:      settings,
		Command:       env.Command,
		IsProduction:  settings.Mode == "production",
		env:           env,
		raw:           working,
		workerPlugins: workerPlugins,
		resolver:      r,
	}
	res.value = snapshot(value, res)
	return res, nil
}

func (r *Resolver) lookupRoot(inline map[string]any) (string, error) {
	root, _ := inline["root"].(string)
	if root == "" {
		root = r.root
	}
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		root = wd
	}
	return filepath.Abs(root)
}

// configPath reports the config file to load. configFile = false disables
// the lookup; a string names the file explicitly.
func (r *Resolver) configPath(inline map[string]any, root string) (string, bool) {
	switch v := inline["configFile"].(type) {
	case bool:
		if !v {
			return "", false
		}
	case string:
		if v != "" {
			return v, true
		}
	}
	path, ok := r.loader.Find(root)
	if !ok {
		r.logger.Debug("no config file found in %s", root)
	}
	return path, ok
}

// normalize resolves the root, base and directory settings.
func normalize(s *Settings, cmd plugin.Command, root string) error {
	if s.Root == "" {
		s.Root = root
	} else if !filepath.IsAbs(s.Root) {
		s.Root = filepath.Join(root, s.Root)
	}
	s.Root = filepath.Clean(s.Root)

	base, err := normalizeBase(s.Base, cmd)
	if err != nil {
		return err
	}
	s.Base = base

	if s.PublicDir != "" && !filepath.IsAbs(s.PublicDir) {
		s.PublicDir = filepath.Join(s.Root, s.PublicDir)
	}
	if s.CacheDir != "" && !filepath.IsAbs(s.CacheDir) {
		s.CacheDir = filepath.Join(s.Root, s.CacheDir)
	}
	return nil
}

// normalizeBase returns base with a leading and a trailing slash. Relative
// bases are only kept for builds; the dev server serves from the URL path
// of an absolute base.
func normalizeBase(base string, cmd plugin.Command) (string, error) {
	relative := base == "" || base == "." || strings.HasPrefix(base, "./") || strings.HasPrefix(base, "../")
	if relative {
		if cmd != plugin.CommandBuild {
			return "/", nil
		}
		if base == "" || base == "." {
			return "./", nil
		}
		return withTrailingSlash(base), nil
	}

	if isExternalURL(base) {
		if cmd == plugin.CommandBuild {
			return base, nil
		}
		u, err := url.Parse(base)
		if err != nil {
			return "", &ValidationError{Field: "base", Message: err.Error()}
		}
		base = u.Path
	}

	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return withTrailingSlash(base), nil
}

func withTrailingSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

func isExternalURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "//")
}

// snapshot writes the normalised settings of res into the decoded value.
func snapshot(value map[string]any, res *Resolved) map[string]any {
	out := merge.Clone(value)
	s := &res.Settings
	merge.SetByPath(out, "root", s.Root)
	merge.SetByPath(out, "base", s.Base)
	merge.SetByPath(out, "mode", s.Mode)
	merge.SetByPath(out, "publicDir", s.PublicDir)
	merge.SetByPath(out, "cacheDir", s.CacheDir)
	merge.SetByPath(out, "envPrefix", anySlice(s.EnvPrefix))
	merge.SetByPath(out, "resolve.extensions", anySlice(s.Resolve.Extensions))
	merge.SetByPath(out, "resolve.mainFields", anySlice(s.Resolve.MainFields))
	merge.SetByPath(out, "build.target", anySlice(s.Build.Target))
	merge.SetByPath(out, "command", string(res.Command))
	merge.SetByPath(out, "isProduction", res.IsProduction)
	merge.SetByPath(out, "isWorker", res.worker)
	return out
}

func anySlice(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
