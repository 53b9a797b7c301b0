// Package loader loads kiln config files.
//
// Lua config files are bundled first: local modules are inlined and
// package imports are pinned to absolute paths. The bundle is then executed
// under the file's regime:
//   - modern: the bundle is written to a uniquely named file next to the
//     config, imported by a fresh runtime and removed again
//   - legacy: the bundle replaces the file's source for one require
//     through a persistent runtime, after evicting any cached copy
//
// TOML, YAML and JSON config files are parsed directly.
package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/kiln/internal/bundle"
	"github.com/dshills/kiln/internal/logging"
	"github.com/dshills/kiln/internal/plugin/lua"
)

// DefaultConfigFiles are the file names searched in the project root, in
// order.
var DefaultConfigFiles = []string{
	"kiln.config.lua",
	"kiln.config.mlua",
	"kiln.config.clua",
	"kiln.config.toml",
	"kiln.config.yaml",
	"kiln.config.yml",
	"kiln.config.json",
}

// Loader loads config files. A Loader may be shared; legacy loads are
// serialized because they share one runtime.
type Loader struct {
	bundler  bundle.Bundler
	resolver bundle.Resolver
	logger   *logging.Logger
	fs       FileSystem
	now      func() time.Time
	newID    func() string

	mu     sync.Mutex
	legacy *lua.Runtime
}

// Option configures a Loader.
type Option func(*Loader)

// WithBundler replaces the default LuaBundler.
func WithBundler(b bundle.Bundler) Option {
	return func(l *Loader) { l.bundler = b }
}

// WithResolver replaces the default ModuleResolver.
func WithResolver(r bundle.Resolver) Option {
	return func(l *Loader) { l.resolver = r }
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithFS sets the file system used to find config files and to read static
// ones. Lua config files and their imports are always read from disk.
func WithFS(fs FileSystem) Option {
	return func(l *Loader) { l.fs = fs }
}

// WithClock sets the clock used for temporary file names.
func WithClock(now func() time.Time) Option {
	return func(l *Loader) { l.now = now }
}

// New creates a Loader.
func New(opts ...Option) *Loader {
	l := &Loader{
		bundler:  bundle.LuaBundler{},
		resolver: bundle.ModuleResolver{},
		logger:   logging.Nop(),
		fs:       DefaultFS(),
		now:      time.Now,
		newID:    func() string { return uuid.NewString()[:8] },
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.WithComponent("loader")
	return l
}

// FindConfigFile returns the first default config file present in root on
// the OS file system.
func FindConfigFile(root string) (string, bool) {
	return findConfigFile(DefaultFS(), root)
}

// Find returns the first default config file present in root.
func (l *Loader) Find(root string) (string, bool) {
	return findConfigFile(l.fs, root)
}

func findConfigFile(fsys FileSystem, root string) (string, bool) {
	for _, name := range DefaultConfigFiles {
		path := filepath.Join(root, name)
		if info, err := fsys.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// Load loads the config file at path. A relative path is taken relative to
// root. The returned module's export is not evaluated.
func (l *Loader) Load(ctx context.Context, path, root string) (*Module, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)

	if info, err := l.fs.Stat(path); err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}

	start := l.now()
	if format, ok := staticFormats[filepath.Ext(path)]; ok {
		return l.loadStatic(path, format)
	}
	if !isLuaFile(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	regime, err := bundle.DetectRegime(path)
	if err != nil {
		return nil, err
	}

	res, err := l.bundler.Bundle(ctx, bundle.Options{Entry: path, Regime: regime, Resolver: l.resolver})
	if err != nil {
		return nil, err
	}
	l.logger.Debug("bundled config file %s in %s", path, time.Since(start))

	var (
		export any
		rt     *lua.Runtime
	)
	if regime == bundle.RegimeModern {
		export, rt, err = l.loadModern(path, res.Code)
	} else {
		export, err = l.loadLegacy(path, res.Code)
	}
	if err != nil {
		l.logger.WithError(err).Error("failed to load config from %s", path)
		return nil, &ExecutionError{Path: path, Err: err}
	}

	m := &Module{
		Path:         path,
		Format:       FormatLua,
		Regime:       regime,
		Dependencies: res.Dependencies,
		Export:       export,
		runtime:      rt,
	}
	if err := m.validate(); err != nil {
		m.Close()
		return nil, err
	}

	l.logger.Debug("loaded config file %s (%s regime, %d files)", path, regime, len(res.Dependencies))
	return m, nil
}

// Close releases the shared legacy runtime.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.legacy == nil {
		return nil
	}
	err := l.legacy.Close()
	l.legacy = nil
	return err
}

func isLuaFile(path string) bool {
	switch filepath.Ext(path) {
	case ".lua", ".mlua", ".clua":
		return true
	}
	return false
}

// runtimeResolver resolves bare requires issued at run time by externalized
// packages.
func (l *Loader) runtimeResolver(regime bundle.Regime) lua.ResolveFunc {
	return func(spec, importer string) (string, error) {
		res, err := l.resolver.Resolve(spec, importer, regime)
		if err != nil {
			return "", err
		}
		return res.Path, nil
	}
}
