package bundle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dshills/kiln/internal/plugin/lua"
)

// Resolution is the target of an import specifier.
type Resolution struct {
	// Path is the absolute file path, or the module name for built-ins.
	Path string

	// Builtin is set for modules provided by the runtime.
	Builtin bool
}

// Resolver maps an import specifier seen in importer to its target under
// the given regime. Implementations return an error wrapping ErrNotFound
// when nothing matches.
type Resolver interface {
	Resolve(spec, importer string, regime Regime) (Resolution, error)
}

// DefaultModulesDir is the directory searched for packages.
const DefaultModulesDir = "lua_modules"

// ModuleResolver resolves imports the way the runtime loads them: built-ins
// first, then relative and absolute files, then packages found in a
// modules directory at or above the importer.
//
// A package directory may carry a package.json with "exports" (a target
// string, a condition object or a subpath map) or "main". Without a
// manifest the package entry is init.lua.
type ModuleResolver struct {
	// ModulesDir overrides DefaultModulesDir.
	ModulesDir string
}

// Resolve implements Resolver.
func (r ModuleResolver) Resolve(spec, importer string, regime Regime) (Resolution, error) {
	if lua.IsBuiltin(spec) {
		return Resolution{Path: spec, Builtin: true}, nil
	}

	if isRelative(spec) || filepath.IsAbs(spec) {
		base := spec
		if !filepath.IsAbs(spec) {
			base = filepath.Join(filepath.Dir(importer), spec)
		}
		path, ok := lua.ProbeFile(base)
		if !ok {
			return Resolution{}, fmt.Errorf("%w: %s", ErrNotFound, base)
		}
		return absResolution(path)
	}

	name, subpath := splitPackage(spec)
	modulesDir := r.ModulesDir
	if modulesDir == "" {
		modulesDir = DefaultModulesDir
	}

	dir, err := filepath.Abs(filepath.Dir(importer))
	if err != nil {
		return Resolution{}, err
	}
	for {
		pkgDir := filepath.Join(dir, modulesDir, filepath.FromSlash(name))
		if info, err := os.Stat(pkgDir); err == nil && info.IsDir() {
			path, err := resolvePackage(pkgDir, subpath, regime)
			if err != nil {
				return Resolution{}, err
			}
			return absResolution(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Resolution{}, fmt.Errorf("%w: package %q", ErrNotFound, name)
		}
		dir = parent
	}
}

func absResolution(path string) (Resolution, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Path: abs}, nil
}

func isRelative(spec string) bool {
	return strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

// splitPackage splits "name/sub/path" and "@scope/name/sub" into the
// package name and a "./"-prefixed subpath ("." for the package root).
func splitPackage(spec string) (name, subpath string) {
	parts := strings.Split(spec, "/")
	n := 1
	if strings.HasPrefix(spec, "@") && len(parts) > 1 {
		n = 2
	}
	name = strings.Join(parts[:n], "/")
	if len(parts) == n {
		return name, "."
	}
	return name, "./" + strings.Join(parts[n:], "/")
}

func resolvePackage(pkgDir, subpath string, regime Regime) (string, error) {
	manifest, err := os.ReadFile(filepath.Join(pkgDir, "package.json"))
	if err != nil && !os.IsNotExist(err) {
		return "", err
	}
	if err == nil && !gjson.ValidBytes(manifest) {
		return "", fmt.Errorf("invalid package.json in %s", pkgDir)
	}

	if exports := gjson.GetBytes(manifest, "exports"); manifest != nil && exports.Exists() {
		target, ok := matchExports(exports, subpath, regime.Condition())
		if !ok {
			return "", fmt.Errorf("%w: %s is not exported by %s for %q", ErrNotFound, subpath, pkgDir, regime.Condition())
		}
		return probeTarget(pkgDir, target)
	}

	if subpath == "." {
		if main := gjson.GetBytes(manifest, "main").String(); manifest != nil && main != "" {
			return probeTarget(pkgDir, main)
		}
		return probeTarget(pkgDir, "init.lua")
	}
	return probeTarget(pkgDir, subpath)
}

func probeTarget(pkgDir, target string) (string, error) {
	path, ok := lua.ProbeFile(filepath.Join(pkgDir, filepath.FromSlash(target)))
	if !ok {
		return "", fmt.Errorf("%w: %s in %s", ErrNotFound, target, pkgDir)
	}
	return path, nil
}

// matchExports selects the export target for subpath.
func matchExports(exports gjson.Result, subpath, condition string) (string, bool) {
	if exports.Type == gjson.String {
		if subpath != "." {
			return "", false
		}
		return exports.String(), true
	}
	if !exports.IsObject() {
		return "", false
	}

	subpathMap := false
	exports.ForEach(func(key, _ gjson.Result) bool {
		subpathMap = strings.HasPrefix(key.String(), ".")
		return false
	})
	if !subpathMap {
		if subpath != "." {
			return "", false
		}
		return matchCondition(exports, condition)
	}

	var entry gjson.Result
	exports.ForEach(func(key, value gjson.Result) bool {
		if key.String() == subpath {
			entry = value
			return false
		}
		return true
	})
	if !entry.Exists() {
		return "", false
	}
	return matchCondition(entry, condition)
}

// matchCondition walks a condition object in key order, taking the first
// key that is condition or "default".
func matchCondition(v gjson.Result, condition string) (string, bool) {
	switch {
	case v.Type == gjson.String:
		return v.String(), true
	case v.IsObject():
		var (
			target string
			found  bool
		)
		v.ForEach(func(key, value gjson.Result) bool {
			k := key.String()
			if k != condition && k != "default" {
				return true
			}
			target, found = matchCondition(value, condition)
			return !found
		})
		return target, found
	default:
		return "", false
	}
}

// IsNotFound reports whether err means the specifier has no target.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
