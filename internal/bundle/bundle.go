// Package bundle turns a Lua config file and the local modules it requires
// into one self-contained chunk.
//
// Relative requires are inlined. Built-in modules stay external and are
// loaded by the runtime. Package imports that resolve are externalized to
// their absolute file path so the runtime loads them natively. Anything
// else fails the bundle.
package bundle

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Options describes one bundling run.
type Options struct {
	// Entry is the config file path.
	Entry string

	// Regime selects export conditions and the shape of the output.
	Regime Regime

	// Resolver resolves import specifiers. Nil selects ModuleResolver{}.
	Resolver Resolver
}

// Result is a bundled chunk.
type Result struct {
	// Code is the bundle source.
	Code string

	// Dependencies lists the absolute paths of every inlined file in
	// discovery order, the entry first.
	Dependencies []string
}

// Bundler produces a Result for a config entry.
type Bundler interface {
	Bundle(ctx context.Context, opts Options) (*Result, error)
}

// InteropKey marks the table a legacy bundle returns around its export.
const InteropKey = "__kiln_interop"

// LuaBundler is the default Bundler.
type LuaBundler struct{}

type depKind string

const (
	depBundled  depKind = "bundled"
	depExternal depKind = "external"
	depBuiltin  depKind = "builtin"
)

type dep struct {
	kind   depKind
	target string
}

type module struct {
	id     string
	path   string
	source string
	deps   map[string]dep
}

type bundleRun struct {
	opts    Options
	rootDir string
	modules []*module
	byPath  map[string]*module
}

// Bundle implements Bundler.
func (LuaBundler) Bundle(ctx context.Context, opts Options) (*Result, error) {
	if opts.Resolver == nil {
		opts.Resolver = ModuleResolver{}
	}
	entry, err := filepath.Abs(opts.Entry)
	if err != nil {
		return nil, err
	}

	run := &bundleRun{
		opts:    opts,
		rootDir: filepath.Dir(entry),
		byPath:  make(map[string]*module),
	}
	if _, err := run.add(entry); err != nil {
		return nil, err
	}

	deps := make([]string, len(run.modules))
	for i, m := range run.modules {
		deps[i] = m.path
	}
	return &Result{Code: run.emit(), Dependencies: deps}, nil
}

// add reads, scans and registers the module at path and everything it
// inlines, depth first.
func (b *bundleRun) add(path string) (*module, error) {
	if m, ok := b.byPath[path]; ok {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	source := stripShebang(string(data))

	imports, err := Scan(source, path)
	if err != nil {
		return nil, &SyntaxError{Path: path, Err: err}
	}

	m := &module{id: b.moduleID(path), path: path, source: source, deps: make(map[string]dep)}
	b.byPath[path] = m
	b.modules = append(b.modules, m)

	for _, imp := range imports {
		d, err := b.resolve(imp.Spec, path)
		if err != nil {
			return nil, err
		}
		if d.kind == depBundled {
			child, err := b.add(d.target)
			if err != nil {
				return nil, err
			}
			d.target = child.id
		}
		m.deps[imp.Spec] = d
	}
	return m, nil
}

func (b *bundleRun) resolve(spec, importer string) (dep, error) {
	res, err := b.opts.Resolver.Resolve(spec, importer, b.opts.Regime)
	if err == nil {
		switch {
		case res.Builtin:
			return dep{kind: depBuiltin, target: res.Path}, nil
		case isRelative(spec):
			return dep{kind: depBundled, target: res.Path}, nil
		default:
			return dep{kind: depExternal, target: res.Path}, nil
		}
	}
	if !IsNotFound(err) {
		return dep{}, &ResolutionError{Specifier: spec, Importer: importer, Regime: b.opts.Regime, Err: err}
	}

	if !isRelative(spec) && !filepath.IsAbs(spec) {
		other := b.opts.Regime.Other()
		if _, otherErr := b.opts.Resolver.Resolve(spec, importer, other); otherErr == nil {
			if b.opts.Regime == RegimeLegacy {
				return dep{}, &RegimeMismatchError{Specifier: spec, Importer: importer, Regime: b.opts.Regime, Required: other}
			}
			return dep{}, &ResolutionError{Specifier: spec, Importer: importer, Regime: b.opts.Regime, ResolvableUnderOther: true, Err: err}
		}
	}
	return dep{}, &ResolutionError{Specifier: spec, Importer: importer, Regime: b.opts.Regime, Err: err}
}

func (b *bundleRun) moduleID(path string) string {
	rel, err := filepath.Rel(b.rootDir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func stripShebang(source string) string {
	if !strings.HasPrefix(source, "#!") {
		return source
	}
	if i := strings.IndexByte(source, '\n'); i >= 0 {
		return source[i:]
	}
	return ""
}

const prelude = `local __kiln_host_require = require
local __kiln_defs, __kiln_cache, __kiln_loading = {}, {}, {}
local function __kiln_load(id)
  local cached = __kiln_cache[id]
  if cached ~= nil then return cached end
  if __kiln_loading[id] then error("circular require of " .. id, 2) end
  local def = __kiln_defs[id]
  __kiln_loading[id] = true
  local result = def.body(def.require, def.dir, def.file, def.url)
  __kiln_loading[id] = nil
  if result == nil then result = true end
  __kiln_cache[id] = result
  return result
end
local function __kiln_define(id, dir, file, url, deps, body)
  local function req(spec)
    local d = deps[spec]
    if d == nil then return __kiln_host_require(spec) end
    if d[1] == "bundled" then return __kiln_load(d[2]) end
    return __kiln_host_require(d[2])
  end
  __kiln_defs[id] = { require = req, dir = dir, file = file, url = url, body = body }
end
`

func (b *bundleRun) emit() string {
	var sb strings.Builder
	sb.WriteString(prelude)

	for _, m := range b.modules {
		sb.WriteString("__kiln_define(")
		sb.WriteString(quote(m.id))
		sb.WriteString(", ")
		sb.WriteString(quote(filepath.Dir(m.path)))
		sb.WriteString(", ")
		sb.WriteString(quote(m.path))
		sb.WriteString(", ")
		sb.WriteString(quote(fileURL(m.path)))
		sb.WriteString(", ")
		writeDeps(&sb, m.deps)
		sb.WriteString(", function(require, __dirname, __filename, __fileurl, ...)\n")
		sb.WriteString(m.source)
		if !strings.HasSuffix(m.source, "\n") {
			sb.WriteByte('\n')
		}
		sb.WriteString("end)\n")
	}

	entry := quote(b.modules[0].id)
	if b.opts.Regime == RegimeLegacy {
		fmt.Fprintf(&sb, "return { %s = true, default = __kiln_load(%s) }\n", InteropKey, entry)
	} else {
		fmt.Fprintf(&sb, "return __kiln_load(%s)\n", entry)
	}
	return sb.String()
}

func writeDeps(sb *strings.Builder, deps map[string]dep) {
	specs := make([]string, 0, len(deps))
	for spec := range deps {
		specs = append(specs, spec)
	}
	sort.Strings(specs)

	sb.WriteByte('{')
	for i, spec := range specs {
		if i > 0 {
			sb.WriteString(", ")
		}
		d := deps[spec]
		fmt.Fprintf(sb, "[%s] = {%s, %s}", quote(spec), quote(string(d.kind)), quote(d.target))
	}
	sb.WriteByte('}')
}

func fileURL(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

// quote renders s as a Lua string literal.
func quote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"', '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if c < 0x20 || c == 0x7f {
				fmt.Fprintf(&sb, "\\%03d", c)
				continue
			}
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
