package lua

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// SourceHandler returns the Lua source for a module file.
type SourceHandler func(path string) (string, error)

// ResolveFunc maps a bare module name required from importer to an
// absolute file path.
type ResolveFunc func(spec, importer string) (string, error)

// Runtime is a sandboxed Lua state with a file-based module system.
//
// Modules are loaded by absolute path and cached until evicted. Each module
// chunk runs with its own environment holding a require bound to the
// module's location and the __dirname and __filename globals.
//
// gopher-lua is not goroutine-safe. Every Runtime method and every call
// into a *Function holds the runtime mutex.
type Runtime struct {
	mu sync.Mutex

	L      *lua.LState
	bridge *Bridge

	root     string
	resolve  ResolveFunc
	handlers map[string]SourceHandler
	cache    map[string]lua.LValue
	loading  map[string]bool
	hostReq  lua.LValue

	closed bool
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithRoot sets the directory that relative requires resolve against when no
// module is executing.
func WithRoot(dir string) Option {
	return func(r *Runtime) { r.root = dir }
}

// WithResolver sets the resolver for bare module names.
func WithResolver(fn ResolveFunc) Option {
	return func(r *Runtime) { r.resolve = fn }
}

// WithModule preloads a Go module under name.
func WithModule(name string, loader lua.LGFunction) Option {
	return func(r *Runtime) { r.L.PreloadModule(name, loader) }
}

// New creates a runtime with the safe standard libraries, the kiln host
// module and the runtime require installed.
func New(opts ...Option) (*Runtime, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	if err := openLibraries(L); err != nil {
		L.Close()
		return nil, err
	}
	installSandbox(L)

	rt := &Runtime{
		L:        L,
		handlers: make(map[string]SourceHandler),
		cache:    make(map[string]lua.LValue),
		loading:  make(map[string]bool),
	}
	rt.bridge = &Bridge{rt: rt, L: L}
	rt.root, _ = os.Getwd()

	for _, ext := range []string{".lua", ".mlua", ".clua"} {
		rt.handlers[ext] = readSource
	}

	L.PreloadModule(HostModule, rt.openHostModule)
	for _, opt := range opts {
		opt(rt)
	}

	rt.hostReq = L.GetGlobal("require")
	L.SetGlobal("require", L.NewFunction(rt.requireFrom("")))

	return rt, nil
}

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Bridge returns the runtime's value converter.
func (r *Runtime) Bridge() *Bridge {
	return r.bridge
}

// SetHandler installs the source handler for an extension and returns the
// previous one.
func (r *Runtime) SetHandler(ext string, h SourceHandler) SourceHandler {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.handlers[ext]
	r.handlers[ext] = h
	return prev
}

// Require loads the module at path, returning the cached export if the
// module was loaded before.
func (r *Runtime) Require(path string) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrStateClosed
	}
	lv, err := r.require(path)
	if err != nil {
		return nil, err
	}
	return r.bridge.ToGoValue(lv), nil
}

// Import executes the module at path without consulting or filling the
// module cache.
func (r *Runtime) Import(path string) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrStateClosed
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	lv, err := r.execute(abs)
	if err != nil {
		return nil, err
	}
	return r.bridge.ToGoValue(lv), nil
}

// Evict drops the cached export of path. It reports whether an entry existed.
func (r *Runtime) Evict(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	_, ok := r.cache[abs]
	delete(r.cache, abs)
	return ok
}

// Cached reports whether path has a cached export.
func (r *Runtime) Cached(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	_, ok := r.cache[abs]
	return ok
}

// DoString runs a chunk at the top level and returns its results.
func (r *Runtime) DoString(code string) ([]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrStateClosed
	}
	fn, err := r.L.LoadString(code)
	if err != nil {
		return nil, err
	}
	return r.call(fn)
}

// Close releases the Lua state. Functions bound to the runtime fail with
// ErrStateClosed afterwards.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.L.Close()
	r.closed = true
	return nil
}

// call runs fn with Go arguments. The caller holds r.mu.
func (r *Runtime) call(fn *lua.LFunction, args ...any) (results []any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("lua panic: %v", p)
		}
	}()

	L := r.L
	top := L.GetTop()
	L.Push(fn)
	for _, arg := range args {
		L.Push(r.bridge.ToLuaValue(arg))
	}
	if err := L.PCall(len(args), lua.MultRet, nil); err != nil {
		return nil, err
	}

	n := L.GetTop() - top
	results = make([]any, n)
	for i := 0; i < n; i++ {
		results[i] = r.bridge.ToGoValue(L.Get(top + i + 1))
	}
	L.Pop(n)
	return results, nil
}

// require loads path through the cache. The caller holds r.mu.
func (r *Runtime) require(path string) (lua.LValue, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if lv, ok := r.cache[abs]; ok {
		return lv, nil
	}
	if r.loading[abs] {
		return nil, fmt.Errorf("%w: %s", ErrCircularRequire, abs)
	}

	r.loading[abs] = true
	defer delete(r.loading, abs)

	lv, err := r.execute(abs)
	if err != nil {
		return nil, err
	}
	r.cache[abs] = lv
	return lv, nil
}

// execute compiles and runs the module file at abs in a fresh module
// environment. A module returning nothing exports true.
func (r *Runtime) execute(abs string) (lua.LValue, error) {
	handler, ok := r.handlers[filepath.Ext(abs)]
	if !ok {
		return nil, fmt.Errorf("%w %q: %s", ErrNoHandler, filepath.Ext(abs), abs)
	}
	source, err := handler(abs)
	if err != nil {
		return nil, err
	}

	L := r.L
	fn, err := L.Load(strings.NewReader(source), abs)
	if err != nil {
		return nil, err
	}
	fn.Env = r.moduleEnv(abs)

	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		return nil, err
	}
	lv := L.Get(-1)
	L.Pop(1)
	if lv == lua.LNil {
		lv = lua.LTrue
	}
	return lv, nil
}

func (r *Runtime) moduleEnv(abs string) *lua.LTable {
	L := r.L
	env := L.NewTable()
	mt := L.NewTable()
	mt.RawSetString("__index", L.Get(lua.GlobalsIndex))
	mt.RawSetString("__newindex", L.Get(lua.GlobalsIndex))
	L.SetMetatable(env, mt)

	env.RawSetString("require", L.NewFunction(r.requireFrom(abs)))
	env.RawSetString("__dirname", lua.LString(filepath.Dir(abs)))
	env.RawSetString("__filename", lua.LString(abs))
	return env
}

// requireFrom returns the Lua require function for a module at importer.
// An empty importer resolves relative names against the runtime root.
func (r *Runtime) requireFrom(importer string) lua.LGFunction {
	return func(L *lua.LState) int {
		spec := L.CheckString(1)

		if IsBuiltin(spec) {
			L.Push(r.hostReq)
			L.Push(lua.LString(spec))
			L.Call(1, 1)
			return 1
		}

		path, err := r.locate(spec, importer)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		lv, err := r.require(path)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(lv)
		return 1
	}
}

func (r *Runtime) locate(spec, importer string) (string, error) {
	if filepath.IsAbs(spec) {
		return spec, nil
	}

	dir := r.root
	if importer != "" {
		dir = filepath.Dir(importer)
	}

	if strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") {
		return probeFile(filepath.Join(dir, spec))
	}

	if r.resolve == nil {
		return "", fmt.Errorf("%w: %q", ErrModuleNotFound, spec)
	}
	from := importer
	if from == "" {
		from = filepath.Join(r.root, "<root>")
	}
	return r.resolve(spec, from)
}

// probeFile finds base as given or with a Lua extension appended.
func probeFile(base string) (string, error) {
	candidates := []string{base}
	switch filepath.Ext(base) {
	case ".lua", ".mlua", ".clua":
	default:
		candidates = append(candidates, base+".lua", base+".mlua", base+".clua", filepath.Join(base, "init.lua"))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrModuleNotFound, base)
}

// ProbeFile is the relative-module lookup used by the runtime require.
func ProbeFile(base string) (string, bool) {
	p, err := probeFile(base)
	if err != nil {
		return "", false
	}
	return p, true
}
