// Package lua provides the Lua runtime that executes kiln config files and
// script plugins.
//
// A Runtime wraps a gopher-lua state with a small module system modelled on
// file-keyed module caches:
//   - Require loads a file once and caches its export by absolute path
//   - Import runs a file without touching the cache
//   - Evict drops a cached export so the next Require re-executes the file
//   - Override substitutes source text for one file, one time
//
// Inside Lua, require accepts standard library names, the host module
// "kiln", absolute paths, paths relative to the requiring file and bare
// package names resolved through the configured ResolveFunc.
//
//	rt, err := lua.New(lua.WithRoot(dir))
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	export, err := rt.Require(filepath.Join(dir, "kiln.config.lua"))
//
// Lua functions reach Go as *Function values, which satisfy
// plugin.Callable. The Bridge type documents the value mapping.
//
// The sandbox is light: dofile, loadfile, os.exit and os.execute are
// removed and package.path is cleared. Config files are trusted code.
package lua
