package lua

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// StdModules are the standard libraries opened in every runtime. They are
// always satisfied by the host and never loaded from disk.
var StdModules = []string{"_G", "coroutine", "io", "math", "os", "package", "string", "table"}

// HostModule is the name of the Go-implemented module available to config
// files. Submodules use the "kiln." prefix.
const HostModule = "kiln"

// IsBuiltin reports whether name is provided by the runtime itself.
func IsBuiltin(name string) bool {
	if name == HostModule || (len(name) > len(HostModule)+1 && name[:len(HostModule)+1] == HostModule+".") {
		return true
	}
	for _, m := range StdModules {
		if m == name {
			return true
		}
	}
	return false
}

func openLibraries(L *lua.LState) error {
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
		{lua.OsLibName, lua.OpenOs},
		{lua.IoLibName, lua.OpenIo},
		{lua.CoroutineLibName, lua.OpenCoroutine},
	} {
		err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name))
		if err != nil {
			return fmt.Errorf("open %s library: %w", lib.name, err)
		}
	}
	return nil
}

// installSandbox removes the functions that escape the module system or
// terminate the host process. Module loading from package.path is disabled;
// require is replaced by the runtime's resolver.
func installSandbox(L *lua.LState) {
	for _, name := range []string{"dofile", "loadfile"} {
		L.SetGlobal(name, lua.LNil)
	}

	if osMod, ok := L.GetGlobal("os").(*lua.LTable); ok {
		for _, name := range []string{"exit", "execute"} {
			osMod.RawSetString(name, lua.LNil)
		}
	}

	if pkg, ok := L.GetGlobal("package").(*lua.LTable); ok {
		pkg.RawSetString("path", lua.LString(""))
		pkg.RawSetString("cpath", lua.LString(""))
	}
}
