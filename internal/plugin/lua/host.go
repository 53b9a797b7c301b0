package lua

import (
	"github.com/dshills/kiln/internal/config/merge"
	lua "github.com/yuin/gopher-lua"
)

// openHostModule builds the "kiln" module:
//
//	local kiln = require("kiln")
//	return kiln.define_config(function(env) ... end)
//	kiln.merge_config(a, b)
func (r *Runtime) openHostModule(L *lua.LState) int {
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"define_config": hostDefineConfig,
		"merge_config":  r.hostMergeConfig,
	})
	mod.RawSetString("version", lua.LString(Version))
	L.Push(mod)
	return 1
}

// Version is reported to config files as kiln.version.
var Version = "dev"

// hostDefineConfig returns its argument. It exists so config files read the
// same way regardless of whether they export a table or a factory.
func hostDefineConfig(L *lua.LState) int {
	v := L.Get(1)
	switch v.Type() {
	case lua.LTTable, lua.LTFunction:
		L.Push(v)
		return 1
	default:
		L.ArgError(1, "table or function expected")
		return 0
	}
}

func (r *Runtime) hostMergeConfig(L *lua.LState) int {
	left := L.CheckTable(1)
	right := L.CheckTable(2)

	lm, _ := r.bridge.ToGoValue(left).(map[string]any)
	rm, _ := r.bridge.ToGoValue(right).(map[string]any)
	if lm == nil || rm == nil {
		L.ArgError(1, "config tables expected, not lists")
		return 0
	}

	L.Push(r.bridge.ToLuaValue(merge.Merge(lm, rm)))
	return 1
}
