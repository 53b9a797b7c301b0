package lua

import (
	"context"
	"fmt"
	"math"

	lua "github.com/yuin/gopher-lua"
)

// callable matches plugin.Callable without importing the plugin package.
type callable interface {
	Call(ctx context.Context, args ...any) ([]any, error)
}

// Bridge converts values between Go and a Runtime's Lua state.
//
// Lua tables become []any when their keys are exactly 1..n and
// map[string]any otherwise; an empty table is an empty map. Integral numbers
// become int64, other numbers float64. Lua functions become *Function values
// bound to the runtime, and userdata yields its Go value. Converting back
// restores the original Lua function or userdata payload.
type Bridge struct {
	rt *Runtime
	L  *lua.LState
}

// ToGoValue converts a Lua value to a Go value.
func (b *Bridge) ToGoValue(lv lua.LValue) any {
	return b.toGo(lv, make(map[*lua.LTable]bool))
}

func (b *Bridge) toGo(lv lua.LValue, visiting map[*lua.LTable]bool) any {
	if lv == nil {
		return nil
	}

	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1<<63 {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visiting[v] {
			return nil
		}
		visiting[v] = true
		defer delete(visiting, v)
		return b.tableToGo(v, visiting)
	case *lua.LFunction:
		return &Function{rt: b.rt, fn: v}
	case *lua.LUserData:
		return v.Value
	default:
		return nil
	}
}

func (b *Bridge) tableToGo(t *lua.LTable, visiting map[*lua.LTable]bool) any {
	isArray := true
	maxN, count := 0, 0
	t.ForEach(func(k, _ lua.LValue) {
		count++
		if kn, ok := k.(lua.LNumber); ok {
			n := int(kn)
			if float64(n) == float64(kn) && n > 0 {
				if n > maxN {
					maxN = n
				}
				return
			}
		}
		isArray = false
	})

	if isArray && maxN > 0 && count == maxN {
		arr := make([]any, maxN)
		for i := 1; i <= maxN; i++ {
			arr[i-1] = b.toGo(t.RawGetInt(i), visiting)
		}
		return arr
	}

	m := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		case lua.LNumber:
			key = kv.String()
		default:
			key = k.String()
		}
		m[key] = b.toGo(v, visiting)
	})
	return m
}

// ToLuaValue converts a Go value to a Lua value.
func (b *Bridge) ToLuaValue(v any) lua.LValue {
	if v == nil {
		return lua.LNil
	}

	switch val := v.(type) {
	case lua.LValue:
		return val
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint:
		return lua.LNumber(val)
	case uint32:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []any:
		t := b.L.CreateTable(len(val), 0)
		for i, item := range val {
			t.RawSetInt(i+1, b.ToLuaValue(item))
		}
		return t
	case []string:
		t := b.L.CreateTable(len(val), 0)
		for i, item := range val {
			t.RawSetInt(i+1, lua.LString(item))
		}
		return t
	case map[string]any:
		t := b.L.CreateTable(0, len(val))
		for k, item := range val {
			t.RawSetString(k, b.ToLuaValue(item))
		}
		return t
	case map[string]string:
		t := b.L.CreateTable(0, len(val))
		for k, item := range val {
			t.RawSetString(k, lua.LString(item))
		}
		return t
	case *Function:
		if val.rt == b.rt {
			return val.fn
		}
		return b.wrapCallable(val)
	case callable:
		return b.wrapCallable(val)
	default:
		ud := b.L.NewUserData()
		ud.Value = v
		return ud
	}
}

// wrapCallable exposes a Go or foreign-runtime function to Lua.
func (b *Bridge) wrapCallable(c callable) *lua.LFunction {
	return b.L.NewFunction(func(L *lua.LState) int {
		args := b.args(L, 1)
		results, err := c.Call(context.Background(), args...)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		for _, r := range results {
			L.Push(b.ToLuaValue(r))
		}
		return len(results)
	})
}

// args converts the Lua call arguments starting at index from.
func (b *Bridge) args(L *lua.LState, from int) []any {
	top := L.GetTop()
	if top < from {
		return nil
	}
	out := make([]any, 0, top-from+1)
	for i := from; i <= top; i++ {
		out = append(out, b.ToGoValue(L.Get(i)))
	}
	return out
}

// WrapGoFunc wraps a Go function for use in Lua. A nil result returns
// nothing to Lua.
func (b *Bridge) WrapGoFunc(fn func(args []any) (any, error)) lua.LGFunction {
	return func(L *lua.LState) int {
		result, err := fn(b.args(L, 1))
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		if result == nil {
			return 0
		}
		L.Push(b.ToLuaValue(result))
		return 1
	}
}

// Function is a Lua function bound to the runtime that created it.
type Function struct {
	rt *Runtime
	fn *lua.LFunction
}

// Call invokes the function with Go arguments and returns its results as
// Go values. Calls are serialized with every other use of the runtime.
func (f *Function) Call(ctx context.Context, args ...any) ([]any, error) {
	f.rt.mu.Lock()
	defer f.rt.mu.Unlock()

	if f.rt.closed {
		return nil, ErrStateClosed
	}
	return f.rt.call(f.fn, args...)
}

// String implements fmt.Stringer.
func (f *Function) String() string {
	return fmt.Sprintf("lua function %p", f.fn)
}
