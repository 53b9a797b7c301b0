package lua

import (
	"context"
	"reflect"
	"testing"

	glua "github.com/yuin/gopher-lua"
)

type opaque struct{ id int }

func TestBridgeToGoValue(t *testing.T) {
	rt := newRuntime(t)
	bridge := rt.Bridge()

	tests := []struct {
		name     string
		input    glua.LValue
		expected any
	}{
		{"nil", glua.LNil, nil},
		{"true", glua.LTrue, true},
		{"false", glua.LFalse, false},
		{"integer", glua.LNumber(42), int64(42)},
		{"float", glua.LNumber(3.14), 3.14},
		{"string", glua.LString("hello"), "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := bridge.ToGoValue(tt.input)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("ToGoValue(%v) = %v (%T), want %v (%T)",
					tt.input, result, result, tt.expected, tt.expected)
			}
		})
	}
}

func TestBridge_SparseTableIsMap(t *testing.T) {
	rt := newRuntime(t)

	got, err := rt.DoString(`local t = {} t[1] = "a" t[3] = "c" return t`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	want := map[string]any{"1": "a", "3": "c"}
	if !reflect.DeepEqual(got[0], want) {
		t.Errorf("sparse table = %v, want %v", got[0], want)
	}
}

func TestBridge_SharedTableIsNotACycle(t *testing.T) {
	rt := newRuntime(t)

	got, err := rt.DoString(`local shared = { x = 1 } return { a = shared, b = shared }`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	want := map[string]any{
		"a": map[string]any{"x": int64(1)},
		"b": map[string]any{"x": int64(1)},
	}
	if !reflect.DeepEqual(got[0], want) {
		t.Errorf("shared table = %v, want %v", got[0], want)
	}
}

func TestBridge_RoundTripKeepsIdentity(t *testing.T) {
	rt := newRuntime(t)
	bridge := rt.Bridge()
	value := &opaque{id: 7}

	got, err := rt.DoString(`return function(v) return v end`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	fn := got[0].(*Function)

	results, err := fn.Call(context.Background(), value, fn)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if results[0] != any(value) {
		t.Errorf("userdata round trip = %v, want same pointer", results[0])
	}

	if lv := bridge.ToLuaValue(fn); lv != glua.LValue(fn.fn) {
		t.Error("ToLuaValue(*Function) did not return the original function")
	}
}

type goCallable func(ctx context.Context, args ...any) ([]any, error)

func (g goCallable) Call(ctx context.Context, args ...any) ([]any, error) { return g(ctx, args...) }

func TestBridge_GoCallableIsCallableFromLua(t *testing.T) {
	rt := newRuntime(t)

	got, err := rt.DoString(`return function(f) return f(20) end`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	double := goCallable(func(_ context.Context, args ...any) ([]any, error) {
		return []any{args[0].(int64) * 2}, nil
	})

	results, err := got[0].(*Function).Call(context.Background(), double)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if results[0] != int64(40) {
		t.Errorf("result = %v, want 40", results[0])
	}
}
