package bundle

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestScan(t *testing.T) {
	source := `
local a = require("./a")
local b = require "b"
local cfg = {
  plugins = { require("./plugins/one")(), (require("c")) },
}
local function later()
  if x then
    return require("d").value
  end
  for i = 1, #require("e") do end
end
local dynamic = require(name)
local again = require("./a")
return obj:require("f")
`
	imports, err := Scan(source, "test.lua")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	var got []string
	for _, imp := range imports {
		got = append(got, imp.Spec)
	}
	want := []string{"./a", "b", "./plugins/one", "c", "d", "e"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Scan() (-want +got):\n%s", diff)
	}
	if imports[0].Line != 2 {
		t.Errorf("first import line = %d, want 2", imports[0].Line)
	}
}

func TestScan_SyntaxError(t *testing.T) {
	if _, err := Scan("local = 1", "bad.lua"); err == nil {
		t.Error("Scan() error = nil, want syntax error")
	}
}
