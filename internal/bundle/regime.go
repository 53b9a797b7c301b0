package bundle

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
)

// Regime is the module execution regime a config file is loaded under.
// The two regimes resolve package entry points with different export
// conditions and are executed by different loading paths.
type Regime int

const (
	// RegimeLegacy files are loaded through the cached require path.
	RegimeLegacy Regime = iota
	// RegimeModern files are loaded from a fresh temporary module.
	RegimeModern
)

// String returns the regime name.
func (r Regime) String() string {
	if r == RegimeModern {
		return "modern"
	}
	return "legacy"
}

// Other returns the opposite regime.
func (r Regime) Other() Regime {
	if r == RegimeModern {
		return RegimeLegacy
	}
	return RegimeModern
}

// Condition returns the package export condition matched by the regime.
func (r Regime) Condition() string {
	if r == RegimeModern {
		return "import"
	}
	return "require"
}

// Ext returns the file extension that forces the regime.
func (r Regime) Ext() string {
	if r == RegimeModern {
		return ".mlua"
	}
	return ".clua"
}

// DetectRegime determines the regime of the file at path. ".mlua" files are
// modern and ".clua" files legacy. For ".lua" files the nearest package.json
// decides: "type": "module" selects modern.
func DetectRegime(path string) (Regime, error) {
	switch filepath.Ext(path) {
	case ".mlua":
		return RegimeModern, nil
	case ".clua":
		return RegimeLegacy, nil
	}

	manifest, ok, err := nearestManifest(filepath.Dir(path))
	if err != nil {
		return RegimeLegacy, err
	}
	if ok && gjson.GetBytes(manifest, "type").String() == "module" {
		return RegimeModern, nil
	}
	return RegimeLegacy, nil
}

// nearestManifest returns the contents of the closest package.json at or
// above dir.
func nearestManifest(dir string) ([]byte, bool, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, false, err
	}
	for {
		data, err := os.ReadFile(filepath.Join(dir, "package.json"))
		if err == nil {
			if !gjson.ValidBytes(data) {
				return nil, false, fmt.Errorf("invalid package.json in %s", dir)
			}
			return data, true, nil
		}
		if !os.IsNotExist(err) {
			return nil, false, err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, false, nil
		}
		dir = parent
	}
}
