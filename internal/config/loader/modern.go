package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/kiln/internal/bundle"
	"github.com/dshills/kiln/internal/plugin/lua"
)

// tempPath returns a unique sibling path for the bundled output of path.
func (l *Loader) tempPath(path string) string {
	name := fmt.Sprintf("%s.timestamp-%d-%s%s", filepath.Base(path), l.now().UnixMilli(), l.newID(), bundle.RegimeModern.Ext())
	return filepath.Join(filepath.Dir(path), name)
}

// loadModern writes code next to path, imports it with a fresh runtime and
// removes the file again. The runtime stays open for the export's functions.
func (l *Loader) loadModern(path, code string) (any, *lua.Runtime, error) {
	tmp := l.tempPath(path)
	if err := os.WriteFile(tmp, []byte(code), 0o644); err != nil {
		return nil, nil, err
	}
	defer func() {
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			l.logger.Debug("could not remove %s: %v", tmp, err)
		}
	}()

	rt, err := lua.New(
		lua.WithRoot(filepath.Dir(path)),
		lua.WithResolver(l.runtimeResolver(bundle.RegimeModern)),
	)
	if err != nil {
		return nil, nil, err
	}

	export, err := rt.Import(tmp)
	if err != nil {
		rt.Close()
		return nil, nil, err
	}
	return export, rt, nil
}
