package lua

import "path/filepath"

// Override substitutes source text for a single file loaded through an
// extension handler. It applies to the first load of that file only, after
// which the previous handler is back in effect for every file.
//
// Only one override per extension should be active at a time. A file with
// the same extension loaded by the overridden module itself goes through the
// previous handler.
type Override struct {
	rt       *Runtime
	ext      string
	path     string
	previous SourceHandler
	handler  SourceHandler
	done     bool
}

// Override installs a one-shot source override for path under ext. The
// returned Override must be restored by the caller, typically with defer.
func (r *Runtime) Override(ext, path, source string) *Override {
	r.mu.Lock()
	defer r.mu.Unlock()

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	o := &Override{rt: r, ext: ext, path: abs, previous: r.handlers[ext]}
	o.handler = func(p string) (string, error) {
		if p == o.path && !o.done {
			o.done = true
			r.handlers[ext] = o.previous
			return source, nil
		}
		if o.previous == nil {
			return readSource(p)
		}
		return o.previous(p)
	}
	r.handlers[ext] = o.handler
	return o
}

// Used reports whether the override has served its file.
func (o *Override) Used() bool {
	o.rt.mu.Lock()
	defer o.rt.mu.Unlock()
	return o.done
}

// Restore reinstates the previous handler. It is safe to call more than once
// and after the override was consumed.
func (o *Override) Restore() {
	o.rt.mu.Lock()
	defer o.rt.mu.Unlock()

	if o.done {
		return
	}
	o.done = true
	if o.previous == nil {
		delete(o.rt.handlers, o.ext)
		return
	}
	o.rt.handlers[o.ext] = o.previous
}
