package plugin

import "context"

// ConfigFunc is the Go form of a config hook.
type ConfigFunc func(ctx context.Context, cfg map[string]any, env Env) (map[string]any, error)

// ConfigResolvedFunc is the Go form of a configResolved hook.
type ConfigResolvedFunc func(ctx context.Context, cfg ResolvedConfig) error

// Func is a plugin assembled from options. It is the usual way to write a
// plugin in Go.
type Func struct {
	name           string
	phase          Phase
	apply          Predicate
	config         ConfigFunc
	configOrder    Order
	configResolved ConfigResolvedFunc
	resolvedOrder  Order
}

// Option configures a Func plugin.
type Option func(*Func)

// WithPhase sets the enforce phase.
func WithPhase(p Phase) Option {
	return func(f *Func) { f.phase = p }
}

// WithApply sets the applicability predicate.
func WithApply(p Predicate) Option {
	return func(f *Func) { f.apply = p }
}

// WithConfig sets the config hook.
func WithConfig(fn ConfigFunc) Option {
	return func(f *Func) { f.config = fn }
}

// WithConfigOrder sets the order of the config hook.
func WithConfigOrder(o Order) Option {
	return func(f *Func) { f.configOrder = o }
}

// WithConfigResolved sets the configResolved hook.
func WithConfigResolved(fn ConfigResolvedFunc) Option {
	return func(f *Func) { f.configResolved = fn }
}

// WithConfigResolvedOrder sets the order of the configResolved hook.
func WithConfigResolvedOrder(o Order) Option {
	return func(f *Func) { f.resolvedOrder = o }
}

// New creates a plugin named name.
func New(name string, opts ...Option) *Func {
	f := &Func{name: name}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Func) Name() string     { return f.name }
func (f *Func) Enforce() Phase   { return f.phase }
func (f *Func) Apply() Predicate { return f.apply }

// HasHook reports whether the hook was configured.
func (f *Func) HasHook(h Hook) bool {
	switch h {
	case HookConfig:
		return f.config != nil
	case HookConfigResolved:
		return f.configResolved != nil
	}
	return false
}

// HookOrder returns the configured order for h.
func (f *Func) HookOrder(h Hook) Order {
	switch h {
	case HookConfig:
		return f.configOrder
	case HookConfigResolved:
		return f.resolvedOrder
	}
	return OrderDefault
}

func (f *Func) Config(ctx context.Context, cfg map[string]any, env Env) (map[string]any, error) {
	if f.config == nil {
		return nil, nil
	}
	return f.config(ctx, cfg, env)
}

func (f *Func) ConfigResolved(ctx context.Context, cfg ResolvedConfig) error {
	if f.configResolved == nil {
		return nil
	}
	return f.configResolved(ctx, cfg)
}
