package plugin

import (
	"context"
	"fmt"
)

// Plugin is the minimal contract of a build plugin. All other behaviour is
// discovered through the optional capability interfaces in this package.
type Plugin interface {
	Name() string
}

// Phase is the ordering bucket a plugin is placed in.
type Phase int

const (
	PhaseNormal Phase = iota
	PhasePre
	PhasePost
)

// String returns the enforce value for the phase.
func (p Phase) String() string {
	switch p {
	case PhasePre:
		return "pre"
	case PhasePost:
		return "post"
	default:
		return "normal"
	}
}

// ParsePhase converts an enforce value into a Phase. The empty string is
// the normal phase.
func ParsePhase(s string) (Phase, error) {
	switch s {
	case "", "normal":
		return PhaseNormal, nil
	case "pre":
		return PhasePre, nil
	case "post":
		return PhasePost, nil
	default:
		return PhaseNormal, fmt.Errorf("%w: %q", ErrInvalidPhase, s)
	}
}

// Enforced is implemented by plugins that request a non-normal phase.
type Enforced interface {
	Enforce() Phase
}

// Conditional is implemented by plugins carrying an applicability predicate.
type Conditional interface {
	Apply() Predicate
}

// Hook names a plugin hook.
type Hook string

const (
	HookConfig         Hook = "config"
	HookConfigResolved Hook = "configResolved"
)

// ConfigHook may return a partial configuration to be merged into the
// working configuration. A nil map means no change.
type ConfigHook interface {
	Config(ctx context.Context, cfg map[string]any, env Env) (map[string]any, error)
}

// ResolvedConfig is the read-only view of a finished configuration handed
// to ConfigResolvedHook implementations.
type ResolvedConfig interface {
	Value() map[string]any
	Get(path string) (any, bool)
}

// ConfigResolvedHook observes the final configuration.
type ConfigResolvedHook interface {
	ConfigResolved(ctx context.Context, cfg ResolvedConfig) error
}

// Order positions a single hook relative to the same hook of other plugins.
type Order int

const (
	OrderDefault Order = iota
	OrderPre
	OrderPost
)

// ParseOrder converts a hook envelope order value.
func ParseOrder(s string) (Order, error) {
	switch s {
	case "":
		return OrderDefault, nil
	case "pre":
		return OrderPre, nil
	case "post":
		return OrderPost, nil
	default:
		return OrderDefault, fmt.Errorf("invalid hook order %q", s)
	}
}

// HookOrderer is implemented by plugins whose hooks carry an order.
type HookOrderer interface {
	HookOrder(h Hook) Order
}

// HookProvider lets a plugin report which hooks it actually provides. Plugins
// that satisfy a hook interface only structurally use it to opt out.
type HookProvider interface {
	HasHook(h Hook) bool
}

// Callable is a function value supplied by a script or by Go code.
type Callable interface {
	Call(ctx context.Context, args ...any) ([]any, error)
}

// Factory produces a fresh plugin set. Worker configurations call it once
// per derivation.
type Factory func(ctx context.Context) ([]Plugin, error)
