package plugin

import "context"

type predicateKind int

const (
	predicateNone predicateKind = iota
	predicateStatic
	predicateCommand
	predicateFunc
)

// PredicateFunc decides applicability from a configuration snapshot and
// the environment.
type PredicateFunc func(ctx context.Context, cfg map[string]any, env Env) (bool, error)

// Predicate is a plugin applicability rule. The zero value always applies.
type Predicate struct {
	kind    predicateKind
	static  bool
	command Command
	fn      PredicateFunc
}

// Always returns the predicate that always applies.
func Always() Predicate { return Predicate{} }

// Static returns a fixed predicate.
func Static(apply bool) Predicate {
	return Predicate{kind: predicateStatic, static: apply}
}

// OnCommand applies only for the given command.
func OnCommand(cmd Command) Predicate {
	return Predicate{kind: predicateCommand, command: cmd}
}

// When applies the plugin when fn returns true.
func When(fn PredicateFunc) Predicate {
	if fn == nil {
		return Always()
	}
	return Predicate{kind: predicateFunc, fn: fn}
}

// Evaluate runs the predicate.
func (p Predicate) Evaluate(ctx context.Context, cfg map[string]any, env Env) (bool, error) {
	switch p.kind {
	case predicateStatic:
		return p.static, nil
	case predicateCommand:
		return env.Command == p.command, nil
	case predicateFunc:
		return p.fn(ctx, cfg, env)
	default:
		return true, nil
	}
}
