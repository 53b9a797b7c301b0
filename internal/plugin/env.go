package plugin

// Command identifies the kind of run a configuration is resolved for.
type Command string

const (
	CommandBuild Command = "build"
	CommandServe Command = "serve"
)

// Valid reports whether c is a known command.
func (c Command) Valid() bool {
	return c == CommandBuild || c == CommandServe
}

// Env describes the invocation a configuration is resolved for. It is passed
// by value to config factories, applicability predicates and config hooks.
type Env struct {
	Command    Command
	Mode       string
	IsSsrBuild bool
	IsPreview  bool
}

// DefaultMode returns the mode used when neither the inline config nor the
// config file selects one.
func (e Env) DefaultMode() string {
	if e.Mode != "" {
		return e.Mode
	}
	if e.Command == CommandBuild {
		return "production"
	}
	return "development"
}

// Map returns the environment as a plain value for scripted consumers.
func (e Env) Map() map[string]any {
	return map[string]any{
		"command":    string(e.Command),
		"mode":       e.Mode,
		"isSsrBuild": e.IsSsrBuild,
		"isPreview":  e.IsPreview,
	}
}
