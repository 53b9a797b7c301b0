// Package config resolves the configuration of a kiln run.
//
// Resolution starts from an inline configuration and the command
// environment:
//
//  1. the mode is selected from the inline config, the environment or the
//     command
//  2. the project config file is loaded (see package loader), evaluated for
//     the environment and merged under the inline config
//  3. declared plugins are flattened, filtered by their apply predicate and
//     sorted into pre, normal and post phases
//  4. config hooks run one at a time, each result merged into the working
//     configuration
//  5. deprecated settings are migrated and the typed sections are decoded,
//     normalised and validated
//  6. the plugin list is finalized and configResolved hooks observe the
//     result
//
// The Resolved value is read-only. Nested bundle passes derive their own
// configuration with Resolved.SubConfig, which re-runs steps 3, 4 and 6 with
// a fresh plugin set and refuses to repeat an identifier of the bundle chain.
//
// Example:
//
//	r := config.NewResolver(config.WithRoot("."))
//	defer r.Close()
//
//	cfg, err := r.Resolve(ctx, map[string]any{"base": "/app/"}, plugin.Env{Command: plugin.CommandBuild})
//	if err != nil {
//		return err
//	}
//	defer cfg.Close()
package config
