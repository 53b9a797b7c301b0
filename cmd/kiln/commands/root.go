// Package commands implements the kiln command line.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/kiln/internal/config"
	"github.com/dshills/kiln/internal/config/loader"
	"github.com/dshills/kiln/internal/logging"
	"github.com/dshills/kiln/internal/plugin"
	"github.com/dshills/kiln/internal/plugin/lua"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// options are the persistent flags shared by every command.
type options struct {
	configFile string
	noConfig   bool
	root       string
	mode       string
	logLevel   string
	jsonLogs   bool

	stdout io.Writer
	stderr io.Writer
}

// Execute runs the root command.
func Execute(ctx context.Context, info BuildInfo) error {
	lua.Version = info.Version
	return newRootCommand(info, os.Stdout, os.Stderr).ExecuteContext(ctx)
}

func newRootCommand(info BuildInfo, stdout, stderr io.Writer) *cobra.Command {
	opts := &options{stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   "kiln",
		Short: "Resolve and inspect kiln project configuration",
		Long: `kiln loads the project config file (kiln.config.lua, .mlua, .clua,
.toml, .yaml or .json), runs the declared plugins' config hooks and prints
the resolved configuration.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.Date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "config file path")
	flags.BoolVar(&opts.noConfig, "no-config", false, "do not load a config file")
	flags.StringVar(&opts.root, "root", "", "project root directory")
	flags.StringVarP(&opts.mode, "mode", "m", "", "mode (defaults to development for serve, production for build)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error, silent)")
	flags.BoolVar(&opts.jsonLogs, "json-logs", false, "write logs as JSON")

	rootCmd.AddCommand(newConfigCommand(opts))
	rootCmd.AddCommand(newDepsCommand(opts))
	rootCmd.AddCommand(newWatchCommand(opts))
	rootCmd.AddCommand(newSetCommand(opts))
	rootCmd.AddCommand(newVersionCommand(info))

	return rootCmd
}

func newVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "kiln %s\n", info.Version)
			fmt.Fprintf(out, "Commit: %s\n", info.Commit)
			fmt.Fprintf(out, "Built: %s\n", info.Date)
		},
	}
}

// logger builds the logger from --log-level, falling back to KILN_LOG_LEVEL.
func (o *options) logger() *logging.Logger {
	level := o.logLevel
	if level == "" {
		level = os.Getenv("KILN_LOG_LEVEL")
	}
	return logging.New(logging.Config{
		Level:  logging.ParseLogLevel(level),
		Output: o.stderr,
		JSON:   o.jsonLogs,
	})
}

func (o *options) resolver(logger *logging.Logger) *config.Resolver {
	return config.NewResolver(
		config.WithLogger(logger),
		config.WithEnvLoader(loader.NewEnvLoader(loader.EnvPrefix)),
		config.WithFinalizer(config.DefaultFinalizer),
	)
}

// inline returns the configuration given on the command line.
func (o *options) inline() map[string]any {
	inline := make(map[string]any)
	switch {
	case o.noConfig:
		inline["configFile"] = false
	case o.configFile != "":
		inline["configFile"] = o.configFile
	}
	if o.root != "" {
		inline["root"] = o.root
	}
	if o.mode != "" {
		inline["mode"] = o.mode
	}
	return inline
}

// parseCommand maps the optional positional argument to a command.
func parseCommand(args []string) (plugin.Command, error) {
	if len(args) == 0 {
		return plugin.CommandServe, nil
	}
	cmd := plugin.Command(args[0])
	if !cmd.Valid() {
		return "", fmt.Errorf("%w: %q (want serve or build)", config.ErrInvalidCommand, args[0])
	}
	return cmd, nil
}
