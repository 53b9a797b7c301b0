package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dshills/kiln/internal/config"
	"github.com/dshills/kiln/internal/plugin"
)

func newConfigCommand(opts *options) *cobra.Command {
	var (
		format  string
		ssr     bool
		preview bool
		worker  string
	)

	cmd := &cobra.Command{
		Use:   "config [serve|build]",
		Short: "Print the resolved configuration",
		Example: `  # Resolved dev server configuration
  kiln config

  # Production build configuration as JSON
  kiln config build --format json

  # Configuration of a worker bundle
  kiln config build --worker src/worker.lua`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command, err := parseCommand(args)
			if err != nil {
				return err
			}
			logger := opts.logger()
			r := opts.resolver(logger)
			defer r.Close()

			env := plugin.Env{Command: command, IsSsrBuild: ssr, IsPreview: preview}
			res, err := r.Resolve(cmd.Context(), opts.inline(), env)
			if err != nil {
				return err
			}
			defer res.Close()

			if worker != "" {
				if res, err = res.BundleWorker(cmd.Context(), worker); err != nil {
					return err
				}
			}
			return printConfig(cmd.OutOrStdout(), res, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format (yaml, json)")
	cmd.Flags().BoolVar(&ssr, "ssr", false, "resolve for a server-side rendering build")
	cmd.Flags().BoolVar(&preview, "preview", false, "resolve for the preview server")
	cmd.Flags().StringVar(&worker, "worker", "", "print the derived configuration of this worker bundle")

	return cmd
}

// printConfig writes the configuration snapshot with the final plugin names.
func printConfig(w io.Writer, res *config.Resolved, format string) error {
	value := res.Value()
	value["plugins"] = plugin.Names(res.Plugins())
	if res.ConfigFile != "" {
		value["configFile"] = res.ConfigFile
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want yaml or json)", format)
	}
}
