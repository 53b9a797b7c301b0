package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/kiln/internal/plugin"
)

func newDepsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "deps [serve|build]",
		Short: "List the files the config file was built from",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command, err := parseCommand(args)
			if err != nil {
				return err
			}
			logger := opts.logger()
			r := opts.resolver(logger)
			defer r.Close()

			res, err := r.Resolve(cmd.Context(), opts.inline(), plugin.Env{Command: command})
			if err != nil {
				return err
			}
			defer res.Close()

			if res.ConfigFile == "" {
				logger.Info("no config file loaded")
				return nil
			}
			out := cmd.OutOrStdout()
			for _, dep := range res.ConfigFileDependencies {
				fmt.Fprintln(out, dep)
			}
			return nil
		},
	}
}
