package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/kiln/internal/config"
	"github.com/dshills/kiln/internal/config/notify"
	"github.com/dshills/kiln/internal/config/watcher"
	"github.com/dshills/kiln/internal/logging"
	"github.com/dshills/kiln/internal/plugin"
)

func newWatchCommand(opts *options) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [serve|build]",
		Short: "Re-resolve the configuration whenever the config file changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command, err := parseCommand(args)
			if err != nil {
				return err
			}
			logger := opts.logger()
			r := opts.resolver(logger)
			defer r.Close()

			s := &session{
				resolver: r,
				inline:   opts.inline(),
				env:      plugin.Env{Command: command},
				logger:   logger.WithComponent("watch"),
				notifier: notify.New(),
			}
			s.notifier.Subscribe(func(c notify.Change) {
				switch c.Type {
				case notify.ChangeReload:
					s.logger.Info("reloaded %s", filepath.Base(c.Source))
				case notify.ChangeDelete:
					fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", c.Path)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "~ %s = %v\n", c.Path, c.NewValue)
				}
			})
			return s.run(cmd.Context(), debounce)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 100*time.Millisecond, "quiet period before re-resolving")
	return cmd
}

// session holds the current configuration of a watch run.
type session struct {
	resolver *config.Resolver
	inline   map[string]any
	env      plugin.Env
	logger   *logging.Logger
	notifier *notify.Notifier

	current *config.Resolved
}

func (s *session) run(ctx context.Context, debounce time.Duration) error {
	res, err := s.resolver.Resolve(ctx, s.inline, s.env)
	if err != nil {
		return err
	}
	s.current = res
	defer func() { s.current.Close() }()

	if res.ConfigFile == "" {
		return fmt.Errorf("nothing to watch: no config file found")
	}

	w, err := watcher.New(res.ConfigFileDependencies, watcher.WithDebounce(debounce))
	if err != nil {
		return err
	}
	defer w.Close()
	s.logger.Info("watching %d files", len(w.Files()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-w.Errors():
			s.logger.WithError(err).Warn("watch error")
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			for _, ev := range batch {
				s.logger.Debug("%s %s", ev.Op, ev.Path)
			}
			if files := s.reload(ctx); files != nil {
				if err := w.Reset(files); err != nil {
					return err
				}
			}
		}
	}
}

// reload resolves the configuration again and reports what changed. A
// failed resolution keeps the previous configuration. It returns the files
// to watch next, or nil when they are unchanged.
func (s *session) reload(ctx context.Context) []string {
	next, err := s.resolver.Resolve(ctx, s.inline, s.env)
	if err != nil {
		s.logger.WithError(err).Error("config reload failed")
		return nil
	}

	prev := s.current
	s.current = next
	defer prev.Close()

	s.notifier.Notify(notify.Diff(next.ConfigFile, prev.Value(), next.Value())...)
	s.notifier.NotifyReload(next.ConfigFile)

	if next.ConfigFile == "" {
		return nil
	}
	return next.ConfigFileDependencies
}
