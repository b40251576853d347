// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modctl/modctl/internal/mods"
	"github.com/modctl/modctl/internal/watch"
)

type watchFlagValues struct {
	pattern      string
	scanExisting bool
}

func newWatchCommand(app *App, flags *rootFlagValues) *cobra.Command {
	wf := &watchFlagValues{}

	watchCmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Install archives as they are dropped into a directory",
		Long: `Watch a directory and install every archive that lands in it.

Archives are installed once the directory has been quiet for the configured
debounce period, one at a time through the same queue as 'modctl install'.
Press Ctrl+C to stop.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, app, flags, wf, args[0])
		},
	}
	watchCmd.Flags().StringVar(&wf.pattern, "pattern", "", "glob selecting archives (default from config, "+watch.DefaultPattern+")")
	watchCmd.Flags().BoolVar(&wf.scanExisting, "existing", false, "also install archives already in the directory")

	return watchCmd
}

func runWatch(cmd *cobra.Command, app *App, flags *rootFlagValues, wf *watchFlagValues, dir string) error {
	ctx := cmd.Context()
	s, err := app.openSession(ctx, flags)
	if err != nil {
		return fail(cmd, app.stderr, err, flags.verbose, "watch inbox", dir)
	}
	defer s.Close()

	pattern := wf.pattern
	if pattern == "" {
		pattern = s.cfg.Watch.Pattern
	}
	debounce, err := s.cfg.Watch.DebounceDuration()
	if err != nil {
		return fail(cmd, app.stderr, err, flags.verbose, "watch inbox", dir)
	}

	unsubscribe := s.manager.Subscribe(func(c mods.Change) {
		s.logger.Debug("registry changed", "kind", c.Kind, "id", c.Manifest.ID, "installed", len(s.manager.Installed()))
	})
	defer unsubscribe()

	w, err := watch.New(watch.Config{
		Dir:          dir,
		Pattern:      pattern,
		Debounce:     debounce,
		ScanExisting: wf.scanExisting,
		Logger:       s.logger.WithPrefix("watch"),
		OnArchive: func(ctx context.Context, path string) error {
			m, err := s.manager.Install(ctx, path)
			if err != nil {
				fmt.Fprintf(app.stderr, "%s %s\n", ErrorStyle.Render("Error:"),
					formatErrorForDisplay(classifyError(err, "install mod", path), flags.verbose))
				return err
			}
			fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("Installed"), CmdStyle.Render(m.String()))
			return nil
		},
	})
	if err != nil {
		return fail(cmd, app.stderr, err, flags.verbose, "watch inbox", dir)
	}

	fmt.Fprintf(app.stdout, "%s %s %s\n", TitleStyle.Render("Watching"), w.Dir(), SubtitleStyle.Render("("+w.Pattern()+")"))
	if err := w.Run(ctx); err != nil {
		return fail(cmd, app.stderr, err, flags.verbose, "watch inbox", dir)
	}
	return nil
}
