// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInstallCommand(app *App, flags *rootFlagValues) *cobra.Command {
	var noWait bool

	installCmd := &cobra.Command{
		Use:   "install <archive>...",
		Short: "Install mod archives on the device",
		Long: `Install one or more mod archives on the device.

Each archive is a zip with mod.json at its root (or in a single top-level
directory). Archives are installed one after another; a failure is reported
and the remaining archives are still attempted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd, app, flags, args, noWait)
		},
	}
	installCmd.Flags().BoolVar(&noWait, "no-wait", false, "fail instead of waiting when another operation holds the device")

	return installCmd
}

func runInstall(cmd *cobra.Command, app *App, flags *rootFlagValues, archives []string, noWait bool) error {
	ctx := cmd.Context()
	s, err := app.openSession(ctx, flags)
	if err != nil {
		return fail(cmd, app.stderr, err, flags.verbose, "install mod", "")
	}
	defer s.Close()

	install := s.manager.Install
	if noWait {
		install = s.manager.TryInstall
	}

	var firstErr error
	for _, archivePath := range archives {
		m, err := install(ctx, archivePath)
		if err != nil {
			err = fail(cmd, app.stderr, err, flags.verbose, "install mod", archivePath)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("Installed"), CmdStyle.Render(m.String()))
	}
	return firstErr
}
