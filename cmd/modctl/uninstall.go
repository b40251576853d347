// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUninstallCommand(app *App, flags *rootFlagValues) *cobra.Command {
	var noWait bool

	uninstallCmd := &cobra.Command{
		Use:     "uninstall <id>...",
		Aliases: []string{"remove", "rm"},
		Short:   "Remove installed mods from the device",
		Long: `Remove one or more installed mods by id.

Library files still declared by another installed mod are kept. Every
removal step is attempted even when an earlier one fails.`,
		Args: cobra.MinimumNArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			return completeInstalledIDs(cmd, app, flags)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUninstall(cmd, app, flags, args, noWait)
		},
	}
	uninstallCmd.Flags().BoolVar(&noWait, "no-wait", false, "fail instead of waiting when another operation holds the device")

	return uninstallCmd
}

func runUninstall(cmd *cobra.Command, app *App, flags *rootFlagValues, ids []string, noWait bool) error {
	ctx := cmd.Context()
	s, err := app.openSession(ctx, flags)
	if err != nil {
		return fail(cmd, app.stderr, err, flags.verbose, "uninstall mod", "")
	}
	defer s.Close()

	uninstall := s.manager.Uninstall
	if noWait {
		uninstall = s.manager.TryUninstall
	}

	var firstErr error
	for _, id := range ids {
		m, err := uninstall(ctx, id)
		if err != nil {
			err = fail(cmd, app.stderr, explainUnknownID(err, id, s.manager.Installed(), "uninstall mod"),
				flags.verbose, "uninstall mod", id)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("Removed"), CmdStyle.Render(m.String()))
	}
	return firstErr
}

// completeInstalledIDs offers the ids discovered on the device.
func completeInstalledIDs(cmd *cobra.Command, app *App, flags *rootFlagValues) ([]string, cobra.ShellCompDirective) {
	s, err := app.openSession(cmd.Context(), flags)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	defer s.Close()

	var ids []string
	for _, m := range s.manager.Installed() {
		ids = append(ids, m.ID)
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}
