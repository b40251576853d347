// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modctl/modctl/internal/archive"
	"github.com/modctl/modctl/internal/mods"
)

func newPackCommand(app *App, flags *rootFlagValues) *cobra.Command {
	var output string

	packCmd := &cobra.Command{
		Use:   "pack <dir>",
		Short: "Zip a mod directory into an installable archive",
		Long: `Zip a mod directory into an installable archive.

The directory must contain mod.json, and every file it declares must be
present. The archive is written to <id>.qmod next to the directory unless
--output is given. No device is contacted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, out, err := mods.PackDir(cmd.Context(), archive.Zip{}, args[0], output)
			if err != nil {
				return fail(cmd, app.stderr, err, flags.verbose, "pack mod", args[0])
			}
			fmt.Fprintf(app.stdout, "%s %s -> %s\n", SuccessStyle.Render("Packed"), CmdStyle.Render(m.String()), out)
			return nil
		},
	}
	packCmd.Flags().StringVarP(&output, "output", "o", "", "archive path (default <dir>/../<id>.qmod)")

	return packCmd
}
