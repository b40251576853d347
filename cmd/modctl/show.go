// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/modctl/modctl/internal/mods"
	"github.com/modctl/modctl/pkg/modmanifest"
)

func newShowCommand(app *App, flags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an installed mod and where its files live",
		Args:  cobra.ExactArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			return completeInstalledIDs(cmd, app, flags)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.openSession(cmd.Context(), flags)
			if err != nil {
				return fail(cmd, app.stderr, err, flags.verbose, "show mod", args[0])
			}
			defer s.Close()

			m, ok := s.manager.Get(args[0])
			if !ok {
				err := explainUnknownID(&mods.NotInstalledError{ID: args[0]}, args[0], s.manager.Installed(), "show mod")
				return fail(cmd, app.stderr, err, flags.verbose, "show mod", args[0])
			}
			writeModDetails(app.stdout, m, s.manager.Registry(), s.manager.Layout())
			return nil
		},
	}
}

// writeModDetails prints one mod with the remote path of every file. A
// library that another mod also declares is annotated with that mod.
func writeModDetails(w io.Writer, m *modmanifest.Manifest, reg *mods.Registry, layout mods.Layout) {
	field := func(key, value string) {
		fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render(key), value)
	}

	fmt.Fprintln(w, TitleStyle.Render(m.String()))
	field("id", m.ID)
	field("name", m.Name)
	field("version", m.Version)
	field("game", m.GameID+" "+m.GameVersion)
	field("manifest", layout.ManifestPath(m.ID))

	fmt.Fprintln(w)
	fmt.Fprintln(w, SubtitleStyle.Render("Mod files:"))
	if len(m.ModFiles) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, f := range m.ModFiles {
		fmt.Fprintf(w, "  %s\n", layout.ModPath(f))
	}

	fmt.Fprintln(w, SubtitleStyle.Render("Library files:"))
	if len(m.LibraryFiles) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, lib := range m.LibraryFiles {
		line := "  " + layout.LibPath(lib)
		if other, shared := sharedWith(reg, m.ID, lib); shared {
			line += " " + WarningStyle.Render("(also needed by "+other+")")
		}
		fmt.Fprintln(w, line)
	}
}

// sharedWith finds another registered mod declaring lib.
func sharedWith(reg *mods.Registry, self, lib string) (string, bool) {
	for _, other := range reg.All() {
		if other.ID != self && other.DeclaresLibrary(lib) {
			return other.ID, true
		}
	}
	return "", false
}
