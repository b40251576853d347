// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/modctl/modctl/internal/config"
	"github.com/modctl/modctl/internal/issue"
)

func newExplainCommand(app *App, flags *rootFlagValues) *cobra.Command {
	var style string

	explainCmd := &cobra.Command{
		Use:   "explain [issue]",
		Short: "Explain an error class and how to fix it",
		Long: `Explain an error class and how to fix it.

Without an argument, every known issue is listed. The issue can be given by
name (as printed after a failure) or by number.`,
		Args: cobra.MaximumNArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			var names []string
			for _, is := range issue.Values() {
				names = append(names, is.Name())
			}
			return names, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				writeIssueIndex(app.stdout)
				return nil
			}
			is, ok := lookupIssue(args[0])
			if !ok {
				return fail(cmd, app.stderr, fmt.Errorf("unknown issue %q", args[0]), false, "explain issue", args[0])
			}
			if style == "" {
				style = glamourStyle(cmd, app, flags)
			}
			rendered, err := is.RenderWidth(style, terminalWidth(app.stdout))
			if err != nil {
				return fail(cmd, app.stderr, err, false, "render issue", is.Name())
			}
			fmt.Fprint(app.stdout, rendered)
			return nil
		},
	}
	explainCmd.Flags().StringVar(&style, "style", "", "glamour style (dark, light, ascii, notty; default from ui.color_scheme)")

	return explainCmd
}

// glamourStyle maps ui.color_scheme to a glamour style. A config that fails
// to load falls back to automatic detection.
func glamourStyle(cmd *cobra.Command, app *App, flags *rootFlagValues) string {
	cfg, _, err := app.loadConfig(cmd.Context(), flags)
	if err != nil {
		return string(config.ColorSchemeAuto)
	}
	return string(cfg.UI.ColorScheme)
}

// lookupIssue accepts an issue name or its number.
func lookupIssue(arg string) (*issue.Issue, bool) {
	if is, ok := issue.Lookup(arg); ok {
		return is, true
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		return nil, false
	}
	is := issue.Get(issue.Id(n))
	return is, is != nil
}

func writeIssueIndex(w io.Writer) {
	fmt.Fprintln(w, TitleStyle.Render("Known issues"))
	for _, is := range issue.Values() {
		fmt.Fprintf(w, "  %3d  %s\n", is.Id(), CmdStyle.Render(is.Name()))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, SubtitleStyle.Render("Run 'modctl explain <name>' for details."))
}

// terminalWidth returns the column count of w when it is a terminal, else 0.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}
