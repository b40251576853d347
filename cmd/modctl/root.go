// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for modctl.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/modctl/modctl/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlagValues holds the persistent flags shared by every command.
type rootFlagValues struct {
	verbose    bool
	configPath string
}

// NewRootCommand builds the modctl command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlagValues{}

	rootCmd := &cobra.Command{
		Use:   "modctl",
		Short: "Install and manage mods on a device",
		Long: TitleStyle.Render("modctl") + SubtitleStyle.Render(" - install and manage mods on a device") + `

modctl deploys mod archives (a zip with a mod.json manifest) to a device
reached over adb, SSH or a local directory, tracks what is installed, and
removes mods again without breaking libraries other mods still need.

` + SubtitleStyle.Render("Examples:") + `
  modctl install SongLoader.qmod    Install a mod archive
  modctl list                       Show installed mods
  modctl uninstall song-loader      Remove a mod
  modctl watch ./inbox              Install archives as they are dropped in
  modctl device serve --root ./dev  Run a device emulator over SSH`,
	}

	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is $HOME/.config/modctl/config.cue)")

	rootCmd.AddCommand(
		newInstallCommand(app, flags),
		newUninstallCommand(app, flags),
		newListCommand(app, flags),
		newShowCommand(app, flags),
		newPackCommand(app, flags),
		newWatchCommand(app, flags),
		newDeviceCommand(app, flags),
		newConfigCommand(app, flags),
		newExplainCommand(app, flags),
	)

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits the process with the appropriate code.
func Execute() {
	app := NewApp(Dependencies{})
	rootCmd := NewRootCommand(app)

	err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	)
	if err == nil {
		return
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	os.Exit(1)
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// use their own Format; verbose adds the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
