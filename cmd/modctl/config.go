// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/modctl/modctl/internal/config"
)

const redacted = "(set)"

func newConfigCommand(app *App, flags *rootFlagValues) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage modctl configuration",
		Long: `Manage modctl configuration.

Configuration is stored in:
  - Linux: ~/.config/modctl/config.cue
  - macOS: ~/Library/Application Support/modctl/config.cue
  - Windows: %APPDATA%\modctl\config.cue

Every key can be overridden with a MODCTL_* environment variable, for
example MODCTL_DEVICE_TRANSPORT=local.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var raw bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showConfig(cmd.Context(), cmd, app, flags, raw)
		},
	}
	showCmd.Flags().BoolVar(&raw, "raw", false, "print the effective configuration as CUE")

	cfgCmd.AddCommand(
		showCmd,
		&cobra.Command{
			Use:   "init",
			Short: "Create the default configuration file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				path, written, err := config.CreateDefaultConfig("")
				if err != nil {
					return fail(cmd, app.stderr, err, flags.verbose, "create configuration", path)
				}
				if !written {
					fmt.Fprintf(app.stdout, "%s %s\n", WarningStyle.Render("Config file already exists:"), path)
					return nil
				}
				fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("Created config file:"), path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Show the configuration file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				path := flags.configPath
				if path == "" {
					var err error
					if path, err = config.FilePath(""); err != nil {
						return fail(cmd, app.stderr, err, flags.verbose, "locate configuration", "")
					}
				}
				fmt.Fprintln(app.stdout, path)
				return nil
			},
		},
	)

	return cfgCmd
}

func showConfig(ctx context.Context, cmd *cobra.Command, app *App, flags *rootFlagValues, raw bool) error {
	cfg, path, err := app.loadConfig(ctx, flags)
	if err != nil {
		return fail(cmd, app.stderr, err, flags.verbose, "load configuration", flags.configPath)
	}
	if raw {
		fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
		return nil
	}
	writeConfig(app.stdout, cfg, path)
	return nil
}

// writeConfig prints cfg as styled key/value pairs. The SSH password is
// never printed.
func writeConfig(w io.Writer, cfg *config.Config, path string) {
	kv := func(key, value string) {
		fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render(key), SuccessStyle.Render(value))
	}

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if path == "" {
		fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	} else {
		fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("Config file"), path)
	}
	fmt.Fprintln(w)

	layout := cfg.RemoteLayout()
	password := ""
	if cfg.Device.SSH.Password != "" {
		password = redacted
	}

	kv("target_app", cfg.TargetApp)
	kv("device.transport", string(cfg.Device.Transport))
	kv("device.key", cfg.Device.Key())
	switch cfg.Device.Transport {
	case config.TransportADB:
		kv("device.adb.binary", cfg.Device.ADB.Binary)
		kv("device.adb.serial", cfg.Device.ADB.Serial)
	case config.TransportSSH:
		kv("device.ssh.host", cfg.Device.SSH.Host)
		kv("device.ssh.port", strconv.Itoa(cfg.Device.SSH.Port))
		kv("device.ssh.user", cfg.Device.SSH.User)
		kv("device.ssh.password", password)
		kv("device.ssh.key_file", cfg.Device.SSH.KeyFile)
		kv("device.ssh.known_hosts_file", cfg.Device.SSH.KnownHostsFile)
	case config.TransportLocal:
		kv("device.local.root", cfg.Device.Local.Root)
	}
	kv("layout.manifests_dir", layout.ManifestsDir)
	kv("layout.mods_dir", layout.ModsDir)
	kv("layout.libs_dir", layout.LibsDir)
	if scratch, err := cfg.ScratchPath(); err == nil {
		kv("scratch_dir", scratch)
	}
	kv("ui.color_scheme", string(cfg.UI.ColorScheme))
	kv("ui.verbose", strconv.FormatBool(cfg.UI.Verbose))
	kv("lock.cross_process", strconv.FormatBool(cfg.Lock.CrossProcess))
	kv("watch.pattern", cfg.Watch.Pattern)
	kv("watch.debounce", cfg.Watch.Debounce)
}
