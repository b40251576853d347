// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/modctl/modctl/internal/config"
	"github.com/modctl/modctl/internal/device"
	"github.com/modctl/modctl/internal/sshserver"
)

type serveFlagValues struct {
	root  string
	host  string
	port  int
	token string
}

func newDeviceCommand(app *App, flags *rootFlagValues) *cobra.Command {
	deviceCmd := &cobra.Command{
		Use:   "device",
		Short: "Talk to the device directly or emulate one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	deviceCmd.AddCommand(newDeviceExecCommand(app, flags), newDeviceServeCommand(app, flags))
	return deviceCmd
}

func newDeviceExecCommand(app *App, flags *rootFlagValues) *cobra.Command {
	var detach bool

	execCmd := &cobra.Command{
		Use:   "exec <line>",
		Short: "Run a shell line on the device",
		Long: `Run a shell line on the device through the configured transport.

With --detach the output is discarded and a failure is only logged, the way
fire-and-forget commands such as restarting the target app are sent.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			line := strings.Join(args, " ")
			ctx := cmd.Context()

			s, err := app.openSession(ctx, flags)
			if err != nil {
				return fail(cmd, app.stderr, err, flags.verbose, "run device command", line)
			}
			defer s.Close()

			if detach {
				<-device.Detach(ctx, s.shell, line, s.logger.WithPrefix("device"))
				return nil
			}

			out, err := s.shell.Run(ctx, line)
			if err != nil {
				var cmdErr *device.CommandError
				if errors.As(err, &cmdErr) && cmdErr.Output != "" {
					fmt.Fprint(app.stderr, cmdErr.Output)
				}
				return fail(cmd, app.stderr, err, flags.verbose, "run device command", line)
			}
			fmt.Fprint(app.stdout, out)
			return nil
		},
	}
	execCmd.Flags().BoolVarP(&detach, "detach", "d", false, "discard output and do not fail on errors")

	return execCmd
}

func newDeviceServeCommand(app *App, flags *rootFlagValues) *cobra.Command {
	sf := &serveFlagValues{}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Emulate a device over SSH, backed by a local directory",
		Long: `Serve a local directory as a device over SSH.

Command lines sent by the ssh transport run in a confined virtual shell
rooted at --root. Clients authenticate with the token as password. Point
another modctl at it with device.transport = "ssh".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDeviceServe(cmd, app, flags, sf)
		},
	}
	serveCmd.Flags().StringVar(&sf.root, "root", "", "directory acting as the device filesystem (default device.local.root)")
	serveCmd.Flags().StringVar(&sf.host, "host", "", "address to listen on (default device.ssh.host)")
	serveCmd.Flags().IntVar(&sf.port, "port", -1, "port to listen on, 0 picks a free one (default device.ssh.port)")
	serveCmd.Flags().StringVar(&sf.token, "token", "", "shared secret clients send as password (default device.ssh.password, or random)")

	return serveCmd
}

func runDeviceServe(cmd *cobra.Command, app *App, flags *rootFlagValues, sf *serveFlagValues) error {
	ctx := cmd.Context()
	cfg, _, err := app.loadConfig(ctx, flags)
	if err != nil {
		return fail(cmd, app.stderr, err, flags.verbose, "start device emulator", "")
	}

	sc := serverConfig(cfg, sf, app.newLogger(flags.verbose))
	if sc.Root == "" {
		return fail(cmd, app.stderr, errors.New("no device root: pass --root or set device.local.root"),
			flags.verbose, "start device emulator", "")
	}
	srv, err := sshserver.New(sc)
	if err != nil {
		return fail(cmd, app.stderr, err, flags.verbose, "start device emulator", sf.root)
	}
	if err := srv.Start(ctx); err != nil {
		return fail(cmd, app.stderr, err, flags.verbose, "start device emulator", sf.root)
	}

	info, err := srv.ConnectionInfo()
	if err != nil {
		_ = srv.Stop()
		return fail(cmd, app.stderr, err, flags.verbose, "start device emulator", sf.root)
	}
	printConnectionInfo(app.stdout, srv.Root(), info)

	select {
	case <-ctx.Done():
	case err := <-srv.Err():
		if err != nil {
			_ = srv.Stop()
			return fail(cmd, app.stderr, err, flags.verbose, "serve device", srv.Root())
		}
	}

	if err := srv.Stop(); err != nil {
		return fail(cmd, app.stderr, err, flags.verbose, "stop device emulator", srv.Root())
	}
	return nil
}

// serverConfig merges serve flags over the config file's device settings.
func serverConfig(cfg *config.Config, sf *serveFlagValues, logger *log.Logger) sshserver.Config {
	sc := sshserver.Config{
		Root:   cfg.Device.Local.Root,
		Host:   cfg.Device.SSH.Host,
		Port:   cfg.Device.SSH.Port,
		Token:  cfg.Device.SSH.Password,
		Logger: logger.WithPrefix("device-server"),
	}
	if sf.root != "" {
		sc.Root = sf.root
	}
	if sf.host != "" {
		sc.Host = sf.host
	}
	if sf.port >= 0 {
		sc.Port = sf.port
	}
	if sf.token != "" {
		sc.Token = sf.token
	}
	return sc
}

func printConnectionInfo(w io.Writer, root string, info *sshserver.ConnectionInfo) {
	fmt.Fprintln(w, TitleStyle.Render("Device emulator running"))
	fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("root"), root)
	fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("address"), fmt.Sprintf("%s:%d", info.Host, info.Port))
	fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("user"), info.User)
	fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("token"), info.Token)
	fmt.Fprintln(w)
	fmt.Fprintln(w, SubtitleStyle.Render("Connect with:"))
	fmt.Fprintf(w, "  MODCTL_DEVICE_TRANSPORT=ssh MODCTL_DEVICE_SSH_HOST=%s MODCTL_DEVICE_SSH_PORT=%d \\\n", info.Host, info.Port)
	fmt.Fprintf(w, "  MODCTL_DEVICE_SSH_USER=%s MODCTL_DEVICE_SSH_PASSWORD=%s modctl list\n", info.User, info.Token)
	fmt.Fprintln(w, SubtitleStyle.Render("Press Ctrl+C to stop."))
}
