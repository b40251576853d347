// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/modctl/modctl/internal/archive"
	"github.com/modctl/modctl/internal/config"
	"github.com/modctl/modctl/internal/device"
	"github.com/modctl/modctl/internal/device/adbshell"
	"github.com/modctl/modctl/internal/device/sshshell"
	"github.com/modctl/modctl/internal/device/vshell"
	"github.com/modctl/modctl/internal/issue"
	"github.com/modctl/modctl/internal/mods"
	"github.com/modctl/modctl/internal/oplock"
)

type (
	// App is the composition root of the CLI. Every command handler receives
	// it and reaches config, transport and output through it.
	App struct {
		Config  config.Provider
		Connect Connector
		stdout  io.Writer
		stderr  io.Writer
	}

	// Dependencies are the injection points for NewApp. Nil fields get
	// production defaults.
	Dependencies struct {
		Config  config.Provider
		Connect Connector
		Stdout  io.Writer
		Stderr  io.Writer
	}

	// Connector opens the transport selected by cfg. The returned closer
	// releases it and may be nil.
	Connector func(ctx context.Context, cfg *config.Config, logger *log.Logger) (device.Shell, io.Closer, error)

	// session is one loaded config plus an open device and a discovered
	// manager, valid for a single command invocation.
	session struct {
		cfg     *config.Config
		shell   device.Shell
		manager *mods.Manager
		logger  *log.Logger
		closer  io.Closer
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Connect == nil {
		deps.Connect = connectDevice
	}
	return &App{
		Config:  deps.Config,
		Connect: deps.Connect,
		stdout:  deps.Stdout,
		stderr:  deps.Stderr,
	}
}

// loadConfig loads configuration honoring --config. verbose is raised to
// true when the config asks for it.
func (a *App) loadConfig(ctx context.Context, flags *rootFlagValues) (*config.Config, string, error) {
	cfg, path, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: flags.configPath})
	if err != nil {
		return nil, "", err
	}
	if cfg.UI.Verbose {
		flags.verbose = true
	}
	return cfg, path, nil
}

// newLogger returns the CLI logger; verbose lowers the level to debug.
func (a *App) newLogger(verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(a.stderr, log.Options{Level: level})
}

// progressReporter renders engine progress lines on stdout.
func (a *App) progressReporter() mods.Reporter {
	return mods.ReporterFunc(func(msg string) {
		fmt.Fprintf(a.stdout, "%s %s\n", progressBullet, msg)
	})
}

// openSession loads config, connects to the device and runs discovery.
// Discovery parse failures are logged as warnings and do not fail the
// session.
func (a *App) openSession(ctx context.Context, flags *rootFlagValues) (*session, error) {
	cfg, _, err := a.loadConfig(ctx, flags)
	if err != nil {
		return nil, err
	}
	logger := a.newLogger(flags.verbose)

	shell, closer, err := a.Connect(ctx, cfg, logger.WithPrefix("device"))
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("connect to device").
			WithResource(string(cfg.Device.Transport)).
			WithIssue(connectIssue(err)).
			WithSuggestion("Run 'modctl config show' to check the device settings").
			Wrap(err).
			BuildError()
	}

	s := &session{cfg: cfg, shell: shell, logger: logger, closer: closer}
	if s.manager, err = a.newManager(cfg, shell, logger); err != nil {
		s.Close()
		return nil, err
	}

	parseErrs, err := s.manager.Load(ctx)
	if err != nil {
		s.Close()
		return nil, classifyError(err, "discover installed mods", cfg.RemoteLayout().ManifestsDir)
	}
	for _, perr := range parseErrs {
		logger.Warn("skipping unreadable manifest", "err", perr)
	}
	logger.Debug("discovery finished", "installed", len(s.manager.Installed()), "skipped", len(parseErrs))
	return s, nil
}

func (a *App) newManager(cfg *config.Config, shell device.Shell, logger *log.Logger) (*mods.Manager, error) {
	scratch, err := cfg.ScratchPath()
	if err != nil {
		return nil, err
	}
	var lockPath string
	if cfg.Lock.CrossProcess {
		lockPath = oplock.PathFor(cfg.Device.Key())
	}
	return mods.NewManager(device.NewPort(shell), mods.Config{
		Target:     cfg.TargetApp,
		Layout:     cfg.RemoteLayout(),
		ScratchDir: scratch,
		Extractor:  archive.Zip{},
		LockPath:   lockPath,
		Reporter:   a.progressReporter(),
		Logger:     logger.WithPrefix("mods"),
	})
}

// Close releases the transport.
func (s *session) Close() {
	if s.closer == nil {
		return
	}
	if err := s.closer.Close(); err != nil {
		s.logger.Debug("close transport", "err", err)
	}
}

func connectIssue(err error) issue.Id {
	if errors.Is(err, adbshell.ErrBinaryNotFound) {
		return issue.AdbNotFoundId
	}
	return issue.DeviceUnreachableId
}

// connectDevice is the production Connector.
func connectDevice(ctx context.Context, cfg *config.Config, logger *log.Logger) (device.Shell, io.Closer, error) {
	switch cfg.Device.Transport {
	case config.TransportADB:
		var opts []adbshell.Option
		if cfg.Device.ADB.Binary != "" {
			opts = append(opts, adbshell.WithBinary(cfg.Device.ADB.Binary))
		}
		if cfg.Device.ADB.Serial != "" {
			opts = append(opts, adbshell.WithSerial(cfg.Device.ADB.Serial))
		}
		sh, err := adbshell.New(opts...)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("using adb", "binary", sh.Binary(), "serial", cfg.Device.ADB.Serial)
		return sh, nil, nil

	case config.TransportSSH:
		ssh := cfg.Device.SSH
		sh, err := sshshell.Dial(ctx, sshshell.Config{
			Host:           ssh.Host,
			Port:           ssh.Port,
			User:           ssh.User,
			Password:       ssh.Password,
			KeyFile:        ssh.KeyFile,
			KnownHostsFile: ssh.KnownHostsFile,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("connected over ssh", "host", ssh.Host, "port", ssh.Port, "user", ssh.User)
		return sh, sh, nil

	case config.TransportLocal:
		sh, err := vshell.New(cfg.Device.Local.Root)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("using local device root", "root", sh.Root())
		return sh, nil, nil

	default:
		return nil, nil, &config.InvalidTransportError{Value: cfg.Device.Transport}
	}
}
