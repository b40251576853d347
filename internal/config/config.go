// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/modctl/modctl/internal/issue"
	"github.com/modctl/modctl/internal/mods"
	"github.com/modctl/modctl/pkg/cueutil"
)

const (
	// AppName is the application name.
	AppName = "modctl"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "MODCTL"

	// DefaultTargetApp is the application modctl targets out of the box.
	DefaultTargetApp = "com.beatgames.beatsaber"
	// DefaultSSHPort is the port of the modctl device emulator.
	DefaultSSHPort = 2222
	// DefaultWatchPattern matches mod archives anywhere below the watched directory.
	DefaultWatchPattern = "**/*.{qmod,zip}"
)

//go:embed config_schema.cue
var configSchema []byte

// DefaultConfig returns the configuration used when no file and no
// environment override is present.
func DefaultConfig() *Config {
	return &Config{
		TargetApp: DefaultTargetApp,
		Device: DeviceConfig{
			Transport: TransportADB,
			SSH: SSHConfig{
				Host: "127.0.0.1",
				Port: DefaultSSHPort,
				User: AppName,
			},
		},
		Layout: LayoutConfig{
			ManifestsDir: mods.DefaultManifestsDir,
			ModsDir:      mods.DefaultModsDir,
			LibsDir:      mods.DefaultLibsDir,
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
		Lock: LockConfig{
			CrossProcess: true,
		},
		Watch: WatchConfig{
			Pattern:  DefaultWatchPattern,
			Debounce: "500ms",
		},
	}
}

// ConfigDir returns the modctl configuration directory under the
// platform's user config directory.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// FilePath returns the config file path inside dir, or inside ConfigDir when
// dir is empty.
func FilePath(dir string) (string, error) {
	dir, err := configDirWithOverride(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), nil
}

// loadWithOptions reads defaults, then the config file, then the
// environment, and validates the result.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := newViper()

	resolvedPath := ""
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'modctl config init' to write a default configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cuePath, err := FilePath(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}
		if fileExists(cuePath) {
			resolvedPath = cuePath
		}
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Run 'modctl config show' to see the effective configuration").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// newViper returns a Viper instance with every key defaulted, so that
// AutomaticEnv can override any of them.
func newViper() *viper.Viper {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("target_app", defaults.TargetApp)
	v.SetDefault("device.transport", string(defaults.Device.Transport))
	v.SetDefault("device.adb.binary", defaults.Device.ADB.Binary)
	v.SetDefault("device.adb.serial", defaults.Device.ADB.Serial)
	v.SetDefault("device.ssh.host", defaults.Device.SSH.Host)
	v.SetDefault("device.ssh.port", defaults.Device.SSH.Port)
	v.SetDefault("device.ssh.user", defaults.Device.SSH.User)
	v.SetDefault("device.ssh.password", defaults.Device.SSH.Password)
	v.SetDefault("device.ssh.key_file", defaults.Device.SSH.KeyFile)
	v.SetDefault("device.ssh.known_hosts_file", defaults.Device.SSH.KnownHostsFile)
	v.SetDefault("device.local.root", defaults.Device.Local.Root)
	v.SetDefault("layout.manifests_dir", defaults.Layout.ManifestsDir)
	v.SetDefault("layout.mods_dir", defaults.Layout.ModsDir)
	v.SetDefault("layout.libs_dir", defaults.Layout.LibsDir)
	v.SetDefault("scratch_dir", defaults.ScratchDir)
	v.SetDefault("ui.color_scheme", string(defaults.UI.ColorScheme))
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
	v.SetDefault("lock.cross_process", defaults.Lock.CrossProcess)
	v.SetDefault("watch.pattern", defaults.Watch.Pattern)
	v.SetDefault("watch.debounce", defaults.Watch.Debounce)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}
	return ConfigDir()
}

// loadCUEIntoViper validates a CUE file against #Config and merges it into
// Viper. Fields are optional, so validation is not concrete.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	unified, err := cueutil.Validate(configSchema, data, "#Config",
		cueutil.WithFilename(path), cueutil.WithConcrete(false))
	if err != nil {
		return err
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default config file into dir (ConfigDir
// when empty) unless one exists. It returns the file path and whether it
// was written.
func CreateDefaultConfig(dir string) (string, bool, error) {
	cfgPath, err := FilePath(dir)
	if err != nil {
		return "", false, err
	}
	if fileExists(cfgPath) {
		return cfgPath, false, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write config file: %w", err)
	}
	return cfgPath, true, nil
}

// GenerateCUE renders cfg as a config file. Secrets are never written.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// modctl configuration file\n")
	sb.WriteString("// Every field is optional. MODCTL_* environment variables override it.\n\n")

	fmt.Fprintf(&sb, "target_app: %q\n", cfg.TargetApp)

	sb.WriteString("\ndevice: {\n")
	fmt.Fprintf(&sb, "\ttransport: %q\n", cfg.Device.Transport)
	sb.WriteString("\tadb: {\n")
	fmt.Fprintf(&sb, "\t\tbinary: %q\n", cfg.Device.ADB.Binary)
	fmt.Fprintf(&sb, "\t\tserial: %q\n", cfg.Device.ADB.Serial)
	sb.WriteString("\t}\n")
	sb.WriteString("\tssh: {\n")
	fmt.Fprintf(&sb, "\t\thost: %q\n", cfg.Device.SSH.Host)
	fmt.Fprintf(&sb, "\t\tport: %d\n", cfg.Device.SSH.Port)
	fmt.Fprintf(&sb, "\t\tuser: %q\n", cfg.Device.SSH.User)
	fmt.Fprintf(&sb, "\t\tkey_file: %q\n", cfg.Device.SSH.KeyFile)
	fmt.Fprintf(&sb, "\t\tknown_hosts_file: %q\n", cfg.Device.SSH.KnownHostsFile)
	sb.WriteString("\t\t// password: set MODCTL_DEVICE_SSH_PASSWORD instead of storing it here\n")
	sb.WriteString("\t}\n")
	sb.WriteString("\tlocal: {\n")
	fmt.Fprintf(&sb, "\t\troot: %q\n", cfg.Device.Local.Root)
	sb.WriteString("\t}\n")
	sb.WriteString("}\n")

	sb.WriteString("\nlayout: {\n")
	fmt.Fprintf(&sb, "\tmanifests_dir: %q\n", cfg.Layout.ManifestsDir)
	fmt.Fprintf(&sb, "\tmods_dir: %q\n", cfg.Layout.ModsDir)
	fmt.Fprintf(&sb, "\tlibs_dir: %q\n", cfg.Layout.LibsDir)
	sb.WriteString("}\n")

	fmt.Fprintf(&sb, "\nscratch_dir: %q\n", cfg.ScratchDir)

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	sb.WriteString("\nlock: {\n")
	fmt.Fprintf(&sb, "\tcross_process: %v\n", cfg.Lock.CrossProcess)
	sb.WriteString("}\n")

	sb.WriteString("\nwatch: {\n")
	fmt.Fprintf(&sb, "\tpattern: %q\n", cfg.Watch.Pattern)
	fmt.Fprintf(&sb, "\tdebounce: %q\n", cfg.Watch.Debounce)
	sb.WriteString("}\n")

	return sb.String()
}

// RemoteLayout returns the remote layout with {app-id} expanded.
func (c *Config) RemoteLayout() mods.Layout {
	return mods.Layout{
		ManifestsDir: c.Layout.ManifestsDir,
		ModsDir:      c.Layout.ModsDir,
		LibsDir:      c.Layout.LibsDir,
	}.Expand(c.TargetApp)
}

// ScratchPath returns ScratchDir, or a per-device directory under the user
// cache directory when it is empty.
func (c *Config) ScratchPath() (string, error) {
	if c.ScratchDir != "" {
		return c.ScratchDir, nil
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user cache directory: %w", err)
	}
	return filepath.Join(cache, AppName, "scratch", sanitize(c.Device.Key())), nil
}

func sanitize(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, key)
}
