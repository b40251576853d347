// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// TransportADB drives a physical device through `adb shell` and `adb push`.
	TransportADB TransportKind = "adb"
	// TransportSSH drives a device, or the modctl device emulator, over SSH.
	TransportSSH TransportKind = "ssh"
	// TransportLocal treats a host directory as the device root.
	TransportLocal TransportKind = "local"

	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"
)

var (
	// ErrInvalidTransport is returned when a TransportKind value is not recognized.
	ErrInvalidTransport = errors.New("invalid device transport")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidDeviceConfig is the sentinel error wrapped by InvalidDeviceConfigError.
	ErrInvalidDeviceConfig = errors.New("invalid device config")
	// ErrInvalidWatchConfig is the sentinel error wrapped by InvalidWatchConfigError.
	ErrInvalidWatchConfig = errors.New("invalid watch config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// TransportKind selects how modctl reaches the device.
	TransportKind string

	// InvalidTransportError is returned when a TransportKind value is not recognized.
	// It wraps ErrInvalidTransport for errors.Is() compatibility.
	InvalidTransportError struct {
		Value TransportKind
	}

	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// InvalidDeviceConfigError collects field errors of the selected transport.
	InvalidDeviceConfigError struct {
		FieldErrors []error
	}

	// InvalidWatchConfigError collects field errors of the watch section.
	InvalidWatchConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config is the complete modctl configuration.
	Config struct {
		// TargetApp is the application id installed mods must target.
		TargetApp string `json:"target_app" mapstructure:"target_app"`
		// Device selects and configures the transport.
		Device DeviceConfig `json:"device" mapstructure:"device"`
		// Layout is the remote directory layout, with {app-id} placeholders.
		Layout LayoutConfig `json:"layout" mapstructure:"layout"`
		// ScratchDir overrides the local extraction directory.
		ScratchDir string `json:"scratch_dir" mapstructure:"scratch_dir"`
		// UI configures terminal output.
		UI UIConfig `json:"ui" mapstructure:"ui"`
		// Lock configures cross-process serialization.
		Lock LockConfig `json:"lock" mapstructure:"lock"`
		// Watch configures `modctl watch`.
		Watch WatchConfig `json:"watch" mapstructure:"watch"`
	}

	// DeviceConfig selects the transport and holds the settings of each.
	DeviceConfig struct {
		Transport TransportKind `json:"transport" mapstructure:"transport"`
		ADB       ADBConfig     `json:"adb" mapstructure:"adb"`
		SSH       SSHConfig     `json:"ssh" mapstructure:"ssh"`
		Local     LocalConfig   `json:"local" mapstructure:"local"`
	}

	// ADBConfig configures the adb transport.
	ADBConfig struct {
		Binary string `json:"binary" mapstructure:"binary"`
		Serial string `json:"serial" mapstructure:"serial"`
	}

	// SSHConfig configures the SSH transport.
	SSHConfig struct {
		Host           string `json:"host" mapstructure:"host"`
		Port           int    `json:"port" mapstructure:"port"`
		User           string `json:"user" mapstructure:"user"`
		Password       string `json:"password" mapstructure:"password"`
		KeyFile        string `json:"key_file" mapstructure:"key_file"`
		KnownHostsFile string `json:"known_hosts_file" mapstructure:"known_hosts_file"`
	}

	// LocalConfig configures the local directory transport.
	LocalConfig struct {
		Root string `json:"root" mapstructure:"root"`
	}

	// LayoutConfig is where mods live on the device.
	LayoutConfig struct {
		ManifestsDir string `json:"manifests_dir" mapstructure:"manifests_dir"`
		ModsDir      string `json:"mods_dir" mapstructure:"mods_dir"`
		LibsDir      string `json:"libs_dir" mapstructure:"libs_dir"`
	}

	// UIConfig contains user interface settings.
	UIConfig struct {
		// ColorScheme sets the color scheme ("auto", "dark", "light").
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		// Verbose enables debug logging and full error chains.
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}

	// LockConfig configures the device lock.
	LockConfig struct {
		CrossProcess bool `json:"cross_process" mapstructure:"cross_process"`
	}

	// WatchConfig configures the archive inbox.
	WatchConfig struct {
		Pattern  string `json:"pattern" mapstructure:"pattern"`
		Debounce string `json:"debounce" mapstructure:"debounce"`
	}
)

// Error implements the error interface.
func (e *InvalidTransportError) Error() string {
	return fmt.Sprintf("invalid device transport %q (valid: adb, ssh, local)", e.Value)
}

// Unwrap returns ErrInvalidTransport for errors.Is() compatibility.
func (e *InvalidTransportError) Unwrap() error { return ErrInvalidTransport }

// IsValid returns whether the TransportKind is one of the defined kinds,
// and a list of validation errors if it is not.
func (t TransportKind) IsValid() (bool, []error) {
	switch t {
	case TransportADB, TransportSSH, TransportLocal:
		return true, nil
	default:
		return false, []error{&InvalidTransportError{Value: t}}
	}
}

// Error implements the error interface.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns ErrInvalidColorScheme for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }

// IsValid returns whether the ColorScheme is one of the defined schemes,
// and a list of validation errors if it is not.
func (c ColorScheme) IsValid() (bool, []error) {
	switch c {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: c}}
	}
}

// Error implements the error interface.
func (e *InvalidDeviceConfigError) Error() string {
	return fmt.Sprintf("invalid device config: %s", joinErrors(e.FieldErrors))
}

// Unwrap returns ErrInvalidDeviceConfig for errors.Is() compatibility.
func (e *InvalidDeviceConfigError) Unwrap() error { return ErrInvalidDeviceConfig }

// IsValid checks the transport kind and the settings that kind requires.
// Settings of unselected transports are not checked.
func (c DeviceConfig) IsValid() (bool, []error) {
	if valid, errs := c.Transport.IsValid(); !valid {
		return false, errs
	}

	var errs []error
	switch c.Transport {
	case TransportSSH:
		if strings.TrimSpace(c.SSH.Host) == "" {
			errs = append(errs, errors.New("device.ssh.host is required for the ssh transport"))
		}
		if c.SSH.Port <= 0 || c.SSH.Port > 65535 {
			errs = append(errs, fmt.Errorf("device.ssh.port %d is out of range", c.SSH.Port))
		}
		if c.SSH.Password == "" && c.SSH.KeyFile == "" {
			errs = append(errs, errors.New("device.ssh needs a password or a key_file"))
		}
	case TransportLocal:
		if strings.TrimSpace(c.Local.Root) == "" {
			errs = append(errs, errors.New("device.local.root is required for the local transport"))
		}
	case TransportADB:
		if c.ADB.Binary != "" && strings.TrimSpace(c.ADB.Binary) == "" {
			errs = append(errs, errors.New("device.adb.binary must not be whitespace-only"))
		}
	}
	if len(errs) > 0 {
		return false, []error{&InvalidDeviceConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Key identifies the device for lock files and scratch directories.
func (c DeviceConfig) Key() string {
	switch c.Transport {
	case TransportSSH:
		return fmt.Sprintf("ssh-%s-%d", c.SSH.Host, c.SSH.Port)
	case TransportLocal:
		return "local-" + c.Local.Root
	default:
		if c.ADB.Serial != "" {
			return "adb-" + c.ADB.Serial
		}
		return "adb"
	}
}

// Error implements the error interface.
func (e *InvalidWatchConfigError) Error() string {
	return fmt.Sprintf("invalid watch config: %s", joinErrors(e.FieldErrors))
}

// Unwrap returns ErrInvalidWatchConfig for errors.Is() compatibility.
func (e *InvalidWatchConfigError) Unwrap() error { return ErrInvalidWatchConfig }

// IsValid checks that the debounce parses as a non-negative duration.
func (c WatchConfig) IsValid() (bool, []error) {
	if _, err := c.DebounceDuration(); err != nil {
		return false, []error{&InvalidWatchConfigError{FieldErrors: []error{err}}}
	}
	return true, nil
}

// DebounceDuration parses Debounce. Empty means zero.
func (c WatchConfig) DebounceDuration() (time.Duration, error) {
	if c.Debounce == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Debounce)
	if err != nil {
		return 0, fmt.Errorf("watch.debounce: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("watch.debounce %s must not be negative", c.Debounce)
	}
	return d, nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s", joinErrors(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// IsValid validates every section and collects all field errors.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if strings.TrimSpace(c.TargetApp) == "" {
		errs = append(errs, errors.New("target_app must not be empty"))
	}
	if valid, fieldErrs := c.Device.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.UI.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Watch.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Validate is IsValid collapsed into a single error.
func (c Config) Validate() error {
	if valid, errs := c.IsValid(); !valid {
		return errs[0]
	}
	return nil
}

func joinErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}
