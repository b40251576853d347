// SPDX-License-Identifier: MPL-2.0

package mods

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExtraction is the sentinel error wrapped by ExtractionError.
	ErrExtraction = errors.New("mod archive could not be extracted")

	// ErrManifest is the sentinel error wrapped by ManifestError.
	ErrManifest = errors.New("mod manifest is missing or invalid")

	// ErrWrongTarget is the sentinel error wrapped by WrongTargetError.
	ErrWrongTarget = errors.New("mod is built for a different application")

	// ErrAlreadyInstalled is the sentinel error wrapped by AlreadyInstalledError.
	ErrAlreadyInstalled = errors.New("mod is already installed")

	// ErrNotInstalled is the sentinel error wrapped by NotInstalledError.
	ErrNotInstalled = errors.New("mod is not installed")

	// ErrDeployment is the sentinel error wrapped by DeploymentError.
	ErrDeployment = errors.New("remote file operation failed")

	// ErrDiscoveryParse is the sentinel error wrapped by DiscoveryParseError.
	ErrDiscoveryParse = errors.New("persisted manifest could not be parsed")

	// ErrUninstall is the sentinel error wrapped by UninstallError.
	ErrUninstall = errors.New("uninstall did not complete cleanly")

	// ErrBusy is returned by TryInstall and TryUninstall when another
	// operation holds the manager.
	ErrBusy = errors.New("another mod operation is in progress")
)

type (
	// ExtractionError is returned when the archive cannot be unpacked.
	ExtractionError struct {
		Archive string
		Err     error
	}

	// ManifestError is returned when mod.json is absent, fails to parse, or
	// declares files the archive does not contain.
	ManifestError struct {
		Archive string
		Missing []string
		Err     error
	}

	// WrongTargetError is returned when a mod's gameId differs from the
	// configured target application.
	WrongTargetError struct {
		ModID  string
		GameID string
		Target string
	}

	// AlreadyInstalledError is returned when installing an id that is registered.
	AlreadyInstalledError struct {
		ID string
	}

	// NotInstalledError is returned when uninstalling an id that is not registered.
	NotInstalledError struct {
		ID string
	}

	// DeploymentError names the remote path a push or delete failed on.
	DeploymentError struct {
		Op   string
		Path string
		Err  error
	}

	// DiscoveryParseError reports one persisted manifest that was skipped.
	DiscoveryParseError struct {
		Path string
		Err  error
	}

	// UninstallError aggregates every failed step of a best-effort uninstall.
	UninstallError struct {
		ID   string
		Errs []error
	}
)

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Archive, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ExtractionError) Unwrap() error { return e.Err }

// Is reports ErrExtraction.
func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }

// Error implements the error interface.
func (e *ManifestError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("load manifest from %s: declared files missing from archive: %s",
			e.Archive, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("load manifest from %s: %v", e.Archive, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ManifestError) Unwrap() error { return e.Err }

// Is reports ErrManifest.
func (e *ManifestError) Is(target error) bool { return target == ErrManifest }

// Error implements the error interface.
func (e *WrongTargetError) Error() string {
	return fmt.Sprintf("mod %s is built for %q, not %q", e.ModID, e.GameID, e.Target)
}

// Unwrap returns ErrWrongTarget for errors.Is compatibility.
func (e *WrongTargetError) Unwrap() error { return ErrWrongTarget }

// Error implements the error interface.
func (e *AlreadyInstalledError) Error() string {
	return fmt.Sprintf("mod %s is already installed; uninstall it first", e.ID)
}

// Unwrap returns ErrAlreadyInstalled for errors.Is compatibility.
func (e *AlreadyInstalledError) Unwrap() error { return ErrAlreadyInstalled }

// Error implements the error interface.
func (e *NotInstalledError) Error() string {
	return fmt.Sprintf("mod %s is not installed", e.ID)
}

// Unwrap returns ErrNotInstalled for errors.Is compatibility.
func (e *NotInstalledError) Unwrap() error { return ErrNotInstalled }

// Error implements the error interface.
func (e *DeploymentError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *DeploymentError) Unwrap() error { return e.Err }

// Is reports ErrDeployment.
func (e *DeploymentError) Is(target error) bool { return target == ErrDeployment }

// Error implements the error interface.
func (e *DiscoveryParseError) Error() string {
	return fmt.Sprintf("skipping persisted manifest %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *DiscoveryParseError) Unwrap() error { return e.Err }

// Is reports ErrDiscoveryParse.
func (e *DiscoveryParseError) Is(target error) bool { return target == ErrDiscoveryParse }

// Error implements the error interface.
func (e *UninstallError) Error() string {
	return fmt.Sprintf("uninstall %s: %d step(s) failed:\n%v", e.ID, len(e.Errs), errors.Join(e.Errs...))
}

// Unwrap returns every failed step.
func (e *UninstallError) Unwrap() []error { return e.Errs }

// Is reports ErrUninstall.
func (e *UninstallError) Is(target error) bool { return target == ErrUninstall }
