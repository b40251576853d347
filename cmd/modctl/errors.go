// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/spf13/cobra"

	"github.com/modctl/modctl/internal/device"
	"github.com/modctl/modctl/internal/device/adbshell"
	"github.com/modctl/modctl/internal/device/sshshell"
	"github.com/modctl/modctl/internal/device/vshell"
	"github.com/modctl/modctl/internal/issue"
	"github.com/modctl/modctl/internal/mods"
)

// classifyError attaches operation, resource, suggestions and a catalog
// entry to err. An err that already is an ActionableError is returned as is.
func classifyError(err error, operation, resource string) *issue.ActionableError {
	if err == nil {
		return nil
	}

	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae
	}

	ctx := issue.NewErrorContext().
		WithOperation(operation).
		WithResource(resource).
		Wrap(err)

	var (
		alreadyErr *mods.AlreadyInstalledError
		targetErr  *mods.WrongTargetError
	)
	switch {
	case errors.Is(err, mods.ErrBusy):
		ctx.WithIssue(issue.OperationBusyId).
			WithSuggestion("Wait for the running operation to finish and try again")
	case errors.As(err, &alreadyErr):
		ctx.WithIssue(issue.AlreadyInstalledId).
			WithSuggestion(fmt.Sprintf("Run 'modctl uninstall %s' before installing another copy", alreadyErr.ID))
	case errors.As(err, &targetErr):
		ctx.WithIssue(issue.WrongTargetId).
			WithSuggestion(fmt.Sprintf("Use a build of the mod made for %s", targetErr.Target)).
			WithSuggestion("Check 'target_app' in your configuration")
	case errors.Is(err, mods.ErrNotInstalled):
		ctx.WithIssue(issue.NotInstalledId).
			WithSuggestion("Run 'modctl list' to see installed mod ids")
	case errors.Is(err, mods.ErrExtraction):
		ctx.WithIssue(issue.ArchiveUnreadableId).
			WithSuggestion("Verify the file is a complete zip archive")
	case errors.Is(err, mods.ErrManifest):
		ctx.WithIssue(issue.ManifestInvalidId).
			WithSuggestion("Check mod.json at the root of the archive")
	case errors.Is(err, mods.ErrUninstall):
		ctx.WithIssue(issue.UninstallIncompleteId).
			WithSuggestion("Run 'modctl list' to see what is still registered")
	case errors.Is(err, mods.ErrDiscoveryParse):
		ctx.WithIssue(issue.CorruptManifestId)
	case errors.Is(err, adbshell.ErrBinaryNotFound):
		ctx.WithIssue(issue.AdbNotFoundId).
			WithSuggestion("Install Android platform-tools or set device.adb.binary")
	case errors.Is(err, os.ErrPermission):
		ctx.WithIssue(issue.PermissionDeniedId)
	case isDeviceError(err):
		ctx.WithIssue(issue.DeviceUnreachableId).
			WithSuggestion("Check that the device is connected and reachable").
			WithSuggestion("Run 'modctl config show' to see which transport is used")
	}

	return ctx.Build()
}

func isDeviceError(err error) bool {
	var netErr net.Error
	return errors.Is(err, mods.ErrDeployment) ||
		errors.Is(err, device.ErrCommandFailed) ||
		errors.Is(err, sshshell.ErrNoAuthMethod) ||
		errors.Is(err, sshshell.ErrClosed) ||
		errors.Is(err, vshell.ErrInvalidRoot) ||
		errors.As(err, &netErr)
}

// fail prints err in its actionable form and returns an ExitError so fang
// does not print it a second time.
func fail(cmd *cobra.Command, stderr io.Writer, err error, verbose bool, operation, resource string) error {
	if err == nil {
		return nil
	}
	ae := classifyError(err, operation, resource)
	fmt.Fprintf(stderr, "%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(ae, verbose))
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return &ExitError{Code: 1, Err: ae}
}
