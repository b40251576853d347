// SPDX-License-Identifier: MPL-2.0

package mods

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/modctl/modctl/internal/device"
	"github.com/modctl/modctl/pkg/modmanifest"
)

// Remover uninstalls mods.
type Remover struct {
	port     device.Port
	registry *Registry
	layout   Layout
	logger   *log.Logger
}

// NewRemover creates a Remover.
func NewRemover(port device.Port, registry *Registry, layout Layout, logger *log.Logger) *Remover {
	return &Remover{port: port, registry: registry, layout: layout, logger: logger}
}

// Uninstall removes mod id from the device.
//
// The registry entry goes first, so the library check below only sees the
// other installed mods. Mod files are always deleted; a library is kept when
// another registered mod declares it. The persisted manifest is deleted
// last. Every step is attempted; failures are collected into one
// UninstallError.
func (r *Remover) Uninstall(ctx context.Context, id string, rep Reporter) (*modmanifest.Manifest, error) {
	m, ok := r.registry.Unregister(id)
	if !ok {
		return nil, &NotInstalledError{ID: id}
	}

	var errs []error
	remove := func(remote string) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, &DeploymentError{Op: "delete", Path: remote, Err: err})
			return
		}
		if err := r.port.Delete(ctx, remote); err != nil {
			errs = append(errs, &DeploymentError{Op: "delete", Path: remote, Err: err})
		}
	}

	for _, f := range m.ModFiles {
		rep.Progress("Removing mod file " + f)
		remove(r.layout.ModPath(f))
	}

	for _, lib := range m.LibraryFiles {
		if other, shared := r.registry.LibraryUser(lib); shared {
			rep.Progress(fmt.Sprintf("Other mod %s still needs library %s, not removing", other, lib))
			continue
		}
		rep.Progress("Removing library file " + lib)
		remove(r.layout.LibPath(lib))
	}

	rep.Progress("Removing mod manifest . . .")
	remove(r.layout.ManifestPath(m.ID))

	if len(errs) > 0 {
		r.logger.Warn("uninstall incomplete", "id", id, "failures", len(errs))
		return m, &UninstallError{ID: id, Errs: errs}
	}
	r.logger.Debug("uninstalled mod", "id", id)
	return m, nil
}
