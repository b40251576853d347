// SPDX-License-Identifier: MPL-2.0

package mods

import (
	"context"
	"fmt"
	"path"

	"github.com/charmbracelet/log"

	"github.com/modctl/modctl/internal/device"
	"github.com/modctl/modctl/pkg/modmanifest"
)

type (
	// Discovery loads the manifests persisted on the device.
	Discovery struct {
		port   device.Port
		layout Layout
		logger *log.Logger
	}

	// DiscoveryResult is what one discovery pass found. ParseErrors holds a
	// *DiscoveryParseError for every persisted manifest that was skipped.
	DiscoveryResult struct {
		Manifests   []*modmanifest.Manifest
		ParseErrors []error
	}
)

// NewDiscovery creates a Discovery over port.
func NewDiscovery(port device.Port, layout Layout, logger *log.Logger) *Discovery {
	return &Discovery{port: port, layout: layout, logger: logger}
}

// EnsureDirs creates the manifests, mods and libraries directories.
// It is idempotent.
func (d *Discovery) EnsureDirs(ctx context.Context) error {
	for _, dir := range d.layout.Dirs() {
		if err := d.port.EnsureDir(ctx, dir); err != nil {
			return &DeploymentError{Op: "create directory", Path: dir, Err: err}
		}
	}
	return nil
}

// Discover ensures the remote directories, lists the manifests directory and
// parses every entry. An entry that cannot be read or parsed is reported in
// ParseErrors and skipped; only failing to ensure or list the directories
// aborts the pass.
func (d *Discovery) Discover(ctx context.Context) (*DiscoveryResult, error) {
	if err := d.EnsureDirs(ctx); err != nil {
		return nil, err
	}

	entries, err := d.port.List(ctx, d.layout.ManifestsDir)
	if err != nil {
		return nil, &DeploymentError{Op: "list", Path: d.layout.ManifestsDir, Err: err}
	}

	res := &DiscoveryResult{}
	for _, name := range entries {
		p := path.Join(d.layout.ManifestsDir, name)
		data, err := d.port.Read(ctx, p)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			d.logger.Warn("skipping unreadable manifest", "path", p, "err", err)
			res.ParseErrors = append(res.ParseErrors, &DiscoveryParseError{Path: p, Err: fmt.Errorf("read: %w", err)})
			continue
		}

		m, err := modmanifest.ParseNamed(data, p)
		if err != nil {
			d.logger.Warn("skipping unreadable manifest", "path", p, "err", err)
			res.ParseErrors = append(res.ParseErrors, &DiscoveryParseError{Path: p, Err: err})
			continue
		}
		if want := m.PersistedName(); want != name {
			// Uninstall deletes <id>.json, so the file name must match the id.
			err := fmt.Errorf("file name %s does not match mod id %q (expected %s)", name, m.ID, want)
			d.logger.Warn("skipping misnamed manifest", "path", p, "id", m.ID)
			res.ParseErrors = append(res.ParseErrors, &DiscoveryParseError{Path: p, Err: err})
			continue
		}

		d.logger.Debug("discovered mod", "id", m.ID, "version", m.Version)
		res.Manifests = append(res.Manifests, m)
	}
	return res, nil
}
