// SPDX-License-Identifier: MPL-2.0

package mods

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/modctl/modctl/internal/device"
	"github.com/modctl/modctl/pkg/modmanifest"
)

type (
	// Extractor produces a directory tree from an archive.
	Extractor interface {
		Extract(ctx context.Context, archivePath, destDir string) error
	}

	// Deployer installs mod archives.
	Deployer struct {
		port      device.Port
		registry  *Registry
		layout    Layout
		target    string
		scratch   string
		extractor Extractor
		logger    *log.Logger
	}

	// extracted is a mod unpacked into the scratch directory.
	extracted struct {
		root         string
		manifestPath string
		manifest     *modmanifest.Manifest
	}
)

// NewDeployer creates a Deployer. scratch is cleared at the start of every
// install and removed after a successful one.
func NewDeployer(port device.Port, registry *Registry, layout Layout, target, scratch string, extractor Extractor, logger *log.Logger) *Deployer {
	return &Deployer{
		port:      port,
		registry:  registry,
		layout:    layout,
		target:    target,
		scratch:   scratch,
		extractor: extractor,
		logger:    logger,
	}
}

// Install deploys the mod in archivePath.
//
// Preconditions are checked in order and none of them touches the device:
// extraction, manifest, target application, uniqueness. Then libraries and
// mod files are pushed, and finally the manifest itself; that last push is
// what makes the mod installed. A failed push stops the install and leaves
// the files pushed so far on the device.
func (d *Deployer) Install(ctx context.Context, archivePath string, rep Reporter) (*modmanifest.Manifest, error) {
	rep.Progress("Extracting mod . . .")
	if err := d.resetScratch(); err != nil {
		return nil, &ExtractionError{Archive: archivePath, Err: err}
	}
	if err := d.extractor.Extract(ctx, archivePath, d.scratch); err != nil {
		return nil, &ExtractionError{Archive: archivePath, Err: err}
	}

	rep.Progress("Loading manifest . . .")
	ex, err := d.load(archivePath)
	if err != nil {
		return nil, err
	}
	m := ex.manifest

	if m.GameID != d.target {
		return nil, &WrongTargetError{ModID: m.ID, GameID: m.GameID, Target: d.target}
	}
	if d.registry.Contains(m.ID) {
		return nil, &AlreadyInstalledError{ID: m.ID}
	}

	for _, lib := range m.LibraryFiles {
		rep.Progress("Copying library file " + lib)
		if err := d.push(ctx, filepath.Join(ex.root, filepath.FromSlash(lib)), d.layout.LibPath(lib)); err != nil {
			return nil, err
		}
	}
	for _, f := range m.ModFiles {
		rep.Progress("Copying mod file " + f)
		if err := d.push(ctx, filepath.Join(ex.root, filepath.FromSlash(f)), d.layout.ModPath(f)); err != nil {
			return nil, err
		}
	}

	rep.Progress("Copying manifest . . .")
	if err := d.push(ctx, ex.manifestPath, d.layout.ManifestPath(m.ID)); err != nil {
		return nil, err
	}

	d.registry.Register(m)
	if err := os.RemoveAll(d.scratch); err != nil {
		d.logger.Warn("failed to discard scratch directory", "path", d.scratch, "err", err)
	}
	d.logger.Debug("installed mod", "id", m.ID, "version", m.Version)
	return m, nil
}

func (d *Deployer) push(ctx context.Context, local, remote string) error {
	if err := ctx.Err(); err != nil {
		return &DeploymentError{Op: "push", Path: remote, Err: err}
	}
	if err := d.port.Push(ctx, local, remote); err != nil {
		return &DeploymentError{Op: "push", Path: remote, Err: err}
	}
	return nil
}

func (d *Deployer) resetScratch() error {
	if d.scratch == "" {
		return errors.New("no scratch directory configured")
	}
	if err := os.RemoveAll(d.scratch); err != nil {
		return fmt.Errorf("clear scratch directory: %w", err)
	}
	if err := os.MkdirAll(d.scratch, 0o755); err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}
	return nil
}

// load finds and parses mod.json, then checks that every declared file was
// extracted.
func (d *Deployer) load(archivePath string) (*extracted, error) {
	root, err := findManifestRoot(d.scratch)
	if err != nil {
		return nil, &ManifestError{Archive: archivePath, Err: err}
	}
	manifestPath := filepath.Join(root, modmanifest.FileName)

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, &ManifestError{Archive: archivePath, Err: err}
	}
	m, err := modmanifest.Parse(data)
	if err != nil {
		return nil, &ManifestError{Archive: archivePath, Err: err}
	}

	if missing := missingFiles(root, m); len(missing) > 0 {
		return nil, &ManifestError{Archive: archivePath, Missing: missing, Err: fs.ErrNotExist}
	}
	return &extracted{root: root, manifestPath: manifestPath, manifest: m}, nil
}

// findManifestRoot returns dir when it holds mod.json, or its single
// top-level subdirectory when that one does.
func findManifestRoot(dir string) (string, error) {
	if isRegular(filepath.Join(dir, modmanifest.FileName)) {
		return dir, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		nested := filepath.Join(dir, entries[0].Name())
		if isRegular(filepath.Join(nested, modmanifest.FileName)) {
			return nested, nil
		}
	}
	return "", fmt.Errorf("%s not found in archive", modmanifest.FileName)
}

// missingFiles lists declared paths that are not regular files under root.
func missingFiles(root string, m *modmanifest.Manifest) []string {
	var missing []string
	for _, list := range [][]string{m.LibraryFiles, m.ModFiles} {
		for _, rel := range list {
			if !isRegular(filepath.Join(root, filepath.FromSlash(rel))) {
				missing = append(missing, rel)
			}
		}
	}
	return missing
}

func isRegular(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
