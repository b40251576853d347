// SPDX-License-Identifier: MPL-2.0

package mods

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/modctl/modctl/pkg/modmanifest"
)

// Packer writes a directory tree into an archive.
type Packer interface {
	Pack(ctx context.Context, srcDir, outputPath string) error
}

// PackDir validates the mod rooted at dir and archives it to outputPath.
// An empty outputPath becomes <id>.qmod next to dir. The returned manifest
// is the one read from dir.
func PackDir(ctx context.Context, p Packer, dir, outputPath string) (*modmanifest.Manifest, string, error) {
	manifestPath := filepath.Join(dir, modmanifest.FileName)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, "", &ManifestError{Archive: dir, Err: err}
	}
	m, err := modmanifest.ParseNamed(data, manifestPath)
	if err != nil {
		return nil, "", &ManifestError{Archive: dir, Err: err}
	}
	if missing := missingFiles(dir, m); len(missing) > 0 {
		return nil, "", &ManifestError{Archive: dir, Missing: missing, Err: fs.ErrNotExist}
	}

	if outputPath == "" {
		outputPath = filepath.Join(filepath.Dir(filepath.Clean(dir)), m.ID+".qmod")
	}
	if err := p.Pack(ctx, dir, outputPath); err != nil {
		return nil, "", fmt.Errorf("pack %s: %w", m.ID, err)
	}
	return m, outputPath, nil
}
