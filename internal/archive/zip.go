// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxBytes caps the total uncompressed size Extract will write.
const DefaultMaxBytes int64 = 512 << 20

var (
	// ErrUnsafePath is returned when an entry would land outside the destination.
	ErrUnsafePath = errors.New("archive entry escapes destination")

	// ErrTooLarge is returned when the uncompressed content exceeds the limit.
	ErrTooLarge = errors.New("archive exceeds size limit")
)

// Zip extracts and creates zip archives.
type Zip struct {
	// MaxBytes bounds the uncompressed size of one archive. Zero means
	// DefaultMaxBytes.
	MaxBytes int64
}

// Extract unpacks archivePath into destDir, which is created if missing.
// Entries are validated before anything is written for them, so a hostile
// archive cannot write outside destDir.
func (z Zip) Extract(ctx context.Context, archivePath, destDir string) (err error) {
	absDest, err := filepath.Abs(destDir)
	if err != nil {
		return fmt.Errorf("failed to resolve destination directory: %w", err)
	}
	if err = os.MkdirAll(absDest, 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	zr, err := zip.OpenReader(archivePath)
	if errors.Is(err, zip.ErrInsecurePath) {
		if zr != nil {
			_ = zr.Close() // Rejected anyway; close error is irrelevant
		}
		return fmt.Errorf("%w: %w", ErrUnsafePath, err)
	}
	if err != nil {
		return fmt.Errorf("failed to open ZIP file: %w", err)
	}
	defer func() {
		if closeErr := zr.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	limit := z.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	remaining := limit

	for _, file := range zr.File {
		if err = ctx.Err(); err != nil {
			return err
		}

		destPath, pathErr := entryPath(absDest, file.Name)
		if pathErr != nil {
			return pathErr
		}

		if file.FileInfo().IsDir() {
			if mkdirErr := os.MkdirAll(destPath, 0o755); mkdirErr != nil {
				return fmt.Errorf("failed to create directory: %w", mkdirErr)
			}
			continue
		}
		if !file.Mode().IsRegular() {
			// Symlinks and devices have no place in a mod payload.
			return fmt.Errorf("%w: %s is not a regular file", ErrUnsafePath, file.Name)
		}

		if mkdirErr := os.MkdirAll(filepath.Dir(destPath), 0o755); mkdirErr != nil {
			return fmt.Errorf("failed to create parent directory: %w", mkdirErr)
		}

		written, extractErr := extractFile(file, destPath, remaining)
		if extractErr != nil {
			return fmt.Errorf("failed to extract %s: %w", file.Name, extractErr)
		}
		remaining -= written
	}
	return nil
}

// entryPath maps a zip entry name to a path under dest.
func entryPath(dest, name string) (string, error) {
	if name == "" || strings.ContainsRune(name, '\x00') || strings.Contains(name, `\`) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}

	destPath := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, destPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return destPath, nil
}

// extractFile copies one entry, refusing to write more than limit bytes.
func extractFile(file *zip.File, destPath string, limit int64) (written int64, err error) {
	rc, err := file.Open()
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	destFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := destFile.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	written, err = io.Copy(destFile, io.LimitReader(rc, limit+1))
	if err != nil {
		return written, err
	}
	if written > limit {
		return written, ErrTooLarge
	}
	return written, nil
}

// Pack writes every regular file under srcDir into a new zip at outputPath,
// with paths relative to srcDir. A partially written archive is removed.
func (z Zip) Pack(ctx context.Context, srcDir, outputPath string) (err error) {
	absSrc, err := filepath.Abs(srcDir)
	if err != nil {
		return fmt.Errorf("failed to resolve source directory: %w", err)
	}
	absOut, err := filepath.Abs(outputPath)
	if err != nil {
		return fmt.Errorf("failed to resolve output path: %w", err)
	}

	out, err := os.Create(absOut)
	if err != nil {
		return fmt.Errorf("failed to create ZIP file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(absOut) // Best-effort cleanup of a partial archive
		}
	}()
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	zw := zip.NewWriter(out)
	defer func() {
		if closeErr := zw.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	walkErr := filepath.WalkDir(absSrc, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == absOut || d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, relErr := filepath.Rel(absSrc, path)
		if relErr != nil {
			return fmt.Errorf("failed to get relative path: %w", relErr)
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return fmt.Errorf("failed to get file info: %w", infoErr)
		}
		header, headerErr := zip.FileInfoHeader(info)
		if headerErr != nil {
			return fmt.Errorf("failed to create file header: %w", headerErr)
		}
		header.Name = filepath.ToSlash(rel)
		header.Method = zip.Deflate

		w, createErr := zw.CreateHeader(header)
		if createErr != nil {
			return fmt.Errorf("failed to create ZIP entry: %w", createErr)
		}
		f, openErr := os.Open(path)
		if openErr != nil {
			return fmt.Errorf("failed to read file %s: %w", path, openErr)
		}
		defer f.Close()
		if _, copyErr := io.Copy(w, f); copyErr != nil {
			return fmt.Errorf("failed to write file data: %w", copyErr)
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("failed to pack %s: %w", srcDir, walkErr)
	}
	return nil
}
