// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/errors"
)

type (
	// ValidationError is a single schema violation.
	ValidationError struct {
		// FilePath is the document being validated.
		FilePath string
		// CUEPath is the JSON path to the offending value (e.g. "libraryFiles[0]").
		CUEPath string
		// Message is the CUE diagnostic with any redundant path prefix removed.
		Message string
	}

	// ValidationErrors collects every violation CUE reported for one document.
	ValidationErrors struct {
		FilePath string
		Errors   []*ValidationError
	}
)

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.CUEPath != "" {
		return fmt.Sprintf("%s: %s: %s", e.FilePath, e.CUEPath, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.FilePath, e.Message)
}

// Error implements the error interface.
func (e *ValidationErrors) Error() string {
	lines := make([]string, 0, len(e.Errors))
	for _, ve := range e.Errors {
		if ve.CUEPath != "" {
			lines = append(lines, ve.CUEPath+": "+ve.Message)
		} else {
			lines = append(lines, ve.Message)
		}
	}
	return fmt.Sprintf("%s: validation failed:\n  %s", e.FilePath, strings.Join(lines, "\n  "))
}

// Unwrap exposes the individual violations to errors.As.
func (e *ValidationErrors) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, ve := range e.Errors {
		errs[i] = ve
	}
	return errs
}

// FormatError converts a CUE error into a *ValidationError (one violation) or
// a *ValidationErrors (several). Non-CUE errors are wrapped with the file path.
func FormatError(err error, filePath string) error {
	if err == nil {
		return nil
	}

	cueErrors := errors.Errors(err)
	if len(cueErrors) == 0 {
		return fmt.Errorf("%s: %w", filePath, err)
	}

	out := make([]*ValidationError, 0, len(cueErrors))
	for _, e := range cueErrors {
		pathStr := formatPath(errors.Path(e))
		msg := e.Error()

		// CUE sometimes repeats the path at the start of the message.
		if pathStr != "" && strings.HasPrefix(msg, pathStr) {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, pathStr), ":"))
		}

		out = append(out, &ValidationError{FilePath: filePath, CUEPath: pathStr, Message: msg})
	}

	if len(out) == 1 {
		return out[0]
	}
	return &ValidationErrors{FilePath: filePath, Errors: out}
}

// formatPath renders a CUE path (["libraryFiles", "0"]) in JSON-path notation
// ("libraryFiles[0]").
func formatPath(path []string) string {
	var b strings.Builder
	for i, part := range path {
		if i > 0 && isIndex(part) {
			b.WriteString("[" + part + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// CheckFileSize returns an error when data exceeds maxSize bytes.
func CheckFileSize(data []byte, maxSize int64, filename string) error {
	if int64(len(data)) > maxSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes",
			filename, len(data), maxSize)
	}
	return nil
}
