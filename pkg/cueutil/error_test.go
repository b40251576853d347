// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

func TestFormatError(t *testing.T) {
	t.Parallel()

	t.Run("nil error returns nil", func(t *testing.T) {
		t.Parallel()

		if err := FormatError(nil, "mod.json"); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("non-CUE error is wrapped with filepath", func(t *testing.T) {
		t.Parallel()

		original := errors.New("some error")
		err := FormatError(original, "mod.json")
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "mod.json") {
			t.Errorf("error should contain filepath, got: %v", err)
		}
		if !errors.Is(err, original) {
			t.Errorf("error should wrap the original, got: %v", err)
		}
	})
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     []string
		expected string
	}{
		{name: "empty path", path: []string{}, expected: ""},
		{name: "single element", path: []string{"id"}, expected: "id"},
		{name: "nested path", path: []string{"device", "ssh", "host"}, expected: "device.ssh.host"},
		{name: "array index", path: []string{"libraryFiles", "0"}, expected: "libraryFiles[0]"},
		{name: "leading digits are not an index", path: []string{"0", "id"}, expected: "0.id"},
		{name: "nested arrays", path: []string{"items", "0", "values", "1"}, expected: "items[0].values[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := formatPath(tt.path); got != tt.expected {
				t.Errorf("formatPath(%v) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}

func TestCheckFileSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{name: "within limit", size: 11},
		{name: "exact limit", size: 100},
		{name: "empty", size: 0},
		{name: "over limit", size: 101, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := CheckFileSize(make([]byte, tt.size), 100, "mod.json")
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckFileSize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), "101") {
				t.Errorf("error should contain actual size, got: %v", err)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	withPath := &ValidationError{FilePath: "mod.json", CUEPath: "libraryFiles[0]", Message: "conflicting values"}
	if got, want := withPath.Error(), "mod.json: libraryFiles[0]: conflicting values"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	noPath := &ValidationError{FilePath: "mod.json", Message: "syntax error"}
	if got, want := noPath.Error(), "mod.json: syntax error"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	multi := &ValidationErrors{FilePath: "mod.json", Errors: []*ValidationError{withPath, noPath}}
	var ve *ValidationError
	if !errors.As(multi, &ve) {
		t.Fatal("ValidationErrors should unwrap to *ValidationError")
	}
	if !strings.Contains(multi.Error(), "validation failed") {
		t.Errorf("unexpected message %q", multi.Error())
	}
}
