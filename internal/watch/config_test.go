// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"testing"
)

func nopArchive(context.Context, string) error { return nil }

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		cfg        Config
		wantFields int
	}{
		{name: "minimal", cfg: Config{Dir: "/inbox", OnArchive: nopArchive}},
		{name: "custom pattern", cfg: Config{Dir: "/inbox", Pattern: "*.qmod", OnArchive: nopArchive}},
		{name: "empty dir", cfg: Config{OnArchive: nopArchive}, wantFields: 1},
		{name: "whitespace dir", cfg: Config{Dir: "   ", OnArchive: nopArchive}, wantFields: 1},
		{name: "bad glob", cfg: Config{Dir: "/inbox", Pattern: "[qmod", OnArchive: nopArchive}, wantFields: 1},
		{name: "no callback", cfg: Config{Dir: "/inbox"}, wantFields: 1},
		{name: "everything wrong", cfg: Config{Pattern: "{a"}, wantFields: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.Validate()
			if tt.wantFields == 0 {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidWatchConfig) {
				t.Fatalf("Validate() = %v, want ErrInvalidWatchConfig", err)
			}
			var cfgErr *InvalidWatchConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() error is %T, want *InvalidWatchConfigError", err)
			}
			if len(cfgErr.FieldErrors) != tt.wantFields {
				t.Errorf("field errors = %d (%v), want %d", len(cfgErr.FieldErrors), cfgErr.FieldErrors, tt.wantFields)
			}
		})
	}
}

func TestNewRejectsMissingDir(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Dir: t.TempDir() + "/absent", OnArchive: nopArchive})
	if err == nil {
		t.Fatal("New() should fail for a missing inbox")
	}
}
