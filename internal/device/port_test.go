// SPDX-License-Identifier: MPL-2.0

package device

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
)

type recordingShell struct {
	mu      sync.Mutex
	lines   []string
	pushes  [][2]string
	outputs map[string]string
	fail    map[string]error
}

func (s *recordingShell) Run(_ context.Context, line string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
	if err, ok := s.fail[line]; ok {
		return "", err
	}
	return s.outputs[line], nil
}

func (s *recordingShell) Push(_ context.Context, local, remote string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushes = append(s.pushes, [2]string{local, remote})
	return nil
}

func (s *recordingShell) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lines)
}

func TestShellPort_Vocabulary(t *testing.T) {
	t.Parallel()

	sh := &recordingShell{outputs: map[string]string{
		"ls -R sdcard/mods": "sdcard/mods:\nm1.json\n",
		"cat sdcard/mods/m1.json": `{"id":"m1"}`,
	}}
	p := NewPort(sh)
	ctx := t.Context()

	if err := p.EnsureDir(ctx, "sdcard/mods"); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	entries, err := p.List(ctx, "sdcard/mods")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if !slices.Equal(entries, []string{"m1.json"}) {
		t.Errorf("List() = %v", entries)
	}
	data, err := p.Read(ctx, "sdcard/mods/m1.json")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(data) != `{"id":"m1"}` {
		t.Errorf("Read() = %q", data)
	}
	if err := p.Delete(ctx, "sdcard/mods/m1.json"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := p.Push(ctx, "/tmp/lib.so", "sdcard/libs/lib.so"); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	want := []string{
		"mkdir -p sdcard/mods",
		"ls -R sdcard/mods",
		"cat sdcard/mods/m1.json",
		"rm -f sdcard/mods/m1.json",
	}
	if got := sh.recorded(); !slices.Equal(got, want) {
		t.Errorf("command lines = %q, want %q", got, want)
	}
	if len(sh.pushes) != 1 || sh.pushes[0] != [2]string{"/tmp/lib.so", "sdcard/libs/lib.so"} {
		t.Errorf("pushes = %v", sh.pushes)
	}
}

func TestShellPort_PropagatesTransportErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("device offline")
	sh := &recordingShell{fail: map[string]error{"ls -R sdcard/mods": boom}}
	p := NewPort(sh)

	if _, err := p.List(t.Context(), "sdcard/mods"); !errors.Is(err, boom) {
		t.Errorf("List() error = %v, want %v", err, boom)
	}
}

func TestCommandLine_Quoting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{name: "plain", args: []string{"-f", "sdcard/libs/lib.so"}, want: "rm -f sdcard/libs/lib.so"},
		{name: "space", args: []string{"-f", "dir with space/a.so"}, want: "rm -f 'dir with space/a.so'"},
		{name: "injection", args: []string{"-f", "a.so; reboot"}, want: "rm -f 'a.so; reboot'"},
		{name: "nul byte", args: []string{"a\x00b"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := CommandLine("rm", tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CommandLine() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("CommandLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetach(t *testing.T) {
	t.Parallel()

	sh := &recordingShell{fail: map[string]error{"reboot": errors.New("denied")}}
	<-Detach(t.Context(), sh, "reboot", nil)

	if got := sh.recorded(); !slices.Equal(got, []string{"reboot"}) {
		t.Errorf("recorded = %v", got)
	}
}

func TestCommandError(t *testing.T) {
	t.Parallel()

	cause := errors.New("exit status 1")
	err := error(&CommandError{Line: "cat x", Output: "No such file\n", Err: cause})

	if !errors.Is(err, ErrCommandFailed) {
		t.Error("CommandError should match ErrCommandFailed")
	}
	if !errors.Is(err, cause) {
		t.Error("CommandError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "No such file") {
		t.Errorf("Error() = %q, want device output included", err.Error())
	}
}
