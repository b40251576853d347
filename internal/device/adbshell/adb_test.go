// SPDX-License-Identifier: MPL-2.0

package adbshell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/modctl/modctl/internal/device"
)

type mockInvocation struct {
	Name string
	Args []string
}

// mockADB records invocations and re-executes the test binary as a fake adb
// through TestHelperProcess.
type mockADB struct {
	mu          sync.Mutex
	invocations []mockInvocation
	stdout      string
	stderr      string
	exitCodes   []int
}

func (m *mockADB) commandFunc() ExecCommandFunc {
	return func(_ context.Context, name string, args ...string) *exec.Cmd {
		m.mu.Lock()
		call := len(m.invocations)
		m.invocations = append(m.invocations, mockInvocation{Name: name, Args: slices.Clone(args)})
		exitCode := 0
		if call < len(m.exitCodes) {
			exitCode = m.exitCodes[call]
		}
		m.mu.Unlock()

		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		//nolint:gosec // TestHelperProcess is a test-only pattern
		cmd := exec.Command(os.Args[0], cs...) //nolint:noctx // exec.Command used intentionally for test helper
		cmd.Env = []string{
			"GO_WANT_HELPER_PROCESS=1",
			fmt.Sprintf("GO_HELPER_EXIT_CODE=%d", exitCode),
			"GO_HELPER_STDOUT=" + m.stdout,
			"GO_HELPER_STDERR=" + m.stderr,
		}
		return cmd
	}
}

func (m *mockADB) calls() []mockInvocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.invocations)
}

// TestHelperProcess is invoked by mockADB; it is not a real test.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	fmt.Fprint(os.Stdout, os.Getenv("GO_HELPER_STDOUT"))
	fmt.Fprint(os.Stderr, os.Getenv("GO_HELPER_STDERR"))

	exitCode := 0
	fmt.Sscanf(os.Getenv("GO_HELPER_EXIT_CODE"), "%d", &exitCode)
	os.Exit(exitCode)
}

func newTestShell(t *testing.T, m *mockADB, opts ...Option) *Shell {
	t.Helper()

	base := []Option{
		WithBinary("adb"),
		WithExecCommand(m.commandFunc()),
		WithRetry(3, time.Millisecond),
	}
	s, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestShell_Run(t *testing.T) {
	t.Parallel()

	m := &mockADB{stdout: "sdcard/mods:\r\nm1.json\r\n"}
	s := newTestShell(t, m, WithSerial("emulator-5554"))

	out, err := s.Run(t.Context(), "ls -R sdcard/mods")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out != m.stdout {
		t.Errorf("Run() = %q, want %q", out, m.stdout)
	}

	calls := m.calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 invocation, got %d", len(calls))
	}
	want := []string{"-s", "emulator-5554", "shell", "ls -R sdcard/mods"}
	if calls[0].Name != "adb" || !slices.Equal(calls[0].Args, want) {
		t.Errorf("invocation = %s %v, want adb %v", calls[0].Name, calls[0].Args, want)
	}
}

func TestShell_Push(t *testing.T) {
	t.Parallel()

	m := &mockADB{}
	s := newTestShell(t, m)

	if err := s.Push(t.Context(), "/tmp/scratch/lib.so", "sdcard/libs/lib.so"); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	calls := m.calls()
	want := []string{"push", "/tmp/scratch/lib.so", "sdcard/libs/lib.so"}
	if len(calls) != 1 || !slices.Equal(calls[0].Args, want) {
		t.Errorf("invocations = %v, want args %v", calls, want)
	}
}

func TestShell_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	m := &mockADB{stderr: "error: device offline", exitCodes: []int{1, 1, 0}}
	s := newTestShell(t, m)

	if _, err := s.Run(t.Context(), "mkdir -p sdcard/mods"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := len(m.calls()); got != 3 {
		t.Errorf("invocations = %d, want 3", got)
	}
}

func TestShell_PermanentFailure(t *testing.T) {
	t.Parallel()

	m := &mockADB{stderr: "rm: sdcard/x: Permission denied", exitCodes: []int{1, 1, 1}}
	s := newTestShell(t, m)

	_, err := s.Run(t.Context(), "rm -f sdcard/x")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, device.ErrCommandFailed) {
		t.Errorf("error should wrap device.ErrCommandFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "Permission denied") {
		t.Errorf("error should carry adb output, got %v", err)
	}
	if got := len(m.calls()); got != 1 {
		t.Errorf("permanent failures must not be retried, got %d invocations", got)
	}
}

func TestNew_BinaryNotFound(t *testing.T) {
	t.Parallel()

	_, err := New(func(s *Shell) { s.binary = "modctl-no-such-adb-binary" })
	if !errors.Is(err, ErrBinaryNotFound) {
		t.Errorf("New() error = %v, want ErrBinaryNotFound", err)
	}
}
