// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/interp"

	"github.com/modctl/modctl/internal/device"
	"github.com/modctl/modctl/internal/device/sshshell"
	"github.com/modctl/modctl/internal/testutil"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := New(Config{
		Root:   t.TempDir(),
		Port:   0,
		Logger: log.NewWithOptions(&strings.Builder{}, log.Options{Level: log.FatalLevel}),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

func startTestServer(t *testing.T) *Server {
	t.Helper()
	srv := newTestServer(t)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { testutil.MustStop(t, srv) })
	return srv
}

func dial(t *testing.T, srv *Server, password string) (*sshshell.Shell, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return sshshell.Dial(ctx, sshshell.Config{
		Host:     "127.0.0.1",
		Port:     srv.Port(),
		User:     DefaultUser,
		Password: password,
	})
}

func TestServerState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state ServerState
		want  string
	}{
		{StateCreated, "created"},
		{StateStarting, "starting"},
		{StateRunning, "running"},
		{StateStopping, "stopping"},
		{StateStopped, "stopped"},
		{StateFailed, "failed"},
		{ServerState(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("ServerState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	if srv.State() != StateCreated {
		t.Errorf("State() = %s, want created", srv.State())
	}
	if len(srv.Token()) != 64 {
		t.Errorf("generated token length = %d, want 64", len(srv.Token()))
	}
	if srv.Address() != "" || srv.Port() != 0 {
		t.Error("an unstarted server has no address")
	}
	if _, err := srv.ConnectionInfo(); err == nil {
		t.Error("ConnectionInfo() should fail before Start")
	}

	fixed, err := New(Config{Root: t.TempDir(), Token: "secret"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if fixed.Token() != "secret" {
		t.Errorf("Token() = %q, want the configured token", fixed.Token())
	}

	if _, err := New(Config{Root: " "}); err == nil {
		t.Error("New() with a blank root should fail")
	}
}

func TestServer_Lifecycle(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !srv.IsRunning() || srv.Port() == 0 {
		t.Fatalf("after Start: state %s, port %d", srv.State(), srv.Port())
	}

	info, err := srv.ConnectionInfo()
	if err != nil {
		t.Fatalf("ConnectionInfo() error = %v", err)
	}
	if info.Port != srv.Port() || info.Token != srv.Token() || info.User != DefaultUser {
		t.Errorf("ConnectionInfo() = %+v", info)
	}

	if err := srv.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}

	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if srv.State() != StateStopped {
		t.Errorf("State() = %s, want stopped", srv.State())
	}
	if err := srv.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if err := srv.Wait(); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestServer_StopBeforeStart(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if srv.State() != StateStopped {
		t.Errorf("State() = %s, want stopped", srv.State())
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Error("Start() after Stop() should fail")
	}
}

func TestServer_StartWithCancelledContext(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := srv.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Start() error = %v, want context.Canceled", err)
	}
	if srv.State() != StateFailed {
		t.Errorf("State() = %s, want failed", srv.State())
	}
	if err := srv.Wait(); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want the start failure", err)
	}
}

func TestServer_RejectsWrongToken(t *testing.T) {
	t.Parallel()

	srv := startTestServer(t)
	if sh, err := dial(t, srv, "not-the-token"); err == nil {
		_ = sh.Close()
		t.Fatal("Dial() with a wrong token should fail")
	}
}

func TestServer_ServesDeviceVocabulary(t *testing.T) {
	t.Parallel()

	srv := startTestServer(t)
	sh, err := dial(t, srv, srv.Token())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { testutil.MustClose(t, sh) })

	ctx := context.Background()
	port := device.NewPort(sh)
	dir := "sdcard/QuestPatcher/com.beatgames.beatsaber/installedMods"

	if err := port.EnsureDir(ctx, dir); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	if err := port.EnsureDir(ctx, dir); err != nil {
		t.Fatalf("second EnsureDir() error = %v", err)
	}

	local := filepath.Join(t.TempDir(), "song-loader.json")
	testutil.MustWriteFile(t, local, []byte(`{"id":"song-loader"}`))
	if err := port.Push(ctx, local, dir+"/song-loader.json"); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	other := filepath.Join(t.TempDir(), "weird name.json")
	testutil.MustWriteFile(t, other, []byte(`{}`))
	if err := port.Push(ctx, other, dir+"/weird name.json"); err != nil {
		t.Fatalf("Push() with a space error = %v", err)
	}

	names, err := port.List(ctx, dir)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if want := []string{"song-loader.json", "weird name.json"}; !slices.Equal(names, want) {
		t.Errorf("List() = %v, want %v", names, want)
	}

	data, err := port.Read(ctx, dir+"/song-loader.json")
	if err != nil || string(data) != `{"id":"song-loader"}` {
		t.Errorf("Read() = %q, %v", data, err)
	}

	if err := port.Delete(ctx, dir+"/song-loader.json"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(srv.Root(), filepath.FromSlash(dir), "song-loader.json")); !os.IsNotExist(err) {
		t.Errorf("deleted file still on disk: %v", err)
	}

	_, err = sh.Run(ctx, "reboot")
	var cerr *device.CommandError
	if !errors.As(err, &cerr) {
		t.Fatalf("Run(reboot) error = %v, want *device.CommandError", err)
	}
	if !strings.Contains(cerr.Output, "command not found") {
		t.Errorf("Output = %q, want command not found", cerr.Output)
	}
}

func TestServer_ConfinesPathsToRoot(t *testing.T) {
	t.Parallel()

	srv := startTestServer(t)
	sh, err := dial(t, srv, srv.Token())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { testutil.MustClose(t, sh) })

	if _, err := sh.Run(context.Background(), "mkdir -p ../../escaped"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(srv.Root(), "escaped")); err != nil {
		t.Errorf("directory should be created inside the root: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(filepath.Dir(srv.Root())), "escaped")); err == nil {
		t.Error("directory escaped the root")
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"exit status", interp.ExitStatus(127), 127},
		{"wrapped exit status", fmt.Errorf("run: %w", interp.ExitStatus(2)), 2},
		{"interpreter failure", errors.New("failed to parse command"), exitInternal},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("%s: exitCode() = %d, want %d", tt.name, got, tt.want)
		}
	}
}
