// SPDX-License-Identifier: MPL-2.0

package sshshell

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/modctl/modctl/internal/device"
)

const (
	openSSHImage    = "lscr.io/linuxserver/openssh-server:latest"
	openSSHPort     = "2222/tcp"
	openSSHUser     = "modctl"
	openSSHPassword = "modctl-test"
)

// checkTestcontainersAvailable safely checks if testcontainers can be used.
func checkTestcontainersAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return false
	}
	defer provider.Close()
	return true
}

// TestShell_Integration drives the full port vocabulary against a real sshd.
func TestShell_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if !checkTestcontainersAvailable() {
		t.Skip("skipping ssh integration tests: testcontainers provider not available")
	}

	ctx := t.Context()
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        openSSHImage,
			ExposedPorts: []string{openSSHPort},
			Env: map[string]string{
				"PUID":            "1000",
				"PGID":            "1000",
				"USER_NAME":       openSSHUser,
				"USER_PASSWORD":   openSSHPassword,
				"PASSWORD_ACCESS": "true",
			},
			WaitingFor: wait.ForListeningPort(openSSHPort).WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start openssh container: %v", err)
	}

	host, err := ctr.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	mapped, err := ctr.MappedPort(ctx, openSSHPort)
	if err != nil {
		t.Fatal(err)
	}

	sh, err := Dial(ctx, Config{
		Host:     host,
		Port:     mapped.Int(),
		User:     openSSHUser,
		Password: openSSHPassword,
	})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = sh.Close() })

	port := device.NewPort(sh)
	dir := "modctl/installedMods"

	if err := port.EnsureDir(ctx, dir); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	if err := port.EnsureDir(ctx, dir); err != nil {
		t.Fatalf("second EnsureDir() error = %v", err)
	}

	local := filepath.Join(t.TempDir(), "m1.json")
	body := `{"id":"m1","gameId":"com.example.app"}`
	if err := os.WriteFile(local, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := port.Push(ctx, local, dir+"/m1.json"); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	entries, err := port.List(ctx, dir)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if !slices.Equal(entries, []string{"m1.json"}) {
		t.Errorf("List() = %v, want [m1.json]", entries)
	}

	got, err := port.Read(ctx, dir+"/m1.json")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(got) != body {
		t.Errorf("Read() = %q, want %q", got, body)
	}

	if err := port.Delete(ctx, dir+"/m1.json"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := port.Delete(ctx, dir+"/m1.json"); err != nil {
		t.Fatalf("Delete() of a missing file error = %v", err)
	}
}
