// SPDX-License-Identifier: MPL-2.0

package cmd

import "testing"

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v0.3.0"
		Commit = "9f1c2ab"
		BuildDate = "2026-03-01T08:00:00Z"

		got := getVersionString()
		want := "v0.3.0 (commit: 9f1c2ab, built: 2026-03-01T08:00:00Z)"
		if got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("dev build", func(t *testing.T) {
		origVersion := Version
		t.Cleanup(func() { Version = origVersion })

		Version = "dev"
		if got, want := getVersionString(), "dev (built from source)"; got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})
}

func TestRootCommandTree(t *testing.T) {
	t.Parallel()

	root := NewRootCommand(NewApp(Dependencies{}))
	for _, path := range [][]string{
		{"install"}, {"uninstall"}, {"list"}, {"show"}, {"pack"}, {"watch"},
		{"device", "exec"}, {"device", "serve"},
		{"config", "show"}, {"config", "init"}, {"config", "path"},
		{"explain"},
	} {
		found, _, err := root.Find(path)
		if err != nil || found == root {
			t.Errorf("command %v not registered (err: %v)", path, err)
		}
	}
}
